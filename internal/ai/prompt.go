package ai

// RecipePrompt asks for the labelled layout understood by recipe.Parse.
const RecipePrompt = `请仔细观察这张菜品图片，识别出具体的菜品，并严格按照以下格式用中文回答，不要输出其他内容：

**菜品名称：** 菜品的具体名称

**主要食材：**
- 食材名称 用量
- 食材名称 用量

**烹饪步骤：**
1. 第一步的具体做法
2. 第二步的具体做法
3. 第三步的具体做法

要求：食材按重要程度排列，每行以"-"开头；步骤按先后顺序编号，每个步骤写清火候、时间和调味。`
