package ai

import (
	"context"
	"fmt"
	"strings"
)

// MockProvider returns a fixed, well formed recipe. It is only selected
// explicitly (AI_PROVIDER=mock) for local development and tests.
type MockProvider struct {
	Text string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{Text: mockRecipe()}
}

func (m *MockProvider) Analyze(ctx context.Context, img Image, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.Text, nil
}

func mockRecipe() string {
	ingredients := []string{
		"排骨 500克", "冰糖 30克", "生抽 2汤匙", "老抽 1汤匙",
		"料酒 1汤匙", "葱姜蒜 适量", "八角 2个", "桂皮 1块",
	}
	steps := []string{
		"排骨洗净切段，冷水下锅焯水，加入料酒和姜片去腥，煮沸后撇去浮沫，捞出备用。",
		"热锅冷油，放入冰糖小火炒至焦糖色，加入排骨翻炒上色。",
		"加入葱姜蒜爆香，然后加入生抽、老抽翻炒均匀，倒入热水没过排骨。",
		"加入八角、桂皮，中小火炖煮40分钟至排骨软烂，大火收汁即可。",
	}

	var b strings.Builder
	b.WriteString("**菜品名称：** 红烧排骨\n\n**主要食材：**\n")
	for _, ing := range ingredients {
		b.WriteString("- " + ing + "\n")
	}
	b.WriteString("\n**烹饪步骤：**\n")
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}
