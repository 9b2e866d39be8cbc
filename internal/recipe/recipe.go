// Package recipe turns free-form model output into a structured Recipe.
//
// The expected layout is the one requested by ai.RecipePrompt:
//
//	**菜品名称：** 红烧排骨
//	**主要食材：**
//	- 排骨 500g
//	**烹饪步骤：**
//	1. ...
//
// Anything else is tolerated; Parse never fails.
package recipe

import (
	"regexp"
	"strings"
)

const (
	DefaultLocale = "zh-CN"
	// PlaceholderName is used when no dish name can be found or guessed.
	PlaceholderName = "识别菜品"
)

type Ingredient struct {
	Name        string `json:"name"`
	Amount      string `json:"amount"`
	Preparation string `json:"preparation"`
}

type Recipe struct {
	Name        string       `json:"name"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []string     `json:"steps"`
	Locale      string       `json:"locale,omitempty"`
}

// HasSteps reports whether at least one non-empty step was extracted.
func (r Recipe) HasSteps() bool {
	for _, s := range r.Steps {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

func (r Recipe) IsEmpty() bool {
	return r.Name == "" && len(r.Ingredients) == 0 && len(r.Steps) == 0
}

var (
	reName        = regexp.MustCompile(`\*\*菜品名称[：:]\*\*\s*(.+)`)
	reIngredients = regexp.MustCompile(`(?s)\*\*主要食材[：:]\*\*(.*?)\*\*烹饪步骤[：:]\*\*`)
	reSteps       = regexp.MustCompile(`(?s)\*\*烹饪步骤[：:]\*\*(.*)$`)

	reNumbered = regexp.MustCompile(`^\d+\.`)
	reNumeral  = regexp.MustCompile(`^\d+\.\s*`)
	reBullet   = regexp.MustCompile(`^-\s*`)
	// emphasis, strikethrough and inline code markers
	reMarkup = regexp.MustCompile("\\*+|_{2,}|~~|`+")
)

// Parse extracts dish name, ingredients and steps from raw. When none of the
// labelled sections are present it falls back to numbered lines anywhere in the
// text plus a keyword guess for the dish name.
func Parse(raw string) Recipe {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	out := Recipe{
		Ingredients: []Ingredient{},
		Steps:       []string{},
		Locale:      DefaultLocale,
	}

	if m := reName.FindStringSubmatch(raw); m != nil {
		out.Name = strings.TrimSpace(m[1])
	}

	if m := reIngredients.FindStringSubmatch(raw); m != nil {
		for _, line := range strings.Split(m[1], "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "-") {
				continue
			}
			out.Ingredients = append(out.Ingredients, Ingredient{
				Name: strings.TrimSpace(reBullet.ReplaceAllString(line, "")),
			})
		}
	}

	if m := reSteps.FindStringSubmatch(raw); m != nil {
		out.Steps = numberedLines(m[1])
	}

	if out.Name == "" && len(out.Ingredients) == 0 && len(out.Steps) == 0 {
		out.Steps = numberedLines(raw)
		out.Name = GuessName(raw)
	}
	return out
}

func numberedLines(block string) []string {
	steps := []string{}
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if !reNumbered.MatchString(line) {
			continue
		}
		s := reMarkup.ReplaceAllString(reNumeral.ReplaceAllString(line, ""), "")
		steps = append(steps, strings.TrimSpace(s))
	}
	return steps
}
