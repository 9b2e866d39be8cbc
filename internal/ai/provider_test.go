package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/suPer8Hu/recipe-snap/internal/config"
	"github.com/suPer8Hu/recipe-snap/internal/recipe"
)

func TestMockProvider_ProducesParseableRecipe(t *testing.T) {
	text, err := NewMockProvider().Analyze(context.Background(), testImage, RecipePrompt)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	r := recipe.Parse(text)
	if r.Name != "红烧排骨" {
		t.Fatalf("unexpected name %q", r.Name)
	}
	if len(r.Ingredients) != 8 || len(r.Steps) != 4 {
		t.Fatalf("unexpected recipe: %d ingredients, %d steps", len(r.Ingredients), len(r.Steps))
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	reg := DefaultRegistry(config.ProviderConfig{})
	_, err := reg.Get(context.Background(), "nope", "")
	if err == nil || !strings.Contains(err.Error(), "unknown ai provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestFromConfig_ArkRequiresKey(t *testing.T) {
	if _, err := FromConfig(context.Background(), config.ProviderConfig{Name: "ark"}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestFromConfig_Mock(t *testing.T) {
	p, err := FromConfig(context.Background(), config.ProviderConfig{Name: "MOCK", RetryAttempts: 3})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if _, err := p.Analyze(context.Background(), testImage, "p"); err != nil {
		t.Fatalf("analyze: %v", err)
	}
}

func TestImage_DataURLSniffsMime(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	got := Image{Data: png}.DataURL()
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Fatalf("unexpected data url prefix: %s", got[:30])
	}
}
