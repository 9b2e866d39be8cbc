package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

const geminiName = "gemini"

// GeminiProvider uses the official genai SDK with the image sent inline.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, baseURL, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: c, model: model}, nil
}

func (g *GeminiProvider) Analyze(ctx context.Context, img Image, prompt string) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("gemini: empty image")
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, mime),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.3),
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &ProviderError{
				Provider:   geminiName,
				StatusCode: apiErr.Code,
				Message:    apiErr.Message,
				Retryable:  retryableStatus(apiErr.Code),
				Err:        err,
			}
		}
		return "", transportError(geminiName, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &ProviderError{Provider: geminiName, Message: "empty response"}
	}
	return text, nil
}
