package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const arkName = "ark"

// ArkProvider calls the Volcengine ARK (Doubao) OpenAI-compatible chat completions endpoint
// with a vision model.
type ArkProvider struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Client      *http.Client
}

type arkImageURL struct {
	URL string `json:"url"`
}

type arkPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *arkImageURL `json:"image_url,omitempty"`
}

type arkMsg struct {
	Role    string    `json:"role"`
	Content []arkPart `json:"content"`
}

type arkChatReq struct {
	Model       string   `json:"model"`
	Messages    []arkMsg `json:"messages"`
	Temperature float64  `json:"temperature"`
	Stream      bool     `json:"stream"`
}

type arkChatResp struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func NewArkProvider(baseURL, apiKey, model string) *ArkProvider {
	if baseURL == "" {
		baseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}
	return &ArkProvider{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       model,
		Temperature: 0.3,
		Client:      &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *ArkProvider) Analyze(ctx context.Context, img Image, prompt string) (string, error) {
	if p.Client == nil {
		return "", errors.New("ark: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("ark: api key is required")
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return "", errors.New("ark: model is required")
	}
	if len(img.Data) == 0 {
		return "", errors.New("ark: empty image")
	}

	reqBody := arkChatReq{
		Model:       model,
		Temperature: p.Temperature,
		Messages: []arkMsg{{
			Role: "user",
			Content: []arkPart{
				{Type: "image_url", ImageURL: &arkImageURL{URL: img.DataURL()}},
				{Type: "text", Text: prompt},
			},
		}},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", transportError(arkName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", statusError(arkName, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded arkChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		// a body cut off mid-stream is a transport fault, not a bad answer
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return "", transportError(arkName, err)
		}
		return "", &ProviderError{Provider: arkName, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", &ProviderError{Provider: arkName, StatusCode: resp.StatusCode, Message: decoded.Error.Message}
	}
	if len(decoded.Choices) == 0 {
		return "", &ProviderError{Provider: arkName, StatusCode: resp.StatusCode, Message: "empty response"}
	}

	text := contentText(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", &ProviderError{Provider: arkName, StatusCode: resp.StatusCode, Message: "empty response"}
	}
	return text, nil
}

// contentText accepts message content as a plain string, an array of
// segments (strings or {text}), or a single {text} object.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var segs []json.RawMessage
	if err := json.Unmarshal(raw, &segs); err == nil {
		parts := make([]string, 0, len(segs))
		for _, seg := range segs {
			if t := segmentText(seg); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	}

	return strings.TrimSpace(segmentText(raw))
}

func segmentText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Text
	}
	return ""
}
