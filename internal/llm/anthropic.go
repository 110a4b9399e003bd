package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bszymanski/aichat_bot/pkg/errors"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
	anthropicMaxTok  = 4096
)

// AnthropicClient implements ChatClient and VisionClient over the Anthropic
// Messages API.
type AnthropicClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		apiKey:     apiKey,
		baseURL:    anthropicBaseURL,
		httpClient: newHTTPClient(),
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	payload := map[string]interface{}{
		"model":      model,
		"max_tokens": anthropicMaxTok,
		"messages":   messages,
	}
	return c.messages(ctx, payload)
}

func (c *AnthropicClient) Analyze(ctx context.Context, data []byte, mimeType, instruction string) (string, error) {
	payload := map[string]interface{}{
		"model":      "claude-3-5-sonnet",
		"max_tokens": anthropicMaxTok,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "image",
						"source": map[string]string{
							"type":       "base64",
							"media_type": mimeType,
							"data":       base64.StdEncoding.EncodeToString(data),
						},
					},
					{"type": "text", "text": instruction},
				},
			},
		},
	}
	return c.messages(ctx, payload)
}

func (c *AnthropicClient) messages(ctx context.Context, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternalError, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeProviderFailure, "anthropic request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", errors.New(errors.ErrCodeProviderFailure,
			fmt.Sprintf("anthropic returned %d: %s", resp.StatusCode, string(data)))
	}

	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeProviderFailure, "failed to decode anthropic response")
	}

	for _, block := range response.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", errors.New(errors.ErrCodeProviderFailure, "anthropic returned no text content")
}
