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

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient implements ChatClient, VisionClient and ImageClient over the
// OpenAI REST API.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	imageModel string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey, imageModel string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    openAIBaseURL,
		imageModel: imageModel,
		httpClient: newHTTPClient(),
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	payload := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}

	var response struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", payload, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New(errors.ErrCodeProviderFailure, "openai returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Analyze(ctx context.Context, data []byte, mimeType, instruction string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	payload := map[string]interface{}{
		"model": "gpt-4o",
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": instruction},
					{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
				},
			},
		},
	}

	var response struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", payload, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New(errors.ErrCodeProviderFailure, "openai returned no choices")
	}

	return response.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt, quality string) (string, error) {
	payload := map[string]interface{}{
		"model":   c.imageModel,
		"prompt":  prompt,
		"n":       1,
		"quality": quality,
	}

	var response struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/images/generations", payload, &response); err != nil {
		return "", err
	}
	if len(response.Data) == 0 {
		return "", errors.New(errors.ErrCodeProviderFailure, "openai returned no image")
	}

	return response.Data[0].URL, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeProviderFailure, "openai request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.New(errors.ErrCodeProviderFailure,
			fmt.Sprintf("openai returned %d: %s", resp.StatusCode, string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeProviderFailure, "failed to decode openai response")
	}

	return nil
}
