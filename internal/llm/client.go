package llm

import (
	"context"
	"net/http"
	"time"
)

// The provider clients are deliberately thin pass-throughs: the bot treats
// chat completion, vision analysis and image generation as opaque, fallible
// remote calls. Provider-specific error surfaces collapse to a single
// PROVIDER_FAILURE at the call site.

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient produces a completion for a conversation on a given model.
type ChatClient interface {
	Complete(ctx context.Context, model string, messages []Message) (string, error)
}

// VisionClient analyzes an image or document and answers the instruction.
type VisionClient interface {
	Analyze(ctx context.Context, data []byte, mimeType, instruction string) (string, error)
}

// ImageClient generates an image for a prompt and returns its URL.
type ImageClient interface {
	Generate(ctx context.Context, prompt, quality string) (string, error)
}

const requestTimeout = 120 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
