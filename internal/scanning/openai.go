package scanning

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const openAIMaxTokens = 1500

// OpenAI implements the Scanner interface using an OpenAI vision model
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a new OpenAI Scanner instance
func NewOpenAI(apiKey string, modelName string) (*OpenAI, error) {
	return NewOpenAIWithBaseURL(apiKey, modelName, "")
}

// NewOpenAIWithBaseURL creates an OpenAI Scanner against a compatible API
// at baseURL. An empty baseURL uses the public endpoint.
func NewOpenAIWithBaseURL(apiKey, modelName, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if modelName == "" {
		modelName = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
	}, nil
}

// ScanReceipt sends the receipt image as a data URL to the chat completions API
func (o *OpenAI) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (RawReceipt, error) {
	img, err := normalizeImage(imageData, contentType)
	if err != nil {
		return nil, err
	}

	dataURL := "data:" + pngMIME + ";base64," + base64.StdEncoding.EncodeToString(img)
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: openAIMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: receiptScanPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailHigh},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling openai API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	raw, err := parseRawReceipt(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing openai response: %w", err)
	}
	return raw, nil
}

// Close is a no-op; the client holds no resources
func (o *OpenAI) Close() error {
	return nil
}
