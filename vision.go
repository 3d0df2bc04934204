package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicVisionModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIVisionModel = "gpt-4o-mini"

type VisionUsage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u VisionUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// ExtractFoodItems sends one captured image plus the instruction prompt to the
// configured vision provider and returns the raw reply text. Exactly one call
// per capture: no caching, no retries. Failures come back as *ExtractionError.
func ExtractFoodItems(ctx context.Context, cfg Config, img CapturedImage, prompt string) (string, VisionUsage, error) {
	if strings.TrimSpace(prompt) == "" {
		prompt = extractionPrompt
	}

	switch cfg.VisionProvider {
	case "openai":
		model := cfg.VisionModel
		if model == "" {
			model = defaultOpenAIVisionModel
		}
		log.Printf("vision extract provider=openai model=%s media=%s bytes=%d", model, img.MediaType, len(img.Data))
		return callOpenAIVision(ctx, cfg, model, img, prompt)
	default:
		model := cfg.VisionModel
		if model == "" {
			model = defaultAnthropicVisionModel
		}
		log.Printf("vision extract provider=anthropic model=%s media=%s bytes=%d", model, img.MediaType, len(img.Data))
		return callAnthropicVision(ctx, cfg, model, img, prompt)
	}
}

// --- Anthropic ---

func callAnthropicVision(ctx context.Context, cfg Config, model string, img CapturedImage, prompt string) (string, VisionUsage, error) {
	client := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(cfg.VisionMaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(img.MediaType, img.Data),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		log.Printf("vision anthropic error: %v", err)
		return "", VisionUsage{}, &ExtractionError{Provider: "anthropic", Err: err}
	}
	usage := VisionUsage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			log.Printf("vision anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), usage.InputTokens, usage.OutputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, &ExtractionError{Provider: "anthropic", Err: fmt.Errorf("no text content in response")}
}

// --- OpenAI ---

type openAIVisionRequest struct {
	Model     string                `json:"model"`
	MaxTokens int                   `json:"max_tokens,omitempty"`
	Messages  []openAIVisionMessage `json:"messages"`
}

type openAIVisionMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIVisionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func callOpenAIVision(ctx context.Context, cfg Config, model string, img CapturedImage, prompt string) (string, VisionUsage, error) {
	reqBody := openAIVisionRequest{
		Model:     model,
		MaxTokens: cfg.VisionMaxTokens,
		Messages: []openAIVisionMessage{
			{
				Role: "user",
				Content: []openAIContentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &openAIImageURL{URL: img.DataURI()}},
				},
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", VisionUsage{}, &ExtractionError{Provider: "openai", Err: fmt.Errorf("marshaling request: %w", err)}
	}

	url := strings.TrimSuffix(cfg.OpenAIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", VisionUsage{}, &ExtractionError{Provider: "openai", Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.OpenAIAPIKey)

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		log.Printf("vision openai error: %v", err)
		return "", VisionUsage{}, &ExtractionError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", VisionUsage{}, &ExtractionError{Provider: "openai", Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", VisionUsage{}, &ExtractionError{Provider: "openai", Status: resp.StatusCode, Err: fmt.Errorf("non-success status: %s", strings.TrimSpace(string(respBody)))}
	}

	var openAIResp openAIVisionResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return "", VisionUsage{}, &ExtractionError{Provider: "openai", Status: resp.StatusCode, Err: fmt.Errorf("parsing response: %w", err)}
	}

	if openAIResp.Error != nil {
		log.Printf("vision openai api error: %s", openAIResp.Error.Message)
		return "", VisionUsage{}, &ExtractionError{Provider: "openai", Status: resp.StatusCode, Err: fmt.Errorf("%s", openAIResp.Error.Message)}
	}

	usage := VisionUsage{}
	if openAIResp.Usage != nil {
		usage.InputTokens = openAIResp.Usage.PromptTokens
		usage.OutputTokens = openAIResp.Usage.CompletionTokens
	}

	if len(openAIResp.Choices) == 0 || strings.TrimSpace(openAIResp.Choices[0].Message.Content) == "" {
		return "", usage, &ExtractionError{Provider: "openai", Status: resp.StatusCode, Err: fmt.Errorf("empty reply body")}
	}

	content := openAIResp.Choices[0].Message.Content
	log.Printf("vision openai response size=%d tokens_in=%d tokens_out=%d", len(content), usage.InputTokens, usage.OutputTokens)
	return content, usage, nil
}
