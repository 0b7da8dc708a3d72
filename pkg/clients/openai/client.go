package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"routedog/pkg/config"
	"routedog/pkg/prompting"
)

// ErrUnparsableReply is returned when the model answer is not a JSON array
// of strings.
var ErrUnparsableReply = errors.New("model reply is not a JSON array of strings")

type Client struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func isModelInList(model string, models []openai.Model) bool {
	for i := range models {
		if models[i].ID == model {
			return true
		}
	}

	return false
}

// NewClient builds a vision client from config. Extra request options are
// appended after the configured ones.
func NewClient(cfg config.OpenAIConfig, opts ...option.RequestOption) *Client {
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	}
	if cfg.Timeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.Timeout))
	}

	return &Client{
		client:    openai.NewClient(append(base, opts...)...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// VerifyModel checks connectivity and that the configured model exists.
func (c *Client) VerifyModel(ctx context.Context) error {
	modelList, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	if !isModelInList(c.model, modelList.Data) {
		return fmt.Errorf("such model does not exists: %s", c.model)
	}

	return nil
}

func (c *Client) makePromptParams(imageBase64 string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.model),
		MaxTokens: openai.Int(c.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompting.AddressExtractionPrompt()),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:image/jpeg;base64," + imageBase64,
				}),
			}),
		},
	}
}

// ExtractAddresses asks the vision model for every address visible in the
// image. image is base64, with or without a data URL prefix.
func (c *Client) ExtractAddresses(ctx context.Context, image string) ([]string, error) {
	response, err := c.client.Chat.Completions.New(ctx, c.makePromptParams(stripDataURL(image)))
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrUnparsableReply)
	}

	content := trimMessage(response.Choices[0].Message.Content)
	log.Ctx(ctx).Debug().
		Str("model", response.Model).
		Int64("total_tokens", response.Usage.TotalTokens).
		Str("reply", content).
		Msg("vision reply received")

	return parseAddresses(content)
}

func parseAddresses(content string) ([]string, error) {
	if !gjson.Valid(content) {
		return nil, fmt.Errorf("%w: %q", ErrUnparsableReply, content)
	}

	res := gjson.Parse(content)
	if res.Type == gjson.Null {
		return []string{}, nil
	}
	if !res.IsArray() {
		return nil, fmt.Errorf("%w: %q", ErrUnparsableReply, content)
	}

	items := res.Array()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.String {
			return nil, fmt.Errorf("%w: element %s", ErrUnparsableReply, item.Raw)
		}
		if s := strings.TrimSpace(item.Str); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// stripDataURL drops a "data:image/...;base64," prefix.
func stripDataURL(image string) string {
	if !strings.HasPrefix(image, "data:image/") {
		return image
	}
	if _, payload, ok := strings.Cut(image, ","); ok {
		return payload
	}
	return image
}

func trimMessage(message string) string {
	message = strings.TrimSpace(message)
	message = strings.TrimPrefix(message, "```json")
	message = strings.TrimPrefix(message, "```")
	message = strings.TrimSuffix(message, "```")
	return strings.TrimSpace(message)
}
