package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/shopspring/decimal"
)

const DefaultAnthropicModel = "claude-sonnet-4-5"

const priceSystemPrompt = `You report the current public list price of business software.
Answer with a single JSON object and nothing else:
{"known": true|false, "monthly_price": "<decimal per seat per month>", "currency": "<ISO 4217>"}
Use "known": false when you are not confident about the vendor's pricing.`

// AnthropicLookup asks a Claude model for a vendor's monthly list price.
type AnthropicLookup struct {
	model    string
	complete func(ctx context.Context, system, prompt string) (string, error)
}

func NewAnthropicLookup(apiKey, model string) *AnthropicLookup {
	if model == "" {
		model = DefaultAnthropicModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	l := &AnthropicLookup{model: model}
	l.complete = func(ctx context.Context, system, prompt string) (string, error) {
		message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(l.model),
			MaxTokens: 256,
			System: []anthropic.TextBlockParam{
				{Text: system, CacheControl: anthropic.NewCacheControlEphemeralParam()},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", fmt.Errorf("anthropic API error: %w", err)
		}
		for _, block := range message.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", fmt.Errorf("no text content in anthropic response")
	}
	return l
}

func (l *AnthropicLookup) Lookup(ctx context.Context, vendor, category string) (Quote, error) {
	prompt := fmt.Sprintf("Vendor: %s\nCategory: %s\nWhat is the standard monthly list price?", vendor, category)
	text, err := l.complete(ctx, priceSystemPrompt, prompt)
	if err != nil {
		return Quote{}, err
	}
	quote, err := parsePriceReply(text)
	if err != nil {
		return Quote{}, err
	}
	quote.Vendor = vendor
	quote.Category = category
	quote.Source = "anthropic:" + l.model
	return quote, nil
}

type priceReply struct {
	Known        bool   `json:"known"`
	MonthlyPrice string `json:"monthly_price"`
	Currency     string `json:"currency"`
}

// parsePriceReply extracts the JSON object from a model reply. Replies that
// say the price is unknown map to ErrPriceUnknown; anything unparseable is
// an error so that callers treat it as a failed lookup.
func parsePriceReply(text string) (Quote, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Quote{}, fmt.Errorf("price reply has no JSON object")
	}

	var reply priceReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return Quote{}, fmt.Errorf("decode price reply: %w", err)
	}
	if !reply.Known || strings.TrimSpace(reply.MonthlyPrice) == "" {
		return Quote{}, ErrPriceUnknown
	}
	price, err := decimal.NewFromString(strings.TrimSpace(reply.MonthlyPrice))
	if err != nil {
		return Quote{}, fmt.Errorf("decode monthly_price: %w", err)
	}
	if !price.IsPositive() {
		return Quote{}, ErrPriceUnknown
	}
	return Quote{MonthlyPrice: price, Currency: strings.ToUpper(reply.Currency)}, nil
}
