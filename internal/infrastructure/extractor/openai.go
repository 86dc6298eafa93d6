package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

const defaultModel = openai.GPT4oMini

const systemPrompt = `You are an expert in extracting cryptocurrency trading signals from messages from text and/or photo.
Your task is to determine if a message contains trading signals and extract all trading information from it.

A single message may contain multiple trading signals for different symbols or the same symbol.
For example: "BTC/USDT BUY 45000, ETH/USDT SELL 3000" contains 2 signals.

Response format must be JSON:
{
  "signals": [
    {
      "isSignal": boolean,
      "action": "buy" | "sell" | "close" | null,
      "symbol": "BTC/USDT" | null,
      "price": number | null,
      "stopLoss": number | null,
      "takeProfit": number | null,
      "quantity": number | null,
      "orderType": "market" | "limit",
      "leverage": number | null,
      "confidence": number (0-1),
      "reasoning": string
    }
  ],
  "hasMultipleSignals": boolean
}

Order type (orderType):
- "market" - if mentioned "buy set up", "market", "now", "immediately", "at market", "current price"
- "limit" - if a specific entry price is mentioned
- Default to "market" if not explicitly specified

Leverage (leverage):
- Extract the leverage value if mentioned in the message (e.g. "leverage 10x", "10x", "with 10x leverage").
- If not specified, set leverage to null.

If this is not a trading signal, return empty signals array and hasMultipleSignals: false.

Always return an array of signals, even if there's only one signal.`

// OpenAIExtractor extracts trading signals from chat messages through a chat
// completion. Any failure along the way yields an empty signal list; the
// caller never sees extraction errors.
type OpenAIExtractor struct {
	client   *openai.Client
	model    string
	notifier domain.Notifier
	log      *zap.Logger
}

func NewOpenAIExtractor(apiKey, model string, notifier domain.Notifier, log *zap.Logger) *OpenAIExtractor {
	if model == "" {
		model = defaultModel
	}
	return &OpenAIExtractor{
		client:   openai.NewClient(apiKey),
		model:    model,
		notifier: notifier,
		log:      log,
	}
}

func (e *OpenAIExtractor) ExtractSignals(ctx context.Context, msg domain.InboundMessage) []domain.Signal {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(msg)},
		},
		Temperature: 0.1,
		MaxTokens:   3000,
	}

	var resp openai.ChatCompletionResponse
	operation := func() error {
		r, err := e.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}
	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx))
	if err != nil {
		e.log.Error("Failed to analyze message for signals", zap.Error(err))
		return nil
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		e.log.Error("No content received from completion")
		return nil
	}

	e.reportUsage(ctx, resp.Usage)

	signals, err := parseSignals(resp.Choices[0].Message.Content, msg)
	if err != nil {
		e.log.Error("Failed to parse extracted signals", zap.Error(err))
		return nil
	}
	return signals
}

func (e *OpenAIExtractor) reportUsage(ctx context.Context, usage openai.Usage) {
	if e.notifier == nil {
		return
	}
	text := fmt.Sprintf(
		"🔍 Message analysis completed\n\n📊 Token usage:\n• Input: %d tokens\n• Output: %d tokens\n• Total: %d tokens",
		usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	if err := e.notifier.SendLogMessage(ctx, text); err != nil {
		e.log.Error("Failed to send token usage notification", zap.Error(err))
	}
}

func buildPrompt(msg domain.InboundMessage) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following message and extract ALL trading signals from it:\n\n")
	if msg.Text != "" {
		sb.WriteString("Text: " + msg.Text + "\n\n")
	}
	if msg.PhotoBase64 != "" {
		sb.WriteString("Photo (base64):\n" + msg.PhotoBase64 + "\n\n")
	}
	sb.WriteString("Look for multiple signals in the same message. Each signal should be a separate object in the signals array.\n")
	sb.WriteString("Respond in JSON format as specified in the instructions.")
	return sb.String()
}

type llmSignal struct {
	IsSignal   bool     `json:"isSignal"`
	Action     *string  `json:"action"`
	Symbol     *string  `json:"symbol"`
	Price      *float64 `json:"price"`
	StopLoss   *float64 `json:"stopLoss"`
	TakeProfit *float64 `json:"takeProfit"`
	Quantity   *float64 `json:"quantity"`
	OrderType  string   `json:"orderType"`
	Leverage   *float64 `json:"leverage"`
	Confidence float64  `json:"confidence"`
	Reasoning  *string  `json:"reasoning"`
}

type llmResponse struct {
	Signals []llmSignal `json:"signals"`
}

// parseSignals decodes the completion content, tolerating a markdown code
// fence around the JSON body.
func parseSignals(content string, msg domain.InboundMessage) ([]domain.Signal, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}

	signals := make([]domain.Signal, 0, len(parsed.Signals))
	for _, s := range parsed.Signals {
		signal := domain.Signal{
			OrderType:    domain.OrderTypeMarket,
			Confidence:   s.Confidence,
			SourceChatID: msg.ChatID,
			RawMessage:   msg.Text,
		}
		// Entries the model flagged as non-signals keep an absent action
		// so execution rejects them downstream.
		if s.IsSignal && s.Action != nil {
			signal.Action = domain.Action(*s.Action)
		}
		if s.Symbol != nil {
			signal.Symbol = *s.Symbol
		}
		if s.Price != nil {
			signal.Price = *s.Price
		}
		if s.StopLoss != nil {
			signal.StopLoss = *s.StopLoss
		}
		if s.TakeProfit != nil {
			signal.TakeProfit = *s.TakeProfit
		}
		if s.Quantity != nil {
			signal.Quantity = *s.Quantity
		}
		if s.OrderType != "" {
			signal.OrderType = domain.OrderType(s.OrderType)
		}
		if s.Leverage != nil {
			signal.Leverage = int(*s.Leverage)
		}
		if s.Reasoning != nil {
			signal.Reasoning = *s.Reasoning
		}
		signals = append(signals, signal)
	}
	return signals, nil
}
