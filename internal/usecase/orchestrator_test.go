package usecase

import (
	"context"
	"testing"

	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

func newTestOrchestrator(extractor *MockExtractor, mock *MockExchange) (*Orchestrator, *MockNotifier) {
	notifier := &MockNotifier{}
	router := newTestRouter(RoutedAccount{
		Account: domain.Account{ID: "primary", AllowedChatIDs: []int64{100}},
		Client:  mock,
	})
	policy := staticPolicy{cfg: domain.TradingConfig{
		IsEnabled:       true,
		MaxPositionSize: 100,
		RiskPercentage:  2,
	}}
	coordinator := NewExecutionCoordinator(policy, router, NewOrderBuilder(), nil, notifier, zap.NewNop())
	return NewOrchestrator(extractor, coordinator, notifier, zap.NewNop()), notifier
}

func inbound() domain.InboundMessage {
	return domain.InboundMessage{ID: 1, Text: "Buy BTC now", ChatID: 100}
}

func TestHandleMessageNoSignals(t *testing.T) {
	mock := &MockExchange{}
	o, notifier := newTestOrchestrator(&MockExtractor{}, mock)

	o.HandleMessage(context.Background(), inbound())
	if len(notifier.Results) != 0 {
		t.Errorf("No signals means no result notifications, got %d", len(notifier.Results))
	}
	if len(mock.CreatedLegs) != 0 {
		t.Errorf("No orders expected")
	}
}

func TestHandleMessageConfidenceGate(t *testing.T) {
	mock := &MockExchange{}
	extractor := &MockExtractor{Signals: []domain.Signal{{
		Action:       domain.ActionBuy,
		Symbol:       "BTC/USDT",
		Price:        45000,
		OrderType:    domain.OrderTypeMarket,
		Confidence:   0.69,
		SourceChatID: 100,
	}}}
	o, notifier := newTestOrchestrator(extractor, mock)

	o.HandleMessage(context.Background(), inbound())
	if len(mock.CreatedLegs) != 0 {
		t.Errorf("Low-confidence signal must never reach the exchange")
	}
	if len(notifier.Results) != 0 {
		t.Errorf("Low-confidence signal produces no result notification")
	}
}

func TestHandleMessageMixedConfidence(t *testing.T) {
	mock := &MockExchange{}
	extractor := &MockExtractor{Signals: []domain.Signal{
		{
			Action:       domain.ActionBuy,
			Symbol:       "BTC/USDT",
			Price:        45000,
			OrderType:    domain.OrderTypeMarket,
			Confidence:   0.9,
			SourceChatID: 100,
		},
		{
			Action:       domain.ActionSell,
			Symbol:       "ETH/USDT",
			Price:        3000,
			OrderType:    domain.OrderTypeMarket,
			Confidence:   0.5,
			SourceChatID: 100,
		},
	}}
	o, notifier := newTestOrchestrator(extractor, mock)

	o.HandleMessage(context.Background(), inbound())
	if len(notifier.Results) != 1 {
		t.Fatalf("Exactly one result expected, got %d", len(notifier.Results))
	}
	if notifier.Results[0].Signal.Symbol != "BTC/USDT" {
		t.Errorf("Wrong signal executed: %s", notifier.Results[0].Signal.Symbol)
	}
	if !notifier.Results[0].IsSuccess {
		t.Errorf("Expected a successful result")
	}
}

func TestHandleMessageFailureIsolation(t *testing.T) {
	// First signal targets an unroutable chat; the second must still run.
	mock := &MockExchange{}
	extractor := &MockExtractor{Signals: []domain.Signal{
		{
			Action:       domain.ActionBuy,
			Symbol:       "BTC/USDT",
			Price:        45000,
			OrderType:    domain.OrderTypeMarket,
			Confidence:   0.9,
			SourceChatID: 999,
		},
		{
			Action:       domain.ActionBuy,
			Symbol:       "ETH/USDT",
			Price:        3000,
			OrderType:    domain.OrderTypeMarket,
			Confidence:   0.9,
			SourceChatID: 100,
		},
	}}
	o, notifier := newTestOrchestrator(extractor, mock)

	o.HandleMessage(context.Background(), inbound())
	if len(notifier.Results) != 2 {
		t.Fatalf("Each executed signal gets exactly one result, got %d", len(notifier.Results))
	}
	if notifier.Results[0].IsSuccess {
		t.Errorf("First signal has no routable account and must fail")
	}
	if notifier.Results[0].Details != "Order execution failed" {
		t.Errorf("Unexpected failure details: %q", notifier.Results[0].Details)
	}
	if !notifier.Results[1].IsSuccess {
		t.Errorf("Second signal must succeed despite the first failing")
	}
}

func TestHandleMessagePanicRecovery(t *testing.T) {
	o, notifier := newTestOrchestrator(&MockExtractor{DoPanic: true}, &MockExchange{})

	o.HandleMessage(context.Background(), inbound())

	if len(notifier.Contexts) != 1 || notifier.Contexts[0] != "Message Processing" {
		t.Errorf("Panic must surface as a Message Processing notification, got %v", notifier.Contexts)
	}
}

func TestHandleMessageSignalPanicDoesNotSkipSiblings(t *testing.T) {
	mock := &MockExchange{PanicOn: "BTC/USDT"}
	extractor := &MockExtractor{Signals: []domain.Signal{
		{
			Action:       domain.ActionBuy,
			Symbol:       "BTC/USDT",
			Price:        45000,
			OrderType:    domain.OrderTypeMarket,
			Confidence:   0.9,
			SourceChatID: 100,
		},
		{
			Action:       domain.ActionBuy,
			Symbol:       "ETH/USDT",
			Price:        3000,
			OrderType:    domain.OrderTypeMarket,
			Confidence:   0.9,
			SourceChatID: 100,
		},
	}}
	o, notifier := newTestOrchestrator(extractor, mock)

	o.HandleMessage(context.Background(), inbound())

	if len(notifier.Results) != 2 {
		t.Fatalf("A panicking signal must not skip its siblings, got %d results", len(notifier.Results))
	}
	if notifier.Results[0].IsSuccess {
		t.Errorf("The panicking signal must report failure")
	}
	if notifier.Results[0].Details != "Order execution failed" {
		t.Errorf("Unexpected failure details: %q", notifier.Results[0].Details)
	}
	if !notifier.Results[1].IsSuccess {
		t.Errorf("The sibling signal must still execute and succeed")
	}
	for _, c := range notifier.Contexts {
		if c == "Message Processing" {
			t.Errorf("A per-signal panic must not reach the message boundary")
		}
	}
}

func TestHandleMessageResultCarriesSource(t *testing.T) {
	extractor := &MockExtractor{Signals: []domain.Signal{{
		Action:       domain.ActionBuy,
		Symbol:       "BTC/USDT",
		Price:        45000,
		OrderType:    domain.OrderTypeMarket,
		Confidence:   0.9,
		SourceChatID: 100,
	}}}
	o, notifier := newTestOrchestrator(extractor, &MockExchange{})

	msg := inbound()
	o.HandleMessage(context.Background(), msg)
	if len(notifier.Results) != 1 {
		t.Fatalf("Expected one result")
	}
	result := notifier.Results[0]
	if result.SourceChatID != msg.ChatID || result.RawMessage != msg.Text {
		t.Errorf("Result must carry the source chat and raw text: %+v", result)
	}
}
