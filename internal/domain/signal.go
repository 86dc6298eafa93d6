package domain

import "time"

type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionClose Action = "close"
)

type OrderType string

const (
	OrderTypeMarket     OrderType = "market"
	OrderTypeLimit      OrderType = "limit"
	OrderTypeStop       OrderType = "stop"
	OrderTypeStopMarket OrderType = "stop_market"
)

// ConfidenceThreshold is the minimum extractor confidence required before a
// signal is eligible for execution.
const ConfidenceThreshold = 0.7

// Signal is a single trading intent extracted from a chat message. Numeric
// fields use zero as "absent", matching the extractor contract where a zero
// price, stop or quantity is never a real value.
type Signal struct {
	Action       Action
	Symbol       string
	Price        float64
	StopLoss     float64
	TakeProfit   float64
	Quantity     float64
	OrderType    OrderType
	Leverage     int
	Confidence   float64
	SourceChatID int64
	RawMessage   string
	Reasoning    string
}

// Executable reports whether the signal clears the confidence gate.
func (s *Signal) Executable() bool {
	return s.Confidence >= ConfidenceThreshold
}

// Complete reports whether the signal carries the minimum fields needed to
// build an order.
func (s *Signal) Complete() bool {
	return s.Action != "" && s.Symbol != ""
}

// InboundMessage is a chat message as delivered by the transport.
type InboundMessage struct {
	ID          int
	Text        string
	PhotoBase64 string
	Date        time.Time
	ChatID      int64
}

// ExecutionResult is the per-signal outcome forwarded to the notification
// sink. Exactly one is produced for every executed signal.
type ExecutionResult struct {
	Signal       Signal
	SourceChatID int64
	RawMessage   string
	IsSuccess    bool
	Details      string
}
