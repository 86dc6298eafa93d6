package domain

import "time"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side; protective legs always sit opposite the
// entry.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

type LegKind string

const (
	LegEntry      LegKind = "entry"
	LegStop       LegKind = "stop"
	LegTakeProfit LegKind = "takeProfit"
)

// OrderLeg is one fully specified order to submit to the exchange. Price is
// set only for limit legs, TriggerPrice only for stop legs.
type OrderLeg struct {
	Symbol       string
	Side         Side
	Kind         LegKind
	Type         OrderType
	Amount       float64
	Price        float64
	TriggerPrice float64
	PositionSide PositionSide
}

// Order is an order as acknowledged by the exchange.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      OrderType
	Status    string
	Amount    float64
	Price     float64
	CreatedAt time.Time
}

// Position is an open position on the exchange.
type Position struct {
	Symbol        string
	Side          PositionSide
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
	Leverage      int
}

type Ticker struct {
	Symbol string
	Last   float64
	Time   time.Time
}

type Balance struct {
	Free  float64
	Used  float64
	Total float64
}
