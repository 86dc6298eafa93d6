package usecase

import (
	"strings"

	"github.com/vitos/signal_trader/internal/domain"
)

const (
	// fallbackPriceDivisor sizes an order when neither quantity nor a
	// reference price is present in the signal.
	fallbackPriceDivisor = 100

	defaultLeverageBTC = 5
	defaultLeverage    = 3
)

// OrderBuilder turns a validated signal into fully specified order legs using
// policy-driven position sizing. All methods are pure.
type OrderBuilder struct{}

func NewOrderBuilder() *OrderBuilder {
	return &OrderBuilder{}
}

// BuildLegs derives the entry leg and, when the signal carries the
// corresponding levels, protective stop-loss and take-profit legs. Legs are
// returned in submission order: entry, stop, take-profit.
func (b *OrderBuilder) BuildLegs(signal domain.Signal, policy domain.TradingConfig) []domain.OrderLeg {
	side := sideForAction(signal.Action)
	positionSide := positionSideForAction(signal.Action)
	amount := b.positionSize(signal, policy)

	entry := domain.OrderLeg{
		Symbol:       signal.Symbol,
		Side:         side,
		Kind:         domain.LegEntry,
		Type:         signal.OrderType,
		Amount:       amount,
		PositionSide: positionSide,
	}
	if signal.OrderType == domain.OrderTypeLimit && signal.Price != 0 {
		entry.Price = signal.Price
	}

	legs := []domain.OrderLeg{entry}

	if signal.StopLoss != 0 {
		legs = append(legs, domain.OrderLeg{
			Symbol:       signal.Symbol,
			Side:         side.Opposite(),
			Kind:         domain.LegStop,
			Type:         domain.OrderTypeStop,
			Amount:       amount,
			TriggerPrice: signal.StopLoss,
			PositionSide: positionSide,
		})
	}

	if signal.TakeProfit != 0 {
		legs = append(legs, domain.OrderLeg{
			Symbol:       signal.Symbol,
			Side:         side.Opposite(),
			Kind:         domain.LegTakeProfit,
			Type:         domain.OrderTypeLimit,
			Amount:       amount,
			Price:        signal.TakeProfit,
			PositionSide: positionSide,
		})
	}

	return legs
}

// Leverage returns the leverage to apply before leg submission: the signal's
// value when present, otherwise a per-symbol default.
func (b *OrderBuilder) Leverage(signal domain.Signal) int {
	if signal.Leverage != 0 {
		return signal.Leverage
	}
	if strings.Contains(signal.Symbol, "BTC") {
		return defaultLeverageBTC
	}
	return defaultLeverage
}

// positionSize uses an explicit quantity verbatim when the operator provided
// one; otherwise it risks policy.RiskPercentage of policy.MaxPositionSize,
// converted to base units at the signal price when one exists.
func (b *OrderBuilder) positionSize(signal domain.Signal, policy domain.TradingConfig) float64 {
	if signal.Quantity != 0 {
		return signal.Quantity
	}

	maxSize := policy.MaxPositionSize
	if maxSize == 0 {
		maxSize = domain.DefaultTradingConfig().MaxPositionSize
	}
	riskPct := policy.RiskPercentage
	if riskPct == 0 {
		riskPct = domain.DefaultTradingConfig().RiskPercentage
	}

	riskAmount := maxSize * riskPct / 100
	if signal.Price != 0 {
		return riskAmount / signal.Price
	}
	return riskAmount / fallbackPriceDivisor
}

// close is submitted as a sell. Closing a short is not distinguished.
func sideForAction(action domain.Action) domain.Side {
	if action == domain.ActionClose {
		return domain.SideSell
	}
	return domain.Side(action)
}

// close falls through to long. Kept as-is for compatibility with existing
// position bookkeeping.
func positionSideForAction(action domain.Action) domain.PositionSide {
	switch action {
	case domain.ActionBuy:
		return domain.PositionLong
	case domain.ActionSell:
		return domain.PositionShort
	}
	return domain.PositionLong
}
