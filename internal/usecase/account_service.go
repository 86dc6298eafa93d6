package usecase

import (
	"context"

	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

// AccountService exposes manual account operations (balance, positions, order
// management) on top of the router. Failures resolve to zero values; these
// are operator conveniences, not execution-critical paths.
type AccountService struct {
	router           *AccountRouter
	defaultAccountID string
	log              *zap.Logger
}

func NewAccountService(router *AccountRouter, defaultAccountID string, log *zap.Logger) *AccountService {
	return &AccountService{
		router:           router,
		defaultAccountID: defaultAccountID,
		log:              log,
	}
}

// clientFor routes by chat when one is given, otherwise falls back to the
// default account.
func (s *AccountService) clientFor(chatID int64) domain.ExchangeClient {
	if chatID != 0 {
		acc, err := s.router.RouteAccount(chatID)
		if err != nil {
			return nil
		}
		return acc.Client
	}

	acc, err := s.router.Lookup(s.defaultAccountID)
	if err != nil {
		return nil
	}
	return acc.Client
}

// Balance returns the free balance of the given currency, zero on any failure.
func (s *AccountService) Balance(ctx context.Context, currency string, chatID int64) float64 {
	client := s.clientFor(chatID)
	if client == nil {
		return 0
	}

	balances, err := client.FetchBalance(ctx)
	if err != nil {
		s.log.Error("Failed to fetch balance",
			zap.String("currency", currency),
			zap.Error(err))
		return 0
	}
	return balances[currency].Free
}

// CurrentPrice returns the last traded price on the default account, zero on
// any failure.
func (s *AccountService) CurrentPrice(ctx context.Context, symbol string) float64 {
	client := s.clientFor(0)
	if client == nil {
		return 0
	}

	ticker, err := client.FetchTicker(ctx, symbol)
	if err != nil {
		s.log.Error("Failed to fetch ticker",
			zap.String("symbol", symbol),
			zap.Error(err))
		return 0
	}
	return ticker.Last
}

// ClosePosition closes the matching open position with a market order on the
// opposite side. When positionSide is empty, the first open long or short is
// taken.
func (s *AccountService) ClosePosition(ctx context.Context, symbol string, positionSide domain.PositionSide, chatID int64) bool {
	client := s.clientFor(chatID)
	if client == nil {
		return false
	}

	var symbols []string
	if symbol != "" {
		symbols = []string{symbol}
	}
	positions, err := client.FetchPositions(ctx, symbols)
	if err != nil {
		s.log.Error("Failed to fetch positions", zap.Error(err))
		return false
	}

	var position *domain.Position
	for _, p := range positions {
		if p.Size <= 0 {
			continue
		}
		if positionSide == "" || p.Side == positionSide {
			position = p
			break
		}
	}
	if position == nil {
		return false
	}

	side := domain.SideSell
	if position.Side == domain.PositionShort {
		side = domain.SideBuy
	}

	order, err := client.CreateOrder(ctx, domain.OrderLeg{
		Symbol:       symbol,
		Side:         side,
		Kind:         domain.LegEntry,
		Type:         domain.OrderTypeMarket,
		Amount:       position.Size,
		PositionSide: position.Side,
	})
	if err != nil {
		s.log.Error("Failed to close position",
			zap.String("symbol", symbol),
			zap.Error(err))
		return false
	}

	s.log.Info("Closed position",
		zap.String("order_id", order.ID),
		zap.String("position_side", string(position.Side)))
	return true
}

// OpenOrders lists open orders, empty on any failure.
func (s *AccountService) OpenOrders(ctx context.Context, symbol string, chatID int64) []*domain.Order {
	client := s.clientFor(chatID)
	if client == nil {
		return nil
	}

	orders, err := client.FetchOpenOrders(ctx, symbol)
	if err != nil {
		s.log.Error("Failed to get open orders", zap.Error(err))
		return nil
	}
	return orders
}

// CancelOrder cancels one order, false on any failure.
func (s *AccountService) CancelOrder(ctx context.Context, orderID, symbol string, chatID int64) bool {
	client := s.clientFor(chatID)
	if client == nil {
		return false
	}

	if err := client.CancelOrder(ctx, orderID, symbol); err != nil {
		s.log.Error("Failed to cancel order",
			zap.String("order_id", orderID),
			zap.Error(err))
		return false
	}

	s.log.Info("Cancelled order", zap.String("order_id", orderID))
	return true
}

// Positions lists open positions with non-zero size, empty on any failure.
func (s *AccountService) Positions(ctx context.Context, symbol string, chatID int64) []*domain.Position {
	client := s.clientFor(chatID)
	if client == nil {
		return nil
	}

	var symbols []string
	if symbol != "" {
		symbols = []string{symbol}
	}
	positions, err := client.FetchPositions(ctx, symbols)
	if err != nil {
		s.log.Error("Failed to get positions", zap.Error(err))
		return nil
	}

	var open []*domain.Position
	for _, p := range positions {
		if p.Size > 0 {
			open = append(open, p)
		}
	}
	return open
}
