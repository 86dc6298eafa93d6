package usecase

import (
	"errors"

	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

// ErrNoAccountForChat means no initialized account accepts signals from the
// chat. Callers must treat this as "cannot execute", not as retryable.
var ErrNoAccountForChat = errors.New("no exchange account configured for chat")

// RoutedAccount pairs a configured account with its initialized exchange
// client. Client is nil when the account had no usable credentials.
type RoutedAccount struct {
	Account domain.Account
	Client  domain.ExchangeClient
}

// AccountRouter maps an inbound chat identity to exactly one trading account.
// The account list is fixed at construction in declaration order (primary
// before secondary) and never mutated afterwards.
type AccountRouter struct {
	accounts []RoutedAccount
	log      *zap.Logger
}

func NewAccountRouter(accounts []RoutedAccount, log *zap.Logger) *AccountRouter {
	return &AccountRouter{
		accounts: accounts,
		log:      log,
	}
}

// RouteAccount returns the first account, in declaration order, that allows
// chatID and was successfully initialized. Accounts that allow the chat but
// never initialized are skipped and the scan continues.
func (r *AccountRouter) RouteAccount(chatID int64) (*RoutedAccount, error) {
	for i := range r.accounts {
		acc := &r.accounts[i]
		if !acc.Account.AllowsChat(chatID) {
			continue
		}
		if acc.Client == nil {
			continue
		}

		r.log.Info("Routed chat to exchange account",
			zap.Int64("chat_id", chatID),
			zap.String("account", acc.Account.Name))
		return acc, nil
	}

	r.log.Info("No exchange account found for chat", zap.Int64("chat_id", chatID))
	return nil, ErrNoAccountForChat
}

// Lookup returns the initialized account with the given id.
func (r *AccountRouter) Lookup(id string) (*RoutedAccount, error) {
	for i := range r.accounts {
		acc := &r.accounts[i]
		if acc.Account.ID == id && acc.Client != nil {
			return acc, nil
		}
	}
	return nil, ErrNoAccountForChat
}

// Accounts returns the registry in declaration order.
func (r *AccountRouter) Accounts() []RoutedAccount {
	return r.accounts
}
