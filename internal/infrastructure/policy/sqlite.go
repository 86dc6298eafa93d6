package policy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultExchange  = "binance"
	defaultTradeType = "futures"
)

// SQLiteStore persists the trading policy for one user/exchange/tradeType
// identity and journals executed orders. Change subscription is implemented
// by polling the policy revision.
type SQLiteStore struct {
	db           *sql.DB
	userID       string
	exchange     string
	tradeType    string
	pollInterval time.Duration
	log          *zap.Logger
}

func NewSQLiteStore(dbPath, userID string, pollInterval time.Duration, log *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite handles one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY and keeps :memory: databases on one handle.
	db.SetMaxOpenConns(1)

	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	store := &SQLiteStore{
		db:           db,
		userID:       userID,
		exchange:     defaultExchange,
		tradeType:    defaultTradeType,
		pollInterval: pollInterval,
		log:          log,
	}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trading_policies (
			user_id TEXT NOT NULL,
			exchange TEXT NOT NULL,
			trade_type TEXT NOT NULL,
			is_enabled BOOLEAN NOT NULL,
			max_position_size REAL NOT NULL,
			risk_percentage REAL NOT NULL,
			revision INTEGER NOT NULL DEFAULT 1,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, exchange, trade_type)
		);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			kind TEXT NOT NULL,
			type TEXT NOT NULL,
			amount REAL NOT NULL,
			price REAL NOT NULL,
			trigger_price REAL NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetTradingConfig returns the stored policy, or the default when no document
// exists yet.
func (s *SQLiteStore) GetTradingConfig(ctx context.Context) (domain.TradingConfig, error) {
	cfg, _, err := s.read(ctx)
	return cfg, err
}

func (s *SQLiteStore) read(ctx context.Context) (domain.TradingConfig, int64, error) {
	query := `SELECT is_enabled, max_position_size, risk_percentage, revision
			  FROM trading_policies WHERE user_id = ? AND exchange = ? AND trade_type = ?`
	row := s.db.QueryRowContext(ctx, query, s.userID, s.exchange, s.tradeType)

	var cfg domain.TradingConfig
	var revision int64
	err := row.Scan(&cfg.IsEnabled, &cfg.MaxPositionSize, &cfg.RiskPercentage, &revision)
	if err == sql.ErrNoRows {
		return domain.DefaultTradingConfig(), 0, nil
	}
	if err != nil {
		return domain.DefaultTradingConfig(), 0, err
	}
	return cfg, revision, nil
}

func (s *SQLiteStore) SetTradingConfig(ctx context.Context, cfg domain.TradingConfig) error {
	query := `INSERT INTO trading_policies (user_id, exchange, trade_type, is_enabled, max_position_size, risk_percentage, revision, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, 1, ?)
			  ON CONFLICT(user_id, exchange, trade_type) DO UPDATE SET
			  is_enabled=excluded.is_enabled,
			  max_position_size=excluded.max_position_size,
			  risk_percentage=excluded.risk_percentage,
			  revision=trading_policies.revision+1,
			  updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		s.userID, s.exchange, s.tradeType,
		cfg.IsEnabled, cfg.MaxPositionSize, cfg.RiskPercentage, time.Now())
	return err
}

// UpdateTradingConfig applies a partial update. Updating a policy that was
// never stored is an error; the watch seeds the default document at startup.
func (s *SQLiteStore) UpdateTradingConfig(ctx context.Context, update domain.PolicyUpdate) error {
	var sets []string
	var args []interface{}

	if update.IsEnabled != nil {
		sets = append(sets, "is_enabled = ?")
		args = append(args, *update.IsEnabled)
	}
	if update.MaxPositionSize != nil {
		sets = append(sets, "max_position_size = ?")
		args = append(args, *update.MaxPositionSize)
	}
	if update.RiskPercentage != nil {
		sets = append(sets, "risk_percentage = ?")
		args = append(args, *update.RiskPercentage)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "revision = revision + 1", "updated_at = ?")
	args = append(args, time.Now(), s.userID, s.exchange, s.tradeType)

	query := "UPDATE trading_policies SET " + strings.Join(sets, ", ") +
		" WHERE user_id = ? AND exchange = ? AND trade_type = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("no trading policy document for user %s", s.userID)
	}
	return nil
}

// WatchTradingConfig seeds the default document when none exists, delivers
// the current snapshot immediately, then polls for revision changes and
// delivers a full snapshot on each one. The returned cancel is idempotent.
func (s *SQLiteStore) WatchTradingConfig(ctx context.Context, onChange func(domain.TradingConfig)) (func(), error) {
	_, revision, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if revision == 0 {
		if err := s.SetTradingConfig(ctx, domain.DefaultTradingConfig()); err != nil {
			return nil, err
		}
		s.log.Info("Trading policy document did not exist, seeded default")
	}

	cfg, revision, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	onChange(cfg)

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() { close(stop) })
	}

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		last := revision
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				cfg, rev, err := s.read(ctx)
				if err != nil {
					s.log.Error("Failed to poll trading policy", zap.Error(err))
					continue
				}
				if rev != last {
					last = rev
					onChange(cfg)
				}
			}
		}
	}()

	return cancel, nil
}

// --- Order journal ---

func (s *SQLiteStore) SaveOrder(ctx context.Context, accountID string, leg domain.OrderLeg, order *domain.Order) error {
	query := `INSERT INTO orders (account_id, order_id, symbol, side, kind, type, amount, price, trigger_price, status, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		accountID, order.ID, order.Symbol, string(leg.Side), string(leg.Kind), string(leg.Type),
		order.Amount, order.Price, leg.TriggerPrice, order.Status, order.CreatedAt)
	return err
}

func (s *SQLiteStore) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `SELECT order_id, symbol, side, type, amount, price, status, created_at
			  FROM orders ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var o domain.Order
		var side, orderType string
		if err := rows.Scan(&o.ID, &o.Symbol, &side, &orderType, &o.Amount, &o.Price, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Side = domain.Side(side)
		o.Type = domain.OrderType(orderType)
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}
