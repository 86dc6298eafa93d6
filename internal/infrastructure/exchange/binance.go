package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	BinanceFuturesBaseURL = "https://fapi.binance.com"
	BinanceFuturesWSURL   = "wss://fstream.binance.com/stream"

	recvWindowMs = 5000

	// markPriceTTL bounds how stale a streamed price may be before
	// FetchTicker falls back to REST.
	markPriceTTL = 5 * time.Second
)

type markPrice struct {
	price float64
	at    time.Time
}

// BinanceClient is a USD-M futures account client. One instance per account.
type BinanceClient struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string
	client    *http.Client
	limiter   *rate.Limiter
	log       *zap.Logger

	mu         sync.Mutex
	markets    map[string]bool
	markPrices map[string]markPrice
}

func NewBinanceClient(apiKey, apiSecret, baseURL, wsURL string, log *zap.Logger) *BinanceClient {
	if baseURL == "" {
		baseURL = BinanceFuturesBaseURL
	}
	if wsURL == "" {
		wsURL = BinanceFuturesWSURL
	}
	return &BinanceClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   baseURL,
		wsURL:     wsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		// Binance allows 1200 request weight units per minute.
		limiter:    rate.NewLimiter(rate.Every(time.Minute/1200), 10),
		log:        log,
		markets:    make(map[string]bool),
		markPrices: make(map[string]markPrice),
	}
}

// --- REST API ---

func (b *BinanceClient) sign(params string) string {
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(params))
	return hex.EncodeToString(h.Sum(nil))
}

func (b *BinanceClient) sendRequest(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", strconv.Itoa(recvWindowMs))
		params.Set("signature", b.sign(params.Encode()))
	}

	uri := b.baseURL + path
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return nil, fmt.Errorf("binance error %d: %s", apiErr.Code, apiErr.Msg)
		}
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}

// normalizeSymbol maps extractor symbols like "BTC/USDT" onto exchange ones.
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

func (b *BinanceClient) LoadMarkets(ctx context.Context) error {
	body, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", nil, false)
	if err != nil {
		return err
	}

	var result struct {
		Symbols []struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range result.Symbols {
		if s.Status == "TRADING" {
			b.markets[s.Symbol] = true
		}
	}
	if len(b.markets) == 0 {
		return fmt.Errorf("no tradable markets returned")
	}
	return nil
}

func (b *BinanceClient) FetchBalance(ctx context.Context) (map[string]domain.Balance, error) {
	body, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v2/balance", nil, true)
	if err != nil {
		return nil, err
	}

	var result []struct {
		Asset            string `json:"asset"`
		Balance          string `json:"balance"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	balances := make(map[string]domain.Balance, len(result))
	for _, r := range result {
		total, _ := strconv.ParseFloat(r.Balance, 64)
		free, _ := strconv.ParseFloat(r.AvailableBalance, 64)
		balances[r.Asset] = domain.Balance{
			Free:  free,
			Used:  total - free,
			Total: total,
		}
	}
	return balances, nil
}

func (b *BinanceClient) FetchTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	sym := normalizeSymbol(symbol)

	b.mu.Lock()
	cached, ok := b.markPrices[sym]
	b.mu.Unlock()
	if ok && time.Since(cached.at) < markPriceTTL {
		return &domain.Ticker{Symbol: sym, Last: cached.price, Time: cached.at}, nil
	}

	params := url.Values{}
	params.Set("symbol", sym)
	body, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v1/ticker/price", params, false)
	if err != nil {
		return nil, err
	}

	var result struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
		Time   int64  `json:"time"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	last, err := strconv.ParseFloat(result.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("bad ticker price %q: %w", result.Price, err)
	}
	return &domain.Ticker{
		Symbol: result.Symbol,
		Last:   last,
		Time:   time.UnixMilli(result.Time),
	}, nil
}

func (b *BinanceClient) SetLeverage(ctx context.Context, leverage int, symbol string) error {
	params := url.Values{}
	params.Set("symbol", normalizeSymbol(symbol))
	params.Set("leverage", strconv.Itoa(leverage))

	_, err := b.sendRequest(ctx, http.MethodPost, "/fapi/v1/leverage", params, true)
	return err
}

func orderTypeParam(t domain.OrderType) string {
	switch t {
	case domain.OrderTypeLimit:
		return "LIMIT"
	case domain.OrderTypeStop, domain.OrderTypeStopMarket:
		return "STOP_MARKET"
	default:
		return "MARKET"
	}
}

func (b *BinanceClient) CreateOrder(ctx context.Context, leg domain.OrderLeg) (*domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", normalizeSymbol(leg.Symbol))
	params.Set("side", strings.ToUpper(string(leg.Side)))
	params.Set("positionSide", strings.ToUpper(string(leg.PositionSide)))
	params.Set("type", orderTypeParam(leg.Type))
	params.Set("quantity", strconv.FormatFloat(leg.Amount, 'f', -1, 64))

	switch orderTypeParam(leg.Type) {
	case "LIMIT":
		params.Set("price", strconv.FormatFloat(leg.Price, 'f', -1, 64))
		params.Set("timeInForce", "GTC")
	case "STOP_MARKET":
		params.Set("stopPrice", strconv.FormatFloat(leg.TriggerPrice, 'f', -1, 64))
	}

	body, err := b.sendRequest(ctx, http.MethodPost, "/fapi/v1/order", params, true)
	if err != nil {
		return nil, err
	}

	var result struct {
		OrderID    int64  `json:"orderId"`
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		OrigQty    string `json:"origQty"`
		Price      string `json:"price"`
		UpdateTime int64  `json:"updateTime"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	amount, _ := strconv.ParseFloat(result.OrigQty, 64)
	price, _ := strconv.ParseFloat(result.Price, 64)
	return &domain.Order{
		ID:        strconv.FormatInt(result.OrderID, 10),
		Symbol:    result.Symbol,
		Side:      leg.Side,
		Type:      leg.Type,
		Status:    result.Status,
		Amount:    amount,
		Price:     price,
		CreatedAt: time.UnixMilli(result.UpdateTime),
	}, nil
}

func (b *BinanceClient) FetchPositions(ctx context.Context, symbols []string) ([]*domain.Position, error) {
	params := url.Values{}
	if len(symbols) == 1 {
		params.Set("symbol", normalizeSymbol(symbols[0]))
	}

	body, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, true)
	if err != nil {
		return nil, err
	}

	var result []struct {
		Symbol           string `json:"symbol"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		UnRealizedProfit string `json:"unRealizedProfit"`
		Leverage         string `json:"leverage"`
		PositionSide     string `json:"positionSide"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[normalizeSymbol(s)] = true
	}

	var positions []*domain.Position
	for _, r := range result {
		if len(wanted) > 0 && !wanted[r.Symbol] {
			continue
		}

		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		size := amt
		if size < 0 {
			size = -size
		}

		side := domain.PositionLong
		switch r.PositionSide {
		case "SHORT":
			side = domain.PositionShort
		case "BOTH":
			if amt < 0 {
				side = domain.PositionShort
			}
		}

		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		mark, _ := strconv.ParseFloat(r.MarkPrice, 64)
		pnl, _ := strconv.ParseFloat(r.UnRealizedProfit, 64)
		leverage, _ := strconv.Atoi(r.Leverage)

		positions = append(positions, &domain.Position{
			Symbol:        r.Symbol,
			Side:          side,
			Size:          size,
			EntryPrice:    entry,
			MarkPrice:     mark,
			UnrealizedPnL: pnl,
			Leverage:      leverage,
		})
	}
	return positions, nil
}

func (b *BinanceClient) CancelOrder(ctx context.Context, orderID, symbol string) error {
	params := url.Values{}
	params.Set("symbol", normalizeSymbol(symbol))
	params.Set("orderId", orderID)

	_, err := b.sendRequest(ctx, http.MethodDelete, "/fapi/v1/order", params, true)
	return err
}

func (b *BinanceClient) FetchOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", normalizeSymbol(symbol))
	}

	body, err := b.sendRequest(ctx, http.MethodGet, "/fapi/v1/openOrders", params, true)
	if err != nil {
		return nil, err
	}

	var result []struct {
		OrderID int64  `json:"orderId"`
		Symbol  string `json:"symbol"`
		Side    string `json:"side"`
		Type    string `json:"type"`
		Status  string `json:"status"`
		OrigQty string `json:"origQty"`
		Price   string `json:"price"`
		Time    int64  `json:"time"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, 0, len(result))
	for _, r := range result {
		amount, _ := strconv.ParseFloat(r.OrigQty, 64)
		price, _ := strconv.ParseFloat(r.Price, 64)

		side := domain.SideBuy
		if r.Side == "SELL" {
			side = domain.SideSell
		}
		orderType := domain.OrderTypeMarket
		switch r.Type {
		case "LIMIT":
			orderType = domain.OrderTypeLimit
		case "STOP_MARKET", "STOP":
			orderType = domain.OrderTypeStopMarket
		}

		orders = append(orders, &domain.Order{
			ID:        strconv.FormatInt(r.OrderID, 10),
			Symbol:    r.Symbol,
			Side:      side,
			Type:      orderType,
			Status:    r.Status,
			Amount:    amount,
			Price:     price,
			CreatedAt: time.UnixMilli(r.Time),
		})
	}
	return orders, nil
}

// --- WebSocket mark price stream ---

// StreamMarkPrices keeps a live mark-price cache for the given symbols until
// ctx is cancelled. Reconnects with a fixed delay on read errors.
func (b *BinanceClient) StreamMarkPrices(ctx context.Context, symbols []string) {
	if len(symbols) == 0 {
		return
	}

	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		streams = append(streams, strings.ToLower(normalizeSymbol(s))+"@markPrice")
	}
	uri := b.wsURL + "?streams=" + strings.Join(streams, "/")

	for {
		if err := b.readMarkPrices(ctx, uri); err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.Error("Mark price stream failed, reconnecting", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (b *BinanceClient) readMarkPrices(ctx context.Context, uri string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, uri, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// The watcher must not outlive this connection; a reconnecting stream
	// would otherwise pile one up per attempt.
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame struct {
			Data struct {
				Event  string `json:"e"`
				Symbol string `json:"s"`
				Price  string `json:"p"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}
		if frame.Data.Event != "markPriceUpdate" {
			continue
		}

		price, err := strconv.ParseFloat(frame.Data.Price, 64)
		if err != nil {
			continue
		}

		b.mu.Lock()
		b.markPrices[frame.Data.Symbol] = markPrice{price: price, at: time.Now()}
		b.mu.Unlock()
	}
}
