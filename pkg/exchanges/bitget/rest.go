package bitget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bitget-trader/pkg/exchanges/common"
)

const defaultBaseURL = "https://api.bitget.com"

// productType identifies the USDT-margined perpetual futures product line.
const productType = "USDT-FUTURES"

// APIError is a non-success envelope from the exchange.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitget: code %s: %s", e.Code, e.Message)
}

// Config holds REST client settings.
type Config struct {
	Credentials Credentials
	BaseURL     string
	MarginCoin  string // settlement coin, defaults to USDT
}

// Client handles Bitget USDT-M futures REST endpoints.
type Client struct {
	cfg         Config
	auth        *Authenticator
	baseURL     string
	httpClient  *http.Client
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
}

// NewClient creates a Bitget REST client. Credentials are required; public
// market-data endpoints work regardless, but construction fails fast so a
// misconfigured deployment never reaches trading calls unauthenticated.
func NewClient(cfg Config) (*Client, error) {
	auth, err := NewAuthenticator(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MarginCoin == "" {
		cfg.MarginCoin = "USDT"
	}
	c := &Client{
		cfg:        cfg,
		auth:       auth,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	c.timeSync = common.NewTimeSync(func() (int64, error) {
		return c.GetServerTime()
	})
	c.rateLimiter = common.NewRateLimiter(20, time.Second) // 20 req/s per endpoint group
	return c, nil
}

// Auth exposes the authenticator for websocket login frames.
func (c *Client) Auth() *Authenticator {
	return c.auth
}

// GetServerTime fetches the exchange server time in milliseconds.
func (c *Client) GetServerTime() (int64, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/v2/public/time")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var out struct {
		apiResponse
		Data struct {
			ServerTime string `json:"serverTime"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return strconv.ParseInt(out.Data.ServerTime, 10, 64)
}

// GetCandles returns up to limit OHLCV bars for symbol, oldest first.
// Granularity uses Bitget notation ("1m", "5m", "1H", "4H", "1D").
func (c *Client) GetCandles(ctx context.Context, symbol, granularity string, limit int) ([]Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("productType", productType)
	params.Set("granularity", granularity)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.do(ctx, http.MethodGet, "/api/v2/mix/market/candles", params, nil)
	if err != nil {
		return nil, err
	}
	// Each row: [ts, open, high, low, close, baseVolume, quoteVolume].
	var rows [][]string
	if err := decodeData(body, &rows); err != nil {
		return nil, fmt.Errorf("decode candles: %w", err)
	}
	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ms, _ := strconv.ParseInt(row[0], 10, 64)
		candles = append(candles, Candle{
			Timestamp: time.UnixMilli(ms),
			Open:      toFloat(row[1]),
			High:      toFloat(row[2]),
			Low:       toFloat(row[3]),
			Close:     toFloat(row[4]),
			Volume:    toFloat(row[5]),
		})
	}
	return candles, nil
}

// GetTicker returns the latest price snapshot for symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("productType", productType)
	body, err := c.do(ctx, http.MethodGet, "/api/v2/mix/market/ticker", params, nil)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Symbol    string `json:"symbol"`
		LastPr    string `json:"lastPr"`
		BidPr     string `json:"bidPr"`
		AskPr     string `json:"askPr"`
		Timestamp string `json:"ts"`
	}
	if err := decodeData(body, &rows); err != nil {
		return nil, fmt.Errorf("decode ticker: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("bitget: empty ticker response for %s", symbol)
	}
	ms, _ := strconv.ParseInt(rows[0].Timestamp, 10, 64)
	return &Ticker{
		Symbol:    rows[0].Symbol,
		LastPrice: toFloat(rows[0].LastPr),
		BidPrice:  toFloat(rows[0].BidPr),
		AskPrice:  toFloat(rows[0].AskPr),
		Timestamp: time.UnixMilli(ms),
	}, nil
}

// GetAccountBalance returns the futures account balance for the margin coin.
func (c *Client) GetAccountBalance(ctx context.Context) (*AccountBalance, error) {
	params := url.Values{}
	params.Set("productType", productType)
	body, err := c.doSigned(ctx, http.MethodGet, "/api/v2/mix/account/accounts", params, nil)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		MarginCoin string `json:"marginCoin"`
		Available  string `json:"available"`
		Equity     string `json:"accountEquity"`
		Locked     string `json:"locked"`
	}
	if err := decodeData(body, &rows); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	for _, row := range rows {
		if row.MarginCoin == c.cfg.MarginCoin {
			return &AccountBalance{
				MarginCoin: row.MarginCoin,
				Available:  toFloat(row.Available),
				Equity:     toFloat(row.Equity),
				Locked:     toFloat(row.Locked),
			}, nil
		}
	}
	return &AccountBalance{MarginCoin: c.cfg.MarginCoin}, nil
}

// PlaceOrder submits a futures order and returns the exchange ack.
func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (*OrderResult, error) {
	payload := map[string]string{
		"symbol":      req.Symbol,
		"productType": productType,
		"marginCoin":  c.cfg.MarginCoin,
		"marginMode":  "crossed",
		"side":        sideParam(req.Side),
		"orderType":   orderTypeParam(req.Type),
		"size":        formatFloat(req.Qty),
	}
	if req.Type == common.OrderTypeLimit {
		payload["price"] = formatFloat(req.Price)
		payload["force"] = "gtc"
	}
	if req.ClientID != "" {
		payload["clientOid"] = req.ClientID
	}
	if req.ReduceOnly {
		payload["reduceOnly"] = "YES"
	}
	body, err := c.doSigned(ctx, http.MethodPost, "/api/v2/mix/order/place-order", nil, payload)
	if err != nil {
		return nil, err
	}
	var out struct {
		OrderID   string `json:"orderId"`
		ClientOid string `json:"clientOid"`
	}
	if err := decodeData(body, &out); err != nil {
		return nil, fmt.Errorf("decode place order: %w", err)
	}
	return &OrderResult{OrderID: out.OrderID, ClientOrderID: out.ClientOid}, nil
}

// SetLeverage sets leverage for a symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	payload := map[string]string{
		"symbol":      symbol,
		"productType": productType,
		"marginCoin":  c.cfg.MarginCoin,
		"leverage":    strconv.Itoa(leverage),
	}
	_, err := c.doSigned(ctx, http.MethodPost, "/api/v2/mix/account/set-leverage", nil, payload)
	return err
}

// SetMarginMode sets the margin mode ("crossed" or "isolated") for a symbol.
func (c *Client) SetMarginMode(ctx context.Context, symbol, mode string) error {
	payload := map[string]string{
		"symbol":      symbol,
		"productType": productType,
		"marginCoin":  c.cfg.MarginCoin,
		"marginMode":  mode,
	}
	_, err := c.doSigned(ctx, http.MethodPost, "/api/v2/mix/account/set-margin-mode", nil, payload)
	return err
}

// PlaceTpsl attaches a stop-loss or take-profit plan order to a position.
// planType is "loss_plan" or "profit_plan"; holdSide is "long" or "short".
func (c *Client) PlaceTpsl(ctx context.Context, symbol, planType, holdSide string, triggerPrice, size float64) error {
	payload := map[string]string{
		"symbol":       symbol,
		"productType":  productType,
		"marginCoin":   c.cfg.MarginCoin,
		"planType":     planType,
		"holdSide":     holdSide,
		"triggerPrice": formatFloat(triggerPrice),
		"triggerType":  "mark_price",
		"size":         formatFloat(size),
	}
	_, err := c.doSigned(ctx, http.MethodPost, "/api/v2/mix/order/place-tpsl-order", nil, payload)
	return err
}

// now returns the signing timestamp, adjusted for server offset when known.
func (c *Client) now() string {
	if c.timeSync != nil && c.timeSync.Offset() != 0 {
		return strconv.FormatInt(c.timeSync.Now(), 10)
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// do sends an unauthenticated request and returns the raw envelope body.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, _ any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.send(req)
}

// doSigned signs the request with the authenticator and sends it. The query
// string is part of the signed request path; POST bodies are signed as JSON.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values, payload map[string]string) ([]byte, error) {
	requestPath := path
	if len(params) > 0 {
		requestPath += "?" + params.Encode()
	}

	var bodyStr string
	var bodyReader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		bodyStr = string(raw)
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return nil, err
	}
	c.auth.SetHeaders(req, c.now(), method, requestPath, bodyStr)
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	if c.rateLimiter != nil && c.rateLimiter.ShouldDelay() {
		time.Sleep(100 * time.Millisecond)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if c.rateLimiter != nil {
		c.rateLimiter.Record()
	}

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("bitget %s %s status %d: %s", req.Method, req.URL.Path, res.StatusCode, string(body))
	}

	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Code != "" && env.Code != "00000" {
		return nil, &APIError{Code: env.Code, Message: env.Msg}
	}
	return body, nil
}

// decodeData extracts the "data" field of an envelope into out.
func decodeData(body []byte, out any) error {
	var wrap struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrap); err != nil {
		return err
	}
	return json.Unmarshal(wrap.Data, out)
}

func toFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func sideParam(s common.Side) string {
	if s == common.SideSell {
		return "sell"
	}
	return "buy"
}

func orderTypeParam(t common.OrderType) string {
	if t == common.OrderTypeLimit {
		return "limit"
	}
	return "market"
}
