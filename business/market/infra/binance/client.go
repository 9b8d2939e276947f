package binance

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/railgun-trading/railgun/business/market/domain"
	"github.com/railgun-trading/railgun/internal/apperror"
	"github.com/railgun-trading/railgun/internal/httpclient"
	"github.com/railgun-trading/railgun/internal/logger"
	"github.com/railgun-trading/railgun/internal/ratelimit"
)

// API endpoints and their documented request weights.
const (
	pathBookTicker   = "/api/v3/ticker/bookTicker"
	pathExchangeInfo = "/api/v3/exchangeInfo"
	pathAccount      = "/api/v3/account"
	pathOrder        = "/api/v3/order"

	weightAllBookTickers = 2
	weightBookTicker     = 1
	weightExchangeInfo   = 10
	weightAccount        = 10
	weightOrder          = 1
)

const apiKeyHeader = "X-MBX-APIKEY"

// ClientConfig holds the REST client configuration.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	SecretKey         string
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client implements app.ExchangeClient against the Binance spot REST API.
type Client struct {
	http    httpclient.Client
	signer  *signer
	limiter *ratelimit.Limiter
	apiKey  string
	log     logger.LoggerInterface
}

// NewClient creates a Binance REST client.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithProviderName("binance"),
		httpclient.WithRequestTimeout(timeout),
	)
	if err != nil {
		return nil, err
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 1100
	}

	return &Client{
		http:    httpClient,
		signer:  newSigner(cfg.SecretKey),
		limiter: ratelimit.New(rpm),
		apiKey:  cfg.APIKey,
		log:     log,
	}, nil
}

// GetAllBookTickers retrieves best bid/ask for every traded symbol.
func (c *Client) GetAllBookTickers(ctx context.Context) ([]domain.BookTicker, error) {
	if err := c.limiter.WaitWeight(ctx, weightAllBookTickers); err != nil {
		return nil, err
	}

	var raw []bookTickerResponse
	req := c.http.NewRequestWithOptions(
		httpclient.WithResponseErrorHandler(mapAPIError),
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "bookTicker")),
	).SetResult(&raw)

	if _, err := req.Get(ctx, pathBookTicker); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTickerFetchFailed, "all book tickers")
	}

	now := time.Now()
	tickers := make([]domain.BookTicker, 0, len(raw))
	for i := range raw {
		t, err := raw[i].toDomain(now)
		if err != nil {
			c.log.Warn(ctx, "skipping unparsable ticker", "symbol", raw[i].Symbol, "error", err)
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, nil
}

// GetBookTicker retrieves best bid/ask for one symbol.
func (c *Client) GetBookTicker(ctx context.Context, symbol string) (domain.BookTicker, error) {
	if err := c.limiter.WaitWeight(ctx, weightBookTicker); err != nil {
		return domain.BookTicker{}, err
	}

	var raw bookTickerResponse
	req := c.http.NewRequestWithOptions(
		httpclient.WithResponseErrorHandler(mapAPIError),
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "bookTicker")),
	).SetQueryParam("symbol", symbol).SetResult(&raw)

	if _, err := req.Get(ctx, pathBookTicker); err != nil {
		return domain.BookTicker{}, apperror.Wrap(err, apperror.CodeTickerFetchFailed, symbol)
	}

	return raw.toDomain(time.Now())
}

// GetExchangeInfo retrieves trading rules for all actively traded symbols.
func (c *Client) GetExchangeInfo(ctx context.Context) ([]domain.SymbolConstraints, error) {
	if err := c.limiter.WaitWeight(ctx, weightExchangeInfo); err != nil {
		return nil, err
	}

	var raw exchangeInfoResponse
	req := c.http.NewRequestWithOptions(
		httpclient.WithResponseErrorHandler(mapAPIError),
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "exchangeInfo")),
	).SetResult(&raw)

	if _, err := req.Get(ctx, pathExchangeInfo); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeExchangeInfoFetchFailed, "exchange info")
	}

	constraints := make([]domain.SymbolConstraints, 0, len(raw.Symbols))
	for i := range raw.Symbols {
		c2, ok, err := raw.Symbols[i].toDomain()
		if err != nil {
			c.log.Warn(ctx, "skipping symbol with bad filters", "symbol", raw.Symbols[i].Symbol, "error", err)
			continue
		}
		if ok {
			constraints = append(constraints, c2)
		}
	}
	return constraints, nil
}

// GetBalance retrieves the spot balance for one asset.
func (c *Client) GetBalance(ctx context.Context, asset string) (domain.Balance, error) {
	if err := c.limiter.WaitWeight(ctx, weightAccount); err != nil {
		return domain.Balance{}, err
	}

	var raw accountResponse
	req := c.http.NewRequestWithOptions(
		httpclient.WithResponseErrorHandler(mapAPIError),
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "account")),
	).SetHeader(apiKeyHeader, c.apiKey).
		SetRawQuery(c.signer.sign(url.Values{})).
		SetResult(&raw)

	if _, err := req.Get(ctx, pathAccount); err != nil {
		return domain.Balance{}, apperror.Wrap(err, apperror.CodeExchangeAPIError, "account")
	}

	for _, b := range raw.Balances {
		if b.Asset != asset {
			continue
		}
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return domain.Balance{}, err
		}
		locked, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return domain.Balance{}, err
		}
		return domain.Balance{Asset: asset, Free: free, Locked: locked}, nil
	}

	// An asset missing from the account report simply has zero balance.
	return domain.Balance{Asset: asset, Free: decimal.Zero, Locked: decimal.Zero}, nil
}

// PlaceLimitOrder submits a GTC limit order.
func (c *Client) PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, qty, price decimal.Decimal) (domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", string(domain.OrderTypeLimit))
	params.Set("timeInForce", "GTC")
	params.Set("quantity", qty.String())
	params.Set("price", price.String())

	return c.submitOrder(ctx, params)
}

// PlaceMarketOrder submits a market order.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal) (domain.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", string(domain.OrderTypeMarket))
	params.Set("quantity", qty.String())

	return c.submitOrder(ctx, params)
}

func (c *Client) submitOrder(ctx context.Context, params url.Values) (domain.Order, error) {
	if err := c.limiter.WaitWeight(ctx, weightOrder); err != nil {
		return domain.Order{}, err
	}

	var raw orderResponse
	req := c.http.NewRequestWithOptions(
		httpclient.WithResponseErrorHandler(mapAPIError),
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "order")),
	).SetHeader(apiKeyHeader, c.apiKey).
		SetRawQuery(c.signer.sign(params)).
		SetResult(&raw)

	if _, err := req.Post(ctx, pathOrder); err != nil {
		return domain.Order{}, err
	}

	return raw.toDomain()
}

// GetOrder retrieves the current state of an order.
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64) (domain.Order, error) {
	if err := c.limiter.WaitWeight(ctx, weightOrder); err != nil {
		return domain.Order{}, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	var raw orderResponse
	req := c.http.NewRequestWithOptions(
		httpclient.WithResponseErrorHandler(mapAPIError),
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "order")),
	).SetHeader(apiKeyHeader, c.apiKey).
		SetRawQuery(c.signer.sign(params)).
		SetResult(&raw)

	if _, err := req.Get(ctx, pathOrder); err != nil {
		return domain.Order{}, err
	}

	return raw.toDomain()
}

// CancelOrder cancels an open order and returns its final report.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (domain.Order, error) {
	if err := c.limiter.WaitWeight(ctx, weightOrder); err != nil {
		return domain.Order{}, err
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	var raw orderResponse
	req := c.http.NewRequestWithOptions(
		httpclient.WithResponseErrorHandler(mapAPIError),
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "order")),
	).SetHeader(apiKeyHeader, c.apiKey).
		SetRawQuery(c.signer.sign(params)).
		SetResult(&raw)

	if _, err := req.Delete(ctx, pathOrder); err != nil {
		return domain.Order{}, err
	}

	return raw.toDomain()
}
