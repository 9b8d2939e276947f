package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/railgun-trading/railgun/business/market/domain"
	"github.com/railgun-trading/railgun/internal/apm"
	"github.com/railgun-trading/railgun/internal/apperror"
	"github.com/railgun-trading/railgun/internal/circuitbreaker"
	"github.com/railgun-trading/railgun/internal/logger"
)

// MarketServiceConfig holds retry settings for exchange access.
type MarketServiceConfig struct {
	RetryAttempts int
	RetryBackoff  time.Duration
}

// MarketService fronts the exchange client with a circuit breaker and
// retry on transient failures. Order placement is never retried: a timed
// out submit may still have reached the matching engine.
type MarketService struct {
	client ExchangeClient
	cfg    MarketServiceConfig
	log    logger.LoggerInterface
	tracer apm.Tracer

	dataCB *circuitbreaker.CircuitBreaker[[]domain.BookTicker]
	infoCB *circuitbreaker.CircuitBreaker[[]domain.SymbolConstraints]

	orderCounter metric.Int64Counter
}

// NewMarketService creates a MarketService.
func NewMarketService(client ExchangeClient, cfg MarketServiceConfig, log logger.LoggerInterface) *MarketService {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	meter := otel.GetMeterProvider().Meter("market.service")
	orderCounter, _ := meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Total orders submitted to the exchange"))

	s := &MarketService{
		client:       client,
		cfg:          cfg,
		log:          log,
		tracer:       apm.NewTracer("market.service"),
		orderCounter: orderCounter,
	}

	dataCfg := circuitbreaker.DefaultConfig("exchange-market-data")
	dataCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.dataCB = circuitbreaker.New[[]domain.BookTicker](dataCfg)

	infoCfg := circuitbreaker.DefaultConfig("exchange-info")
	s.infoCB = circuitbreaker.New[[]domain.SymbolConstraints](infoCfg)

	return s
}

// GetAllBookTickers fetches all tickers through the breaker with retry.
func (s *MarketService) GetAllBookTickers(ctx context.Context) ([]domain.BookTicker, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "market.GetAllBookTickers")
	defer span.End()

	tickers, err := s.dataCB.Execute(func() ([]domain.BookTicker, error) {
		return s.withRetryTickers(ctx, s.client.GetAllBookTickers)
	})
	if err != nil {
		span.NoticeError(err)
		if circuitbreaker.IsOpen(err) {
			return nil, apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err))
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("tickers", len(tickers)))
	return tickers, nil
}

// GetExchangeInfo fetches symbol constraints through the breaker.
func (s *MarketService) GetExchangeInfo(ctx context.Context) ([]domain.SymbolConstraints, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "market.GetExchangeInfo")
	defer span.End()

	constraints, err := s.infoCB.Execute(func() ([]domain.SymbolConstraints, error) {
		return s.client.GetExchangeInfo(ctx)
	})
	if err != nil {
		span.NoticeError(err)
		if circuitbreaker.IsOpen(err) {
			return nil, apperror.New(apperror.CodeCircuitOpen, apperror.WithCause(err))
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("symbols", len(constraints)))
	return constraints, nil
}

// GetBookTicker retrieves one symbol's best bid/ask.
func (s *MarketService) GetBookTicker(ctx context.Context, symbol string) (domain.BookTicker, error) {
	var ticker domain.BookTicker
	var err error

	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		ticker, err = s.client.GetBookTicker(ctx, symbol)
		if err == nil || !s.isRetryable(err) {
			return ticker, err
		}
		if waitErr := s.backoff(ctx, attempt); waitErr != nil {
			return domain.BookTicker{}, waitErr
		}
	}
	return ticker, err
}

// GetBalance retrieves the free balance for one asset.
func (s *MarketService) GetBalance(ctx context.Context, asset string) (domain.Balance, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "market.GetBalance")
	defer span.End()

	balance, err := s.client.GetBalance(ctx, asset)
	if err != nil {
		span.NoticeError(err)
		return domain.Balance{}, err
	}
	return balance, nil
}

// PlaceLimitOrder submits a limit order. No retry.
func (s *MarketService) PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, qty, price decimal.Decimal) (domain.Order, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "market.PlaceLimitOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("side", string(side)),
		attribute.String("qty", qty.String()),
		attribute.String("price", price.String()),
	)

	order, err := s.client.PlaceLimitOrder(ctx, symbol, side, qty, price)
	if err != nil {
		span.NoticeError(err)
		return domain.Order{}, err
	}
	s.orderCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("side", string(side)),
		attribute.String("type", "LIMIT"),
	))
	return order, nil
}

// PlaceMarketOrder submits a market order. No retry.
func (s *MarketService) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal) (domain.Order, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "market.PlaceMarketOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", symbol),
		attribute.String("side", string(side)),
		attribute.String("qty", qty.String()),
	)

	order, err := s.client.PlaceMarketOrder(ctx, symbol, side, qty)
	if err != nil {
		span.NoticeError(err)
		return domain.Order{}, err
	}
	s.orderCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("side", string(side)),
		attribute.String("type", "MARKET"),
	))
	return order, nil
}

// GetOrder retrieves an order's current state, retrying transient errors.
func (s *MarketService) GetOrder(ctx context.Context, symbol string, orderID int64) (domain.Order, error) {
	var order domain.Order
	var err error

	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		order, err = s.client.GetOrder(ctx, symbol, orderID)
		if err == nil || !s.isRetryable(err) {
			return order, err
		}
		if waitErr := s.backoff(ctx, attempt); waitErr != nil {
			return domain.Order{}, waitErr
		}
	}
	return order, err
}

// CancelOrder cancels an open order.
func (s *MarketService) CancelOrder(ctx context.Context, symbol string, orderID int64) (domain.Order, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "market.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int64("order_id", orderID))

	order, err := s.client.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		span.NoticeError(err)
		return domain.Order{}, err
	}
	return order, nil
}

func (s *MarketService) withRetryTickers(ctx context.Context, fn func(context.Context) ([]domain.BookTicker, error)) ([]domain.BookTicker, error) {
	var tickers []domain.BookTicker
	var err error

	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		tickers, err = fn(ctx)
		if err == nil || !s.isRetryable(err) {
			return tickers, err
		}
		s.log.Warn(ctx, "retrying ticker fetch", "attempt", attempt+1, "error", err)
		if waitErr := s.backoff(ctx, attempt); waitErr != nil {
			return nil, waitErr
		}
	}
	return tickers, err
}

// isRetryable reports whether the error is transient. Rate limits get a
// longer pause but are retried; application-level rejections are not.
func (s *MarketService) isRetryable(err error) bool {
	switch apperror.GetCode(err) {
	case apperror.CodeRateLimited, apperror.CodeTickerFetchFailed, apperror.CodeExchangeConnectionFailed:
		return true
	}
	return false
}

func (s *MarketService) backoff(ctx context.Context, attempt int) error {
	delay := s.cfg.RetryBackoff << attempt
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
