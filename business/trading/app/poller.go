package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	marketDomain "github.com/railgun-trading/railgun/business/market/domain"
	"github.com/railgun-trading/railgun/internal/apm"
	"github.com/railgun-trading/railgun/internal/apperror"
	"github.com/railgun-trading/railgun/internal/logger"
)

// PollerConfig tunes the order polling state machine.
type PollerConfig struct {
	// Interval is the delay between status polls.
	Interval time.Duration
	// StallPolls is how many consecutive polls an order may sit fully
	// unfilled before the machine intervenes.
	StallPolls int
	// PartialStallPolls is how many consecutive polls a partially filled
	// order may sit without progress before an early exit is considered.
	// It is larger than StallPolls because a partial fill proves there is
	// liquidity at the price.
	PartialStallPolls int
	// MinShortSaleProfit is the stablecoin margin over the committed
	// value required before an early exit sale is worth taking.
	MinShortSaleProfit decimal.Decimal
}

// AwaitOutcome classifies how an awaited order resolved.
type AwaitOutcome int

const (
	// AwaitFilled means the order filled completely.
	AwaitFilled AwaitOutcome = iota
	// AwaitCanceled means the order ended canceled. Partial fills may
	// still be recorded on the returned order states.
	AwaitCanceled
	// AwaitLiquidated means the order stalled and the position was
	// exited through a fallback sale at the prevailing bid.
	AwaitLiquidated
)

// AwaitOptions carries per-leg context into the polling state machine.
type AwaitOptions struct {
	// FirstLeg marks the leg that commits the stablecoin. A stalled
	// first leg is canceled outright, there is no position to exit.
	FirstLeg bool
	// IsFallbackSale marks an exit sale spawned by a previous stall.
	// A stalled fallback is canceled, never chained into another one.
	IsFallbackSale bool
	// CommittedValue is the stablecoin amount the cycle has put at risk,
	// used as the floor for early exit decisions.
	CommittedValue decimal.Decimal
	// QuoteValueSymbol prices the order's quote proceeds in the
	// stablecoin. Empty when the quote asset is the stablecoin itself.
	QuoteValueSymbol string
}

// AwaitResult is the terminal state of an awaited order. Order always
// holds the original order; Fallback holds the exit sale when one was
// issued.
type AwaitResult struct {
	Order    marketDomain.Order
	Fallback *marketDomain.Order
	Outcome  AwaitOutcome
}

// Poller drives an open order to a terminal state. It polls at a fixed
// interval and reacts to stalls: a fully unfilled order on a later leg is
// exited through a sale at the prevailing bid when that locks in enough
// value, a stalled partial fill is liquidated once its exit value beats
// the committed capital. The fallback sale runs through the same loop
// with IsFallbackSale set, so a stalled exit cannot spawn another exit.
type Poller struct {
	exchange    ExchangePort
	constraints marketDomain.ConstraintSet
	cfg         PollerConfig
	log         logger.LoggerInterface
	tracer      apm.Tracer
}

// NewPoller creates a Poller.
func NewPoller(exchange ExchangePort, constraints marketDomain.ConstraintSet, cfg PollerConfig, log logger.LoggerInterface) *Poller {
	return &Poller{
		exchange:    exchange,
		constraints: constraints,
		cfg:         cfg,
		log:         log,
		tracer:      apm.NewTracer("trading.poller"),
	}
}

// Await polls the order until it resolves. Errors from Await mean the
// order's state is unknown and the caller must stop trading.
func (p *Poller) Await(ctx context.Context, order marketDomain.Order, opts AwaitOptions) (AwaitResult, error) {
	ctx, span := p.tracer.StartSpanFromContext(ctx, "trading.AwaitOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", order.Symbol),
		attribute.Int64("order_id", order.OrderID),
	)

	// original is fixed once the first order leaves the loop; current is
	// whichever order the machine is polling right now.
	original := order
	current := order
	var fallback *marketDomain.Order
	onFallback := opts.IsFallbackSale

	newStreak := 0
	partialStreak := 0
	lastExecuted := current.ExecutedQty

	settle := func(o marketDomain.Order, outcome AwaitOutcome) AwaitResult {
		if fallback != nil {
			*fallback = o
			return AwaitResult{Order: original, Fallback: fallback, Outcome: outcome}
		}
		return AwaitResult{Order: o, Outcome: outcome}
	}

	for {
		if err := p.wait(ctx); err != nil {
			return AwaitResult{Order: original, Fallback: fallback}, err
		}

		o, err := p.exchange.GetOrder(ctx, current.Symbol, current.OrderID)
		if err != nil {
			return AwaitResult{Order: original, Fallback: fallback},
				apperror.Wrap(err, apperror.CodeCapitalStateUnknown, fmt.Sprintf("polling %s order %d", current.Symbol, current.OrderID))
		}

		switch o.Status {
		case marketDomain.OrderStatusFilled:
			if fallback != nil {
				return settle(o, AwaitLiquidated), nil
			}
			return settle(o, AwaitFilled), nil

		case marketDomain.OrderStatusCanceled:
			// Canceled from outside the machine. Whatever filled is on
			// the returned order state.
			return settle(o, AwaitCanceled), nil

		case marketDomain.OrderStatusNew:
			newStreak++
			if newStreak < p.cfg.StallPolls {
				continue
			}
			if opts.FirstLeg || onFallback {
				canceled, err := p.cancel(ctx, o)
				if err != nil {
					return AwaitResult{Order: original, Fallback: fallback}, err
				}
				if canceled.IsFilled() {
					if fallback != nil {
						return settle(canceled, AwaitLiquidated), nil
					}
					return settle(canceled, AwaitFilled), nil
				}
				p.log.Warn(ctx, "stalled order canceled",
					"symbol", o.Symbol, "order_id", o.OrderID, "polls", newStreak)
				return settle(canceled, AwaitCanceled), nil
			}

			exit, ok, err := p.tryExit(ctx, o, opts)
			if err != nil {
				return AwaitResult{Order: original, Fallback: fallback}, err
			}
			if !ok {
				// Not enough to exit on. Leave the order working at its
				// better price and check again next poll.
				continue
			}
			if exit.canceled.IsFilled() {
				return settle(exit.canceled, AwaitFilled), nil
			}
			original = exit.canceled
			fallback = &exit.sale
			current = exit.sale
			onFallback = true
			newStreak, partialStreak = 0, 0
			lastExecuted = exit.sale.ExecutedQty

		case marketDomain.OrderStatusPartiallyFilled:
			if o.ExecutedQty.GreaterThan(lastExecuted) {
				lastExecuted = o.ExecutedQty
				newStreak, partialStreak = 0, 0
				continue
			}
			partialStreak++
			if partialStreak < p.cfg.PartialStallPolls {
				continue
			}
			if opts.FirstLeg || onFallback {
				canceled, err := p.cancel(ctx, o)
				if err != nil {
					return AwaitResult{Order: original, Fallback: fallback}, err
				}
				if canceled.IsFilled() {
					if fallback != nil {
						return settle(canceled, AwaitLiquidated), nil
					}
					return settle(canceled, AwaitFilled), nil
				}
				p.log.Warn(ctx, "stalled partial fill canceled",
					"symbol", o.Symbol, "order_id", o.OrderID,
					"executed", canceled.ExecutedQty.String())
				return settle(canceled, AwaitCanceled), nil
			}

			exit, ok, err := p.tryExit(ctx, o, opts)
			if err != nil {
				return AwaitResult{Order: original, Fallback: fallback}, err
			}
			if !ok {
				continue
			}
			if exit.canceled.IsFilled() {
				return settle(exit.canceled, AwaitFilled), nil
			}
			original = exit.canceled
			fallback = &exit.sale
			current = exit.sale
			onFallback = true
			newStreak, partialStreak = 0, 0
			lastExecuted = exit.sale.ExecutedQty
		}
	}
}

type exitOrders struct {
	canceled marketDomain.Order
	sale     marketDomain.Order
}

// tryExit decides whether unwinding the stalled order at the prevailing
// bid beats the committed capital by the configured margin, and if so
// cancels the order and submits the exit sale. ok is false when holding
// on is the better play.
func (p *Poller) tryExit(ctx context.Context, o marketDomain.Order, opts AwaitOptions) (exitOrders, bool, error) {
	book, err := p.exchange.GetBookTicker(ctx, o.Symbol)
	if err != nil {
		return exitOrders{}, false, apperror.Wrap(err, apperror.CodeCapitalStateUnknown, fmt.Sprintf("pricing exit for %s", o.Symbol))
	}
	bid := book.BidPrice

	// Everything the order would yield if exited now, in the quote asset:
	// fills already settled plus the remainder sold at the bid.
	proceeds := o.CumQuoteQty.Add(o.RemainingQty().Mul(bid))
	value := proceeds
	if opts.QuoteValueSymbol != "" {
		quoteBook, err := p.exchange.GetBookTicker(ctx, opts.QuoteValueSymbol)
		if err != nil {
			return exitOrders{}, false, apperror.Wrap(err, apperror.CodeCapitalStateUnknown, fmt.Sprintf("pricing exit for %s", opts.QuoteValueSymbol))
		}
		value = proceeds.Mul(quoteBook.BidPrice)
	}

	margin := value.Sub(opts.CommittedValue)
	if margin.LessThanOrEqual(p.cfg.MinShortSaleProfit) {
		return exitOrders{}, false, nil
	}

	canceled, err := p.cancel(ctx, o)
	if err != nil {
		return exitOrders{}, false, err
	}
	if canceled.IsFilled() {
		return exitOrders{canceled: canceled}, true, nil
	}

	c, ok := p.constraints.Get(o.Symbol)
	if !ok {
		return exitOrders{}, false, apperror.New(apperror.CodeUnknownSymbol, apperror.WithContext(o.Symbol))
	}
	qty := c.NormalizeQty(canceled.RemainingQty())
	if c.MaxQty.IsPositive() && qty.GreaterThan(c.MaxQty) {
		// Oversized remainders get capped to the lot ceiling rather than
		// stranded; the leftover surfaces in the cycle remainder check.
		qty = c.NormalizeQty(c.MaxQty)
	}
	if qty.LessThan(c.MinQty) {
		// Remainder is below the lot floor, nothing sellable is left.
		return exitOrders{canceled: canceled}, false, nil
	}

	sale, err := p.exchange.PlaceLimitOrder(ctx, o.Symbol, marketDomain.SideSell, qty, c.NormalizePrice(bid))
	if err != nil {
		return exitOrders{}, false, apperror.Wrap(err, apperror.CodeCapitalStateUnknown, fmt.Sprintf("placing exit sale on %s", o.Symbol))
	}

	p.log.Warn(ctx, "stalled order exited at bid",
		"symbol", o.Symbol, "order_id", o.OrderID,
		"exit_order_id", sale.OrderID,
		"qty", qty.String(), "bid", bid.String(),
		"margin", margin.String())
	return exitOrders{canceled: canceled, sale: sale}, true, nil
}

// cancel cancels an order and returns its final state. An order that hit
// a terminal state before the cancel landed is returned as is.
func (p *Poller) cancel(ctx context.Context, o marketDomain.Order) (marketDomain.Order, error) {
	canceled, err := p.exchange.CancelOrder(ctx, o.Symbol, o.OrderID)
	if err == nil {
		return canceled, nil
	}
	if apperror.IsCode(err, apperror.CodeOrderNotFound) {
		final, getErr := p.exchange.GetOrder(ctx, o.Symbol, o.OrderID)
		if getErr != nil {
			return o, apperror.Wrap(getErr, apperror.CodeCapitalStateUnknown, fmt.Sprintf("confirming %s order %d after cancel", o.Symbol, o.OrderID))
		}
		return final, nil
	}
	return o, apperror.Wrap(err, apperror.CodeCapitalStateUnknown, fmt.Sprintf("canceling %s order %d", o.Symbol, o.OrderID))
}

func (p *Poller) wait(ctx context.Context) error {
	t := time.NewTimer(p.cfg.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return apperror.Wrap(ctx.Err(), apperror.CodeCapitalStateUnknown, "polling interrupted with an open order")
	case <-t.C:
		return nil
	}
}
