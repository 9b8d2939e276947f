package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/railgun-trading/railgun/business/trading/domain"
	"github.com/railgun-trading/railgun/internal/apm"
	"github.com/railgun-trading/railgun/internal/apperror"
	"github.com/railgun-trading/railgun/internal/logger"
)

// RunnerConfig holds trading loop settings.
type RunnerConfig struct {
	Stablecoin string
	// MaxInvest caps the stablecoin committed per cycle. The actual
	// investment is the smaller of this and the free balance.
	MaxInvest decimal.Decimal
	// MinOperatingBalance is the stablecoin floor below which the loop
	// idles instead of trading.
	MinOperatingBalance decimal.Decimal
	// CycleDelay is the pause between cycles.
	CycleDelay time.Duration
}

// lowBalanceBackoffFactor stretches the cycle delay while the balance
// sits under the operating floor.
const lowBalanceBackoffFactor = 10

// Runner is the trading control loop. Each cycle it sizes the
// investment from the live balance, runs detection and hands a stable
// winner to the executor. Soft failures are logged and the loop goes on;
// an unknown capital state stops it.
type Runner struct {
	detector DetectionSource
	executor *Executor
	exchange ExchangePort
	reporter Reporter
	cfg      RunnerConfig
	log      logger.LoggerInterface
	tracer   apm.Tracer
}

// NewRunner creates a Runner.
func NewRunner(
	detector DetectionSource,
	executor *Executor,
	exchange ExchangePort,
	reporter Reporter,
	cfg RunnerConfig,
	log logger.LoggerInterface,
) *Runner {
	return &Runner{
		detector: detector,
		executor: executor,
		exchange: exchange,
		reporter: reporter,
		cfg:      cfg,
		log:      log,
		tracer:   apm.NewTracer("trading.runner"),
	}
}

// Run drives trade cycles until the context is canceled or the capital
// state becomes unknown. The returned error is nil on a clean shutdown.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.reporter.Start(ctx); err != nil {
		r.log.Warn(ctx, "reporter start failed", "error", err)
	}
	defer func() {
		if err := r.reporter.Stop(); err != nil {
			r.log.Warn(ctx, "reporter stop failed", "error", err)
		}
	}()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		cycle++
		err := r.runCycle(ctx, cycle)
		delay := r.cfg.CycleDelay
		switch {
		case err == nil:
		case apperror.IsCode(err, apperror.CodeCapitalStateUnknown):
			r.log.Error(ctx, "capital state unknown, trading halted", "cycle", cycle, "error", err)
			return err
		case apperror.IsCode(err, apperror.CodeBalanceTooLow):
			r.log.Error(ctx, "balance below operating minimum", "cycle", cycle, "error", err)
			delay = r.cfg.CycleDelay * lowBalanceBackoffFactor
		default:
			r.log.Warn(ctx, "trade cycle failed", "cycle", cycle, "error", err)
		}

		if err := r.wait(ctx, delay); err != nil {
			return nil
		}
	}
}

func (r *Runner) runCycle(ctx context.Context, cycle int) error {
	ctx, span := r.tracer.StartSpanFromContext(ctx, "trading.Cycle")
	defer span.End()
	span.SetAttributes(attribute.Int("cycle", cycle))

	balance, err := r.exchange.GetBalance(ctx, r.cfg.Stablecoin)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeExchangeAPIError, "cycle balance check")
	}
	if balance.Free.LessThan(r.cfg.MinOperatingBalance) {
		return apperror.New(apperror.CodeBalanceTooLow,
			apperror.WithContext(balance.Free.String()+" "+r.cfg.Stablecoin))
	}

	invest := decimal.Min(balance.Free, r.cfg.MaxInvest)
	detection, err := r.detector.DetectOnce(ctx, invest)
	if err != nil {
		return err
	}
	r.reporter.ReportDetection(detection)
	if detection.Selected == nil {
		return nil
	}

	report, execErr := r.executor.Execute(ctx, cycle, *detection.Selected)
	r.reporter.ReportCycle(report)
	r.log.Info(ctx, "trade cycle finished",
		"cycle", cycle,
		"ring", report.Ring.String(),
		"outcome", string(report.Outcome),
		"profit", report.Profit.String(),
		"duration", report.Duration)

	if report.Outcome == domain.OutcomeFailed {
		if execErr == nil {
			execErr = apperror.New(apperror.CodeCapitalStateUnknown, apperror.WithContext(report.Reason))
		}
		return execErr
	}

	// Any executed cycle invalidates the streak behind the selection.
	r.detector.ClearStability()
	return execErr
}

func (r *Runner) wait(ctx context.Context, delay time.Duration) error {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
