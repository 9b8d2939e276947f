package app

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/railgun-trading/railgun/business/rings/domain"
	"github.com/railgun-trading/railgun/internal/apm"
	"github.com/railgun-trading/railgun/internal/apperror"
	"github.com/railgun-trading/railgun/internal/logger"
)

// DetectorConfig holds detection settings.
type DetectorConfig struct {
	// MinStability is how many consecutive cycles a ring must stay the
	// best candidate before it is handed to execution. Zero trades on the
	// first sighting.
	MinStability int
}

// Detection is the outcome of one detection cycle.
type Detection struct {
	Snapshot   *domain.PriceSnapshot
	Candidates []domain.RingResult
	// Selected is the best candidate once it has held the top spot long
	// enough. Nil when nothing is ready to trade this cycle.
	Selected *domain.RingResult
}

// Detector runs one full detection cycle: fetch tickers, build the biased
// snapshot, evaluate every ring and gate the winner on stability.
type Detector struct {
	tickers   TickerSource
	builder   *SnapshotBuilder
	scheduler *Scheduler
	stability *StabilityTracker
	rings     []domain.Ring
	cfg       DetectorConfig
	log       logger.LoggerInterface
	tracer    apm.Tracer

	cycleCounter     metric.Int64Counter
	candidateCounter metric.Int64Counter
}

// NewDetector creates a Detector over a fixed ring universe.
func NewDetector(
	tickers TickerSource,
	builder *SnapshotBuilder,
	scheduler *Scheduler,
	stability *StabilityTracker,
	rings []domain.Ring,
	cfg DetectorConfig,
	log logger.LoggerInterface,
) *Detector {
	meter := otel.GetMeterProvider().Meter("rings.detector")
	cycleCounter, _ := meter.Int64Counter("detector_cycles_total",
		metric.WithDescription("Total detection cycles run"))
	candidateCounter, _ := meter.Int64Counter("detector_candidates_total",
		metric.WithDescription("Total profitable ring candidates found"))

	return &Detector{
		tickers:          tickers,
		builder:          builder,
		scheduler:        scheduler,
		stability:        stability,
		rings:            rings,
		cfg:              cfg,
		log:              log,
		tracer:           apm.NewTracer("rings.detector"),
		cycleCounter:     cycleCounter,
		candidateCounter: candidateCounter,
	}
}

// Rings returns the ring universe under detection.
func (d *Detector) Rings() []domain.Ring {
	return d.rings
}

// ClearStability resets the streak, for example after an executed trade.
func (d *Detector) ClearStability() {
	d.stability.Clear()
}

// DetectOnce runs a single detection cycle with the given stablecoin
// investment.
func (d *Detector) DetectOnce(ctx context.Context, invest decimal.Decimal) (Detection, error) {
	ctx, span := d.tracer.StartSpanFromContext(ctx, "rings.DetectOnce")
	defer span.End()

	d.cycleCounter.Add(ctx, 1)

	tickers, err := d.tickers.GetAllBookTickers(ctx)
	if err != nil {
		span.NoticeError(err)
		return Detection{}, apperror.Wrap(err, apperror.CodeTickerFetchFailed, "detection cycle")
	}

	snap := d.builder.Build(tickers)
	candidates := d.scheduler.Evaluate(ctx, d.rings, snap, invest)

	detection := Detection{Snapshot: snap, Candidates: candidates}
	d.candidateCounter.Add(ctx, int64(len(candidates)))
	span.SetAttributes(
		attribute.Int("tickers", len(tickers)),
		attribute.Int("candidates", len(candidates)),
	)

	if len(candidates) == 0 {
		return detection, nil
	}

	best := candidates[0]
	best.Stability = d.stability.Observe(best.Ring)

	if best.Stability >= d.cfg.MinStability {
		detection.Selected = &best
		span.SetAttributes(attribute.String("selected", best.Ring.String()))
	} else {
		d.log.Debug(ctx, "best ring below stability threshold",
			"ring", best.Ring.String(),
			"streak", best.Stability,
			"required", d.cfg.MinStability)
	}

	return detection, nil
}
