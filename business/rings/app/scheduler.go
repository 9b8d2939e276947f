package app

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/railgun-trading/railgun/business/rings/domain"
	"github.com/railgun-trading/railgun/internal/apm"
	"github.com/railgun-trading/railgun/internal/apperror"
	"github.com/railgun-trading/railgun/internal/logger"
)

// Scheduler fans one snapshot out across all rings and gathers the
// profitable candidates in a deterministic order.
type Scheduler struct {
	evaluator *Evaluator
	log       logger.LoggerInterface
	tracer    apm.Tracer
}

// NewScheduler creates a scheduler.
func NewScheduler(evaluator *Evaluator, log logger.LoggerInterface) *Scheduler {
	return &Scheduler{
		evaluator: evaluator,
		log:       log,
		tracer:    apm.NewTracer("rings.scheduler"),
	}
}

// Evaluate runs every ring against the snapshot concurrently and returns
// the candidates above the minimum profit threshold, sorted by descending
// absolute profit. Ties break on the ring identity so identical inputs
// always produce identical ordering.
func (s *Scheduler) Evaluate(ctx context.Context, rings []domain.Ring, snap *domain.PriceSnapshot, invest decimal.Decimal) []domain.RingResult {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "rings.Evaluate")
	defer span.End()
	span.SetAttributes(attribute.Int("rings", len(rings)))

	results := make([]domain.RingResult, len(rings))
	errs := make([]error, len(rings))

	var wg sync.WaitGroup
	for i, ring := range rings {
		wg.Add(1)
		go func(i int, ring domain.Ring) {
			defer wg.Done()
			results[i], errs[i] = s.evaluator.Evaluate(ring, snap, invest)
		}(i, ring)
	}
	wg.Wait()

	candidates := make([]domain.RingResult, 0, len(rings))
	for i := range results {
		if err := errs[i]; err != nil {
			switch {
			case apperror.IsCode(err, apperror.CodeProfitAnomaly):
				s.log.Warn(ctx, "discarding anomalous quote",
					"ring", rings[i].String(),
					"profit_pct", results[i].ProfitPct.StringFixed(4))
			case apperror.IsCode(err, apperror.CodeMissingSnapshotEntry):
				s.log.Debug(ctx, "ring not tradable this cycle",
					"ring", rings[i].String(),
					"code", string(apperror.GetCode(err)))
			default:
				s.log.Warn(ctx, "ring evaluation skipped",
					"ring", rings[i].String(), "error", err)
			}
			continue
		}
		if s.evaluator.IsProfitable(results[i]) {
			candidates = append(candidates, results[i])
		}
	}

	sort.Slice(candidates, func(a, b int) bool {
		cmp := candidates[a].Profit.Cmp(candidates[b].Profit)
		if cmp != 0 {
			return cmp > 0
		}
		return candidates[a].Ring.String() < candidates[b].Ring.String()
	})

	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates
}
