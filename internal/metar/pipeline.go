package metar

import (
	"context"
	"errors"
	"time"

	"github.com/yegors/sectional/internal/observability"
	"github.com/yegors/sectional/pkg/logger"
)

// Fetcher is the upstream dependency of the pipeline. *Client satisfies it;
// tests substitute a stub.
type Fetcher interface {
	Fetch(ctx context.Context, airports []string) map[string]FetchResult
}

// Pipeline drives one full ingestion-and-classification cycle: batch fetch,
// then schema adaptation and classification per airport. Cycles share no
// state beyond configuration.
type Pipeline struct {
	fetcher  Fetcher
	airports []string
	policy   Policy
	metrics  *observability.Metrics
	logger   *logger.Logger
}

// NewPipeline creates a pipeline over the given fetcher and airport list.
func NewPipeline(fetcher Fetcher, airports []string, policy Policy, metrics *observability.Metrics, log *logger.Logger) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		airports: airports,
		policy:   policy,
		metrics:  metrics,
		logger:   log.Named("metar-pipeline"),
	}
}

// RunCycle executes one cycle and returns a rating record for every requested
// airport. Fetch, adaptation, and normalization failures are downgraded to
// per-airport fallback records; they never abort the cycle for the rest.
func (p *Pipeline) RunCycle(ctx context.Context) *Cycle {
	start := time.Now()
	cycle := &Cycle{
		Records:   make(map[string]RatingRecord, len(p.airports)),
		StartedAt: start,
	}

	fetched := p.fetcher.Fetch(ctx, p.airports)

	for _, airport := range p.airports {
		result, ok := fetched[airport]
		if !ok {
			// The client guarantees completeness; this is belt and braces.
			result = FetchResult{Err: ErrNoData}
		}
		cycle.Records[airport] = p.rate(airport, result)
	}

	cycle.Duration = time.Since(start)

	counts := cycle.CountByCategory()
	if p.metrics != nil {
		p.metrics.CyclesTotal.Inc()
		p.metrics.CycleDuration.Observe(cycle.Duration.Seconds())
		for category, n := range counts {
			p.metrics.AirportsByCategory.WithLabelValues(string(category)).Set(float64(n))
		}
	}
	p.logger.Info("Cycle completed",
		logger.Int("airports", len(cycle.Records)),
		logger.Duration("duration", cycle.Duration),
		logger.Any("categories", counts))

	return cycle
}

// rate produces the record for one airport from its fetch result.
func (p *Pipeline) rate(airport string, result FetchResult) RatingRecord {
	if result.Err != nil {
		return p.fallbackRecord(airport, result.Err)
	}

	obs, err := Adapt(*result.Report)
	if err != nil {
		p.logger.Warn("Report adaptation failed",
			logger.String("airport", airport),
			logger.Error(err))
		if p.metrics != nil {
			p.metrics.AdaptErrors.Inc()
		}
		return RatingRecord{
			Airport:     airport,
			Category:    CategoryInvalid,
			Source:      SourceFallback,
			Diagnostics: map[string]string{"adapt_error": err.Error()},
		}
	}

	return Classify(obs, p.policy)
}

// fallbackRecord maps a fetch error to its rating: NOWX for a clean "no data"
// outcome, INVALID for everything else.
func (p *Pipeline) fallbackRecord(airport string, err error) RatingRecord {
	category := CategoryInvalid
	if errors.Is(err, ErrNoData) {
		category = CategoryNoWx
	}
	if p.metrics != nil {
		p.metrics.FetchErrors.WithLabelValues(errorKind(err)).Inc()
	}
	return RatingRecord{
		Airport:     airport,
		Category:    category,
		Source:      SourceFallback,
		Diagnostics: map[string]string{"fetch_error": err.Error()},
	}
}

// errorKind maps a fetch error to a stable metrics label.
func errorKind(err error) string {
	var exhausted *ExhaustedRetriesError
	var request *RequestError
	switch {
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.As(err, &exhausted):
		return "exhausted_retries"
	case errors.As(err, &request):
		return "client_request"
	default:
		return "other"
	}
}
