package metar

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/yegors/sectional/pkg/logger"
)

// Batch client error kinds.
var (
	// ErrNoData marks an airport that was requested but absent from the
	// response (or a 204 no-content chunk). Not a failure of the request.
	ErrNoData = errors.New("no report returned for airport")

	// ErrTimeout marks airports whose chunk was cancelled by the cycle
	// deadline before resolving.
	ErrTimeout = errors.New("request cancelled before completion")
)

// RequestError is a terminal upstream rejection (HTTP 400). Retrying cannot
// help; the request itself (usually the configured airport list) is wrong.
type RequestError struct {
	StatusCode int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("upstream rejected request: status %d", e.StatusCode)
}

// ExhaustedRetriesError wraps the last error after all retry attempts failed.
type ExhaustedRetriesError struct {
	Attempts int
	Cause    error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("exhausted %d attempts: %v", e.Attempts, e.Cause)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Cause }

// FetchResult is the per-airport outcome of a batch fetch: exactly one of
// Report or Err is set.
type FetchResult struct {
	Report *RawReport
	Err    error
}

// ClientConfig holds the batch client settings, validated by the config layer
// before a cycle starts.
type ClientConfig struct {
	BaseURL             string
	ChunkSize           int
	Timeout             time.Duration // per-request HTTP timeout
	RetryAttempts       int
	RetryDelay          time.Duration // initial backoff, doubled per attempt
	MaxBackoff          time.Duration
	MaxConcurrentChunks int
	UserAgent           string
}

// Client fetches raw METAR reports from the upstream API in chunked batches.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *logger.Logger
}

// NewClient creates a new batch METAR client.
func NewClient(config ClientConfig, log *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		clock:  clockwork.NewRealClock(),
		logger: log.Named("metar-client"),
	}
}

// WithClock swaps the time source used for retry backoff. Tests inject a fake
// clock so backoff timing is deterministic.
func (c *Client) WithClock(clock clockwork.Clock) *Client {
	c.clock = clock
	return c
}

// Fetch requests reports for every airport in the list and returns a result
// per airport. Every requested airport appears in the map exactly once,
// either with a raw report or with a typed error. Chunks are fetched
// concurrently, bounded by MaxConcurrentChunks; retry sleeps block only the
// retrying chunk.
func (c *Client) Fetch(ctx context.Context, airports []string) map[string]FetchResult {
	results := make(map[string]FetchResult, len(airports))
	if len(airports) == 0 {
		return results
	}

	chunks := chunkAirports(airports, c.config.ChunkSize)
	c.logger.Debug("Fetching METAR data",
		logger.Int("airports", len(airports)),
		logger.Int("chunks", len(chunks)))

	type chunkOutcome struct {
		airports []string
		reports  map[string]*RawReport
		err      error
	}

	outcomes := make(chan chunkOutcome, len(chunks))
	limit := c.config.MaxConcurrentChunks
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk []string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			reports, err := c.fetchChunk(ctx, chunk)
			outcomes <- chunkOutcome{airports: chunk, reports: reports, err: err}
		}(chunk)
	}
	wg.Wait()
	close(outcomes)

	// Merge deterministically by airport identifier; completion order of the
	// chunks does not matter.
	for outcome := range outcomes {
		for _, airport := range outcome.airports {
			if outcome.err != nil {
				results[airport] = FetchResult{Err: outcome.err}
				continue
			}
			if report, ok := outcome.reports[airport]; ok {
				results[airport] = FetchResult{Report: report}
			} else {
				results[airport] = FetchResult{Err: ErrNoData}
			}
		}
	}
	return results
}

// chunkAirports partitions the list into consecutive groups no larger than
// size, preserving order.
func chunkAirports(airports []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(airports); start += size {
		end := start + size
		if end > len(airports) {
			end = len(airports)
		}
		chunks = append(chunks, airports[start:end])
	}
	return chunks
}

// fetchChunk requests one chunk with retry and exponential backoff. Transport
// failures and 5xx/429 responses are retried; 400 is terminal; 204 is a
// successful empty result.
func (c *Client) fetchChunk(ctx context.Context, airports []string) (map[string]*RawReport, error) {
	requestURL := fmt.Sprintf("%s/metar?format=xml&ids=%s",
		strings.TrimRight(c.config.BaseURL, "/"),
		url.QueryEscape(strings.Join(airports, ",")))

	var lastErr error
	backoff := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Info("Retrying chunk fetch",
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", c.config.RetryAttempts),
				logger.Duration("backoff", backoff),
				logger.Int("airports", len(airports)))
			select {
			case <-ctx.Done():
				return nil, ErrTimeout
			case <-c.clock.After(backoff):
			}
			backoff = nextBackoff(backoff, c.config.MaxBackoff)
		}

		reports, retryable, err := c.doRequest(ctx, requestURL)
		if err == nil {
			return reports, nil
		}
		if errors.Is(err, ErrTimeout) || !retryable {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("Chunk fetch failed, may retry",
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.config.RetryAttempts+1))
	}

	return nil, &ExhaustedRetriesError{Attempts: c.config.RetryAttempts + 1, Cause: lastErr}
}

// doRequest performs a single HTTP round trip. retryable reports whether the
// returned error is worth another attempt.
func (c *Client) doRequest(ctx context.Context, requestURL string) (reports map[string]*RawReport, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ErrTimeout
		}
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		reports, err := parseReports(resp.Body)
		if err != nil {
			return nil, true, err
		}
		return reports, false, nil
	case resp.StatusCode == http.StatusNoContent:
		// Successful "no data" result, not an error.
		return map[string]*RawReport{}, false, nil
	case resp.StatusCode == http.StatusBadRequest:
		return nil, false, &RequestError{StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	default:
		return nil, true, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// responseXML is the envelope around a batch of METAR elements. Each entry's
// inner XML is kept verbatim so the schema adapter decides the shape later.
type responseXML struct {
	Data struct {
		METARs []struct {
			StationID string `xml:"station_id"`
			Inner     []byte `xml:",innerxml"`
		} `xml:"METAR"`
	} `xml:"data"`
}

// parseReports splits a batch response body into one raw report per station.
// Later reports for the same station win; the API returns newest first, so
// the first occurrence is kept instead.
func parseReports(body io.Reader) (map[string]*RawReport, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope responseXML
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response XML: %w", err)
	}

	reports := make(map[string]*RawReport, len(envelope.Data.METARs))
	for _, m := range envelope.Data.METARs {
		station := strings.TrimSpace(m.StationID)
		if station == "" {
			continue
		}
		if _, seen := reports[station]; seen {
			continue
		}
		payload := append(append([]byte("<METAR>"), m.Inner...), []byte("</METAR>")...)
		reports[station] = &RawReport{Airport: station, Payload: payload}
	}
	return reports, nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if maxBackoff > 0 && next > maxBackoff {
		return maxBackoff
	}
	return next
}
