package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"sidrapanel/internal/config"
	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/shared/textnorm"
	"sidrapanel/pkg/contracts/domain"
)

// maxBodyBytes bounds the SIDRA response read into memory
const maxBodyBytes = 32 << 20

// HeaderLabels names the SIDRA columns the economic table is built from
type HeaderLabels struct {
	Unit  string
	Year  string
	Value string
}

// SidraClient fetches the economic census table from the SIDRA API
type SidraClient struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	maxBody    int64
	labels     HeaderLabels
	logger     *slog.Logger
	metrics    *infrastructure.PipelineMetrics
}

// SidraOption configures a SidraClient
type SidraOption func(*SidraClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) SidraOption {
	return func(s *SidraClient) { s.httpClient = c }
}

// WithMetrics records request outcomes on m
func WithMetrics(m *infrastructure.PipelineMetrics) SidraOption {
	return func(s *SidraClient) { s.metrics = m }
}

// WithMaxBodyBytes caps the response size; a larger body fails the fetch
func WithMaxBodyBytes(n int64) SidraOption {
	return func(s *SidraClient) { s.maxBody = n }
}

// NewSidraClient creates a client from the sources configuration
func NewSidraClient(cfg config.SourcesConfig, logger *slog.Logger, opts ...SidraOption) *SidraClient {
	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}

	c := &SidraClient{
		url:        cfg.SidraURL,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		maxBody:    maxBodyBytes,
		labels: HeaderLabels{
			Unit:  cfg.UnitLabel,
			Year:  cfg.YearLabel,
			Value: cfg.ValueLabel,
		},
		logger: infrastructure.WithComponent(logger, "sidra_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchEconomic downloads and parses the economic table. Transport errors,
// 429 and 5xx responses are retried up to the configured limit, paced by the
// rate limiter; the final failure is a SOURCE_UNAVAILABLE error.
func (c *SidraClient) FetchEconomic(ctx context.Context) (domain.EconomicTable, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		attempts++

		start := time.Now()
		body, retryable, err := c.fetchOnce(ctx)
		if err == nil {
			c.recordRequest(ctx, "success")
			c.logger.InfoContext(ctx, "SIDRA table downloaded",
				slog.Int("attempt", attempts),
				slog.Int("bytes", len(body)),
				slog.Duration("duration", time.Since(start)))
			return ParseSidraResponse(body, c.labels)
		}

		lastErr = err
		if !retryable || ctx.Err() != nil {
			c.recordRequest(ctx, "failure")
			break
		}

		c.recordRequest(ctx, "retry")
		c.logger.WarnContext(ctx, "SIDRA request failed, retrying",
			slog.Int("attempt", attempts),
			slog.Int("max_retries", c.maxRetries),
			slog.String("error", err.Error()))
	}

	c.logger.ErrorContext(ctx, "SIDRA source unavailable",
		slog.Int("attempts", attempts),
		slog.String("error", fmt.Sprint(lastErr)))

	return nil, apperrors.NewSourceUnavailableError("sidra", lastErr).
		WithContext("url", c.url).
		WithContext("attempts", attempts)
}

// fetchOnce performs a single GET and reports whether a failure may be retried
func (c *SidraClient) fetchOnce(ctx context.Context) ([]byte, bool, error) {
	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.DefaultUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("SIDRA returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	if int64(len(body)) > c.maxBody {
		return nil, false, fmt.Errorf("SIDRA response exceeds %d bytes", c.maxBody)
	}
	return body, false, nil
}

func (c *SidraClient) recordRequest(ctx context.Context, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.SourceRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", "sidra"),
		attribute.String("outcome", outcome),
	))
}

func truncate(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// ParseSidraResponse turns a SIDRA values payload into an economic table.
// The payload is a JSON array whose first element is the header; elements are
// either arrays of cells or objects keyed by column code. Columns are found by
// matching the header cells against labels, ignoring case and accents.
func ParseSidraResponse(body []byte, labels HeaderLabels) (domain.EconomicTable, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var rows []json.RawMessage
	if err := dec.Decode(&rows); err != nil {
		return nil, apperrors.NewParsingError("SIDRA response is not a JSON array", err)
	}
	if len(rows) <= 1 {
		return domain.EconomicTable{}, nil
	}

	header, err := decodeRow(rows[0])
	if err != nil {
		return nil, apperrors.NewParsingError("invalid SIDRA header row", err)
	}

	unitKey, err := findColumn(header, labels.Unit)
	if err != nil {
		return nil, err
	}
	yearKey, err := findColumn(header, labels.Year)
	if err != nil {
		return nil, err
	}
	valueKey, err := findColumn(header, labels.Value)
	if err != nil {
		return nil, err
	}

	table := make(domain.EconomicTable, 0, len(rows)-1)
	for i, raw := range rows[1:] {
		row, err := decodeRow(raw)
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("invalid SIDRA row %d", i+1), err)
		}
		table = append(table, domain.RawEconomicRecord{
			FederativeUnit:      row[unitKey],
			Year:                row[yearKey],
			ActiveBusinessCount: row[valueKey],
		})
	}
	return table, nil
}

// decodeRow returns the cells of one row keyed by column code. Array rows are
// keyed by position so both encodings share the lookup path.
func decodeRow(raw json.RawMessage) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	cells := make(map[string]string)
	switch row := v.(type) {
	case []interface{}:
		for i, cell := range row {
			cells[fmt.Sprintf("#%d", i)] = cellString(cell)
		}
	case map[string]interface{}:
		for k, cell := range row {
			cells[k] = cellString(cell)
		}
	default:
		return nil, errors.New("row is neither an array nor an object")
	}
	return cells, nil
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// findColumn returns the key of the header cell matching label. Ties between
// several matching codes resolve to the lexically smallest key so the result
// does not depend on map order.
func findColumn(header map[string]string, label string) (string, error) {
	found := ""
	for key, cell := range header {
		if textnorm.EqualFold(cell, label) && (found == "" || key < found) {
			found = key
		}
	}
	if found == "" {
		return "", apperrors.NewParsingError(fmt.Sprintf("SIDRA header has no %q column", label), nil).
			WithContext("label", label)
	}
	return found, nil
}
