package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 2 * 1024 * 1024
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures the shared transport of a provider.
type Options struct {
	Client   HTTPClient
	Timeout  time.Duration
	Attempts uint
	Delay    time.Duration
	Tracer   trace.Tracer
	Log      *slog.Logger
}

// StatusError is returned for non-200 upstream responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Code)
}

type jsonSource struct {
	name    string
	url     string
	headers map[string]string
	opts    Options
}

func newJSONSource(name, url string, headers map[string]string, opts Options) jsonSource {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = 500 * time.Millisecond
	}
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("provider")
	}
	return jsonSource{name: name, url: url, headers: headers, opts: opts}
}

func (s jsonSource) Name() string { return s.name }

func (s jsonSource) AvailableKeys() []string {
	return append([]string(nil), availableKeys...)
}

// fetch downloads the source URL within the configured timeout and hands the body to decode.
// Decode errors are not retried.
func (s jsonSource) fetch(ctx context.Context, decode func([]byte) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	ctx, span := s.opts.Tracer.Start(ctx, s.name+".fetch")
	defer span.End()

	err := retry.Do(
		func() error {
			body, err := s.get(ctx)
			if err != nil {
				return err
			}
			if err := decode(body); err != nil {
				return retry.Unrecoverable(err)
			}
			return nil
		},
		retry.Attempts(s.opts.Attempts),
		retry.Delay(s.opts.Delay),
		retry.MaxDelay(2*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.opts.Log.Debug("retrying provider fetch", "provider", s.name, "attempt", n+1, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code >= http.StatusInternalServerError || se.Code == http.StatusTooManyRequests
			}
			return true
		}),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return err
	}
	return nil
}

func (s jsonSource) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: s.url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func decodeJSON(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
