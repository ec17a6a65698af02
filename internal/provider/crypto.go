package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sentiment_bot/internal/model"
)

// CryptoURL is the alternative.me Crypto Fear & Greed Index endpoint.
// limit=2 returns the current and the previous daily reading.
const CryptoURL = "https://api.alternative.me/fng/?limit=2"

// Crypto provides the alternative.me crypto Fear & Greed Index under the name "c".
type Crypto struct {
	jsonSource
}

// NewCrypto creates the crypto-market provider.
func NewCrypto(opts Options) *Crypto {
	return &Crypto{jsonSource: newJSONSource("c", CryptoURL, nil, opts)}
}

// Description names the data source.
func (c *Crypto) Description() string { return "Crypto market Fear & Greed Index (Alternative.me)" }

type alternativePayload struct {
	Data []struct {
		Value     string `json:"value"`
		Timestamp string `json:"timestamp"`
	} `json:"data"`
}

// Fetch returns the latest crypto reading, or Default on any failure.
func (c *Crypto) Fetch(ctx context.Context) model.Fields {
	var fields model.Fields
	err := c.fetch(ctx, func(body []byte) error {
		var p alternativePayload
		if err := decodeJSON(body, &p); err != nil {
			return err
		}
		f, err := parseAlternative(p)
		if err != nil {
			return err
		}
		fields = f
		return nil
	})
	if err != nil {
		c.opts.Log.Warn("fetch crypto fear & greed", "provider", c.name, "error", err)
		return Default()
	}
	return fields
}

func parseAlternative(p alternativePayload) (model.Fields, error) {
	if len(p.Data) == 0 {
		return nil, errors.New("payload has no rows")
	}
	index, err := strconv.Atoi(strings.TrimSpace(p.Data[0].Value))
	if err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}
	var previous *float64
	if len(p.Data) > 1 {
		if v, err := strconv.Atoi(strings.TrimSpace(p.Data[1].Value)); err == nil {
			f := float64(v)
			previous = &f
		}
	}
	return reading(index, previous, normalizeTimestamp(p.Data[0].Timestamp)), nil
}

// normalizeTimestamp converts unix seconds or milliseconds to RFC 3339 and passes other strings through.
func normalizeTimestamp(raw any) any {
	var unix int64
	switch v := raw.(type) {
	case nil:
		return nil
	case float64:
		unix = int64(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return s
		}
		unix = n
	default:
		return nil
	}
	if unix > 1_000_000_000_000 {
		unix /= 1000
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
