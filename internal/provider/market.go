package provider

import (
	"context"
	"errors"

	"sentiment_bot/internal/model"
)

// MarketURL is the CNN Fear & Greed Index endpoint for the stock market.
const MarketURL = "https://production.dataviz.cnn.io/index/fearandgreed/graphdata"

// Market provides the CNN stock-market Fear & Greed Index under the name "m".
type Market struct {
	jsonSource
}

// NewMarket creates the stock-market provider.
func NewMarket(opts Options) *Market {
	headers := map[string]string{
		"Referer": "https://www.cnn.com/",
		"Origin":  "https://www.cnn.com",
	}
	return &Market{jsonSource: newJSONSource("m", MarketURL, headers, opts)}
}

// Description names the data source.
func (m *Market) Description() string { return "Stock market Fear & Greed Index (CNN)" }

type cnnPayload struct {
	FearAndGreed *struct {
		Score         *float64 `json:"score"`
		PreviousClose *float64 `json:"previous_close"`
		Timestamp     any      `json:"timestamp"`
	} `json:"fear_and_greed"`
}

// Fetch returns the latest market reading, or Default on any failure.
func (m *Market) Fetch(ctx context.Context) model.Fields {
	var fields model.Fields
	err := m.fetch(ctx, func(body []byte) error {
		var p cnnPayload
		if err := decodeJSON(body, &p); err != nil {
			return err
		}
		f, err := parseCNN(p)
		if err != nil {
			return err
		}
		fields = f
		return nil
	})
	if err != nil {
		m.opts.Log.Warn("fetch market fear & greed", "provider", m.name, "error", err)
		return Default()
	}
	return fields
}

func parseCNN(p cnnPayload) (model.Fields, error) {
	if p.FearAndGreed == nil || p.FearAndGreed.Score == nil {
		return nil, errors.New("payload has no fear_and_greed.score")
	}
	index := int(*p.FearAndGreed.Score)
	return reading(index, p.FearAndGreed.PreviousClose, normalizeTimestamp(p.FearAndGreed.Timestamp)), nil
}
