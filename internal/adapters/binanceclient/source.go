package binanceclient

import (
	"context"
	"fmt"
	"time"

	"candleBacktest/internal/domain"
	"candleBacktest/internal/ports"
)

var _ ports.BarSource = (*KlineSource)(nil)

// KlineSource loads a fixed kline range straight from the exchange.
type KlineSource struct {
	client   *Client
	symbol   string
	interval string
	start    time.Time
	end      time.Time
}

// NewKlineSource creates a source for symbol/interval over [start, end].
func NewKlineSource(client *Client, symbol, interval string, start, end time.Time) *KlineSource {
	return &KlineSource{client: client, symbol: symbol, interval: interval, start: start, end: end}
}

// Name identifies the source in logs.
func (s *KlineSource) Name() string {
	return fmt.Sprintf("binance:%s:%s", s.symbol, s.interval)
}

// Load fetches the whole range as a single raw source.
func (s *KlineSource) Load(ctx context.Context) ([]domain.RawSource, error) {
	rows, err := s.client.GetKlinesRange(ctx, s.symbol, s.interval, s.start, s.end)
	if err != nil {
		return nil, err
	}
	return []domain.RawSource{{Name: s.Name(), Rows: rows}}, nil
}
