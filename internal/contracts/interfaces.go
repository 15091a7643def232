package contracts

import (
	"context"
	"time"
)

// PriceOracle supplies daily bars.
// ⭐ SSOT: 엔진이 사용하는 유일한 가격 인터페이스 (동시 읽기 안전해야 함)
type PriceOracle interface {
	Get(ticker string, date time.Time) (Bar, bool)
}

// DateRanger is implemented by oracles that know their data coverage
type DateRanger interface {
	DateRange() (first, last time.Time, ok bool)
}

// SignalSource loads a signal feed
type SignalSource interface {
	Load(ctx context.Context) ([]Signal, error)
}

// PriceRepository persists daily bars
type PriceRepository interface {
	GetRange(ctx context.Context, ticker string, from, to time.Time) ([]Bar, error)
	SaveBatch(ctx context.Context, ticker string, bars []Bar) error
	Tickers(ctx context.Context) ([]string, error)
}
