package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// PriceRepository implements contracts.PriceRepository
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// GetRange retrieves bars for a ticker within [from, to], ascending
func (r *PriceRepository) GetRange(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, volume
		FROM data.daily_prices
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, ticker, contracts.Day(from), contracts.Day(to))
	if err != nil {
		return nil, fmt.Errorf("query prices %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price %s: %w", ticker, err)
		}
		b.Date = contracts.Day(b.Date)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LatestDate returns the most recent stored date for a ticker (ok=false when none)
func (r *PriceRepository) LatestDate(ctx context.Context, ticker string) (time.Time, bool, error) {
	query := `SELECT MAX(trade_date) FROM data.daily_prices WHERE ticker = $1`

	var latest *time.Time
	if err := r.pool.QueryRow(ctx, query, ticker).Scan(&latest); err != nil {
		return time.Time{}, false, fmt.Errorf("latest date %s: %w", ticker, err)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return contracts.Day(*latest), true, nil
}

// SaveBatch upserts bars for one ticker in a single batch
func (r *PriceRepository) SaveBatch(ctx context.Context, ticker string, bars []contracts.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_prices (ticker, trade_date, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(query, ticker, contracts.Day(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert %s %s: %w", ticker, bars[i].Date.Format(contracts.DateLayout), err)
		}
	}
	return nil
}

// Tickers returns every ticker with stored prices
func (r *PriceRepository) Tickers(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT ticker FROM data.daily_prices ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// LoadOracle reads the given tickers into a MemoryOracle
func (r *PriceRepository) LoadOracle(ctx context.Context, tickers []string, from, to time.Time) (*MemoryOracle, []string, error) {
	series := make(map[string][]contracts.Bar, len(tickers))
	var missing []string

	for _, ticker := range uniqueSorted(tickers) {
		bars, err := r.GetRange(ctx, ticker, from, to)
		if err != nil {
			return nil, nil, err
		}
		if len(bars) == 0 {
			missing = append(missing, ticker)
			continue
		}
		series[ticker] = bars
	}
	return NewMemoryOracle(series), missing, nil
}

var _ contracts.PriceRepository = (*PriceRepository)(nil)
