package fmp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// HistoricalPrice is one row of /historical-price-full
type HistoricalPrice struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"` // FMP 가 지수표기(1.2E7)로 줄 때가 있음
}

// HistoricalResponse is the /historical-price-full envelope
type HistoricalResponse struct {
	Symbol     string            `json:"symbol"`
	Historical []HistoricalPrice `json:"historical"`
}

// DecodeHistorical accepts either the envelope object or a bare row list
func DecodeHistorical(data []byte) (HistoricalResponse, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "{}" || trimmed == "[]" {
		return HistoricalResponse{}, nil
	}

	if trimmed[0] == '[' {
		var rows []HistoricalPrice
		if err := json.Unmarshal(data, &rows); err != nil {
			return HistoricalResponse{}, fmt.Errorf("decode historical list: %w", err)
		}
		return HistoricalResponse{Historical: rows}, nil
	}

	var resp HistoricalResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return HistoricalResponse{}, fmt.Errorf("decode historical object: %w", err)
	}
	return resp, nil
}

// Bars converts rows to contracts.Bar in ascending date order.
// 날짜 파싱 실패/비정상 가격 행은 버림
func (r HistoricalResponse) Bars() []contracts.Bar {
	bars := make([]contracts.Bar, 0, len(r.Historical))
	for _, row := range r.Historical {
		d, err := contracts.ParseDay(row.Date)
		if err != nil {
			continue
		}
		b := contracts.Bar{
			Date:   d,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: int64(row.Volume),
		}
		if !b.IsValid() {
			continue
		}
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

// FromBars builds the envelope written to the JSON price cache (newest first, like FMP)
func FromBars(symbol string, bars []contracts.Bar) HistoricalResponse {
	rows := make([]HistoricalPrice, 0, len(bars))
	for i := len(bars) - 1; i >= 0; i-- {
		b := bars[i]
		rows = append(rows, HistoricalPrice{
			Date:   b.Date.Format(contracts.DateLayout),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	return HistoricalResponse{Symbol: symbol, Historical: rows}
}
