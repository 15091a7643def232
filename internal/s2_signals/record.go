package s2_signals

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// record is the on-disk shape of one signal.
// 데이터셋마다 필드명이 달라서 별칭을 모두 받음 (signal_date|date, score|total_score)
type record struct {
	Ticker      string             `json:"ticker" validate:"required,max=16"`
	SignalDate  string             `json:"signal_date"`
	Date        string             `json:"date"`
	Score       *int               `json:"score"`
	TotalScore  *int               `json:"total_score"`
	SignalTypes json.RawMessage    `json:"signal_types"`
	Metrics     map[string]float64 `json:"metrics"`
	Price       float64            `json:"price" validate:"gte=0"`
	SignalPrice float64            `json:"signal_price" validate:"gte=0"`
}

// resolved holds the alias-resolved fields that get validated
type resolved struct {
	Date  string `validate:"required,datetime=2006-01-02"`
	Score int    `validate:"gte=0,lte=100"`
}

var validate = validator.New()

// toSignal validates r and converts it.
// Unknown signal types are returned separately so the caller can count them.
func (r *record) toSignal() (contracts.Signal, []string, error) {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if err := validate.Struct(r); err != nil {
		return contracts.Signal{}, nil, fmt.Errorf("invalid record: %w", err)
	}

	res := resolved{Date: firstNonEmpty(r.SignalDate, r.Date)}
	if len(res.Date) > len(contracts.DateLayout) {
		res.Date = res.Date[:len(contracts.DateLayout)]
	}
	switch {
	case r.Score != nil:
		res.Score = *r.Score
	case r.TotalScore != nil:
		res.Score = *r.TotalScore
	default:
		return contracts.Signal{}, nil, fmt.Errorf("invalid record %s: missing score", r.Ticker)
	}
	if err := validate.Struct(&res); err != nil {
		return contracts.Signal{}, nil, fmt.Errorf("invalid record %s: %w", r.Ticker, err)
	}

	date, err := contracts.ParseDay(res.Date)
	if err != nil {
		return contracts.Signal{}, nil, fmt.Errorf("invalid record %s: %w", r.Ticker, err)
	}

	types, unknown, err := parseTypes(r.SignalTypes)
	if err != nil {
		return contracts.Signal{}, nil, fmt.Errorf("invalid record %s: %w", r.Ticker, err)
	}

	price := r.Price
	if price == 0 {
		price = r.SignalPrice
	}

	return contracts.Signal{
		Ticker:      r.Ticker,
		SignalDate:  date,
		Score:       res.Score,
		SignalTypes: types,
		Metrics:     r.Metrics,
		Price:       price,
	}, unknown, nil
}

// parseTypes accepts a JSON list or a "a + b" / "a, b" summary string
func parseTypes(raw json.RawMessage) ([]contracts.SignalType, []string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}

	var names []string
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, nil, fmt.Errorf("signal_types: %w", err)
		}
	} else {
		var summary string
		if err := json.Unmarshal(raw, &summary); err != nil {
			return nil, nil, fmt.Errorf("signal_types: %w", err)
		}
		names = strings.FieldsFunc(summary, func(r rune) bool { return r == '+' || r == ',' })
	}

	var types []contracts.SignalType
	var unknown []string
	seen := make(map[contracts.SignalType]bool)
	for _, n := range names {
		t := contracts.SignalType(strings.ToLower(strings.TrimSpace(n)))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		if !t.IsValid() {
			unknown = append(unknown, string(t))
			continue
		}
		types = append(types, t)
	}
	return types, unknown, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
