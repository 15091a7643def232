package montecarlo

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/profitmonk/high-intent-signals/internal/contracts"
)

// GenerateStartDates returns from, then dates spaced a random whole number of weeks
// in [minGapWeeks, maxGapWeeks] apart, up to and including to.
// ⭐ 재현성 계약: 같은 seed + 같은 범위 → 같은 날짜 목록
func GenerateStartDates(from, to time.Time, seed int64, minGapWeeks, maxGapWeeks int) ([]time.Time, error) {
	if minGapWeeks <= 0 || maxGapWeeks < minGapWeeks {
		return nil, fmt.Errorf("invalid gap range [%d, %d] weeks", minGapWeeks, maxGapWeeks)
	}
	from, to = contracts.Day(from), contracts.Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s precedes start %s",
			to.Format(contracts.DateLayout), from.Format(contracts.DateLayout))
	}

	rng := rand.New(rand.NewSource(seed))
	span := maxGapWeeks - minGapWeeks + 1

	var dates []time.Time
	for d := from; !d.After(to); {
		dates = append(dates, d)
		weeks := minGapWeeks + rng.Intn(span)
		d = d.AddDate(0, 0, 7*weeks)
	}
	return dates, nil
}
