package risk

import (
	"math"
	"sort"
)

// Mean 평균 계산
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev 표본 표준편차 (n-1), 샘플이 2개 미만이면 0
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// DownsideDeviation 목표 수익률 대비 하방 편차 (분모는 전체 샘플 수)
func DownsideDeviation(values []float64, target float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		if v < target {
			diff := v - target
			sumSq += diff * diff
		}
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Percentile 백분위수 계산 (p: 0~100, sorted 오름차순)
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	idx := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// 선형 보간
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Describe computes the summary distribution of values. Input is not modified.
func Describe(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Distribution{
		Count:  len(sorted),
		Mean:   Mean(sorted),
		Std:    StdDev(sorted),
		Median: Percentile(sorted, 50),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		P10:    Percentile(sorted, 10),
		P90:    Percentile(sorted, 90),
	}
}
