package risk

import (
	"math"
	"sort"
)

// CalculateVaR 과거 수익률 기반 VaR 계산 (Historical Simulation)
// returns: 일별 수익률 배열 (양수=이익, 음수=손실)
// confidence: 신뢰수준 (예: 0.95, 0.99)
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	if len(returns) == 0 {
		return VaRResult{Confidence: confidence}
	}

	// 수익률 정렬 (오름차순: 손실이 앞에)
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1.0 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	var varValue float64
	if sorted[idx] < 0 {
		varValue = -sorted[idx]
	}

	return VaRResult{
		Confidence: confidence,
		VaR:        varValue,
		CVaR:       CalculateCVaR(sorted, idx),
	}
}

// CalculateCVaR Conditional VaR (Expected Shortfall)
// sorted: 오름차순 정렬된 수익률, varIdx 이하가 tail
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}
	if varIdx >= len(sorted) {
		varIdx = len(sorted) - 1
	}

	avgTail := Mean(sorted[:varIdx+1])
	if avgTail < 0 {
		return -avgTail
	}
	return 0
}
