package risk

// VaRConvention VaR 부호 규약
// ⭐ SSOT: Loss를 양수로 표현 (VaR=0.05 → 5% 손실 가능)
const VaRConvention = "loss_positive"

// VaRResult VaR 계산 결과
// - VaR=0.05 → 95% 신뢰수준에서 일간 최대 5% 손실 가능
// - CVaR=0.07 → 5% tail에서 평균 7% 손실 예상
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// Distribution describes a sample of one metric across runs
// ⭐ SSOT: Monte Carlo 요약 통계 형식
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"` // 표본 표준편차 (n-1)
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P10    float64 `json:"p10"`
	P90    float64 `json:"p90"`
}

// CV returns the coefficient of variation (std / |mean|), 0 when mean is 0
func (d Distribution) CV() float64 {
	if d.Mean == 0 {
		return 0
	}
	if d.Mean < 0 {
		return d.Std / -d.Mean
	}
	return d.Std / d.Mean
}
