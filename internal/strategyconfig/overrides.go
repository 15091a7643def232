package strategyconfig

// Overrides replaces individual preset fields (CLI flags, API request body).
// nil fields keep the preset value.
type Overrides struct {
	Dataset        *string  `json:"dataset,omitempty"`
	ScoreMin       *int     `json:"min_score,omitempty"`
	ScoreMax       *int     `json:"max_score,omitempty"`
	InitialCapital *float64 `json:"capital,omitempty"`
	MaxPositionPct *float64 `json:"max_position_pct,omitempty"`
	MaxPositions   *int     `json:"max_positions,omitempty"`
	CashBufferPct  *float64 `json:"cash_buffer,omitempty"`
	HoldingDays    *int     `json:"holding_period,omitempty"`
	StopLossPct    *float64 `json:"stop_loss,omitempty"`
	StartDate      *string  `json:"start_date,omitempty"`
	EndDate        *string  `json:"end_date,omitempty"`

	// Monte Carlo
	From        *string `json:"from,omitempty"`
	To          *string `json:"to,omitempty"`
	Seed        *int64  `json:"seed,omitempty"`
	MinGapWeeks *int    `json:"min_gap,omitempty"`
	MaxGapWeeks *int    `json:"max_gap,omitempty"`
}

// IsEmpty reports whether no field is set
func (o Overrides) IsEmpty() bool {
	return o == Overrides{}
}

// Apply returns a copy of cfg with the set fields replaced.
// The copy keeps the preset id; its hash changes with the values.
func (o Overrides) Apply(cfg *Config) *Config {
	out := *cfg

	setString(&out.Signals.Dataset, o.Dataset)
	setInt(&out.Signals.ScoreMin, o.ScoreMin)
	setInt(&out.Signals.ScoreMax, o.ScoreMax)
	setFloat(&out.Portfolio.InitialCapital, o.InitialCapital)
	setFloat(&out.Portfolio.MaxPositionPct, o.MaxPositionPct)
	setInt(&out.Portfolio.MaxPositions, o.MaxPositions)
	setFloat(&out.Portfolio.CashBufferPct, o.CashBufferPct)
	setInt(&out.Exit.HoldingPeriodDays, o.HoldingDays)
	setFloat(&out.Exit.StopLossPct, o.StopLossPct)
	setString(&out.Simulation.StartDate, o.StartDate)
	setString(&out.Simulation.EndDate, o.EndDate)

	setString(&out.MonteCarlo.From, o.From)
	setString(&out.MonteCarlo.To, o.To)
	if o.Seed != nil {
		out.MonteCarlo.Seed = *o.Seed
	}
	setInt(&out.MonteCarlo.MinGapWeeks, o.MinGapWeeks)
	setInt(&out.MonteCarlo.MaxGapWeeks, o.MaxGapWeeks)

	return &out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
