package domain

// TradingConfig is the live trading policy. It is replaced wholesale on every
// update; readers always see a complete snapshot.
type TradingConfig struct {
	IsEnabled       bool
	MaxPositionSize float64
	RiskPercentage  float64
}

// DefaultTradingConfig is the fallback used when no stored policy exists yet.
// Trading starts disabled.
func DefaultTradingConfig() TradingConfig {
	return TradingConfig{
		IsEnabled:       false,
		MaxPositionSize: 100,
		RiskPercentage:  2,
	}
}

// PolicyUpdate is a partial policy change. Nil fields are left untouched.
type PolicyUpdate struct {
	IsEnabled       *bool
	MaxPositionSize *float64
	RiskPercentage  *float64
}

// Apply returns a copy of cfg with the non-nil fields of the update set.
func (u PolicyUpdate) Apply(cfg TradingConfig) TradingConfig {
	if u.IsEnabled != nil {
		cfg.IsEnabled = *u.IsEnabled
	}
	if u.MaxPositionSize != nil {
		cfg.MaxPositionSize = *u.MaxPositionSize
	}
	if u.RiskPercentage != nil {
		cfg.RiskPercentage = *u.RiskPercentage
	}
	return cfg
}
