package strategy

// DefaultSet returns the production strategy roster keyed by arm name.
func DefaultSet() map[string]Strategy {
	set := map[string]Strategy{}
	for _, s := range []Strategy{NewTrendEMA(), NewMeanReversion(), NewBreakout(), NewSARFlip()} {
		set[s.Name()] = s
	}
	return set
}
