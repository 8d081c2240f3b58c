package types

import "math"

// Pricing is dollars per million tokens for each usage counter.
type Pricing struct {
	Input      float64 `yaml:"input" json:"input"`
	Output     float64 `yaml:"output" json:"output"`
	CacheRead  float64 `yaml:"cache_read" json:"cache_read"`
	CacheWrite float64 `yaml:"cache_write" json:"cache_write"`
}

// DefaultPricing matches the published Sonnet rates.
var DefaultPricing = Pricing{
	Input:      3.00,
	Output:     15.00,
	CacheRead:  0.30,
	CacheWrite: 3.75,
}

// DefaultMaxContextTokens is the context window used for percentages.
const DefaultMaxContextTokens = 200_000

// EstimateCost prices u at p, rounded to cents.
func EstimateCost(u TokenUsage, p Pricing) float64 {
	cost := float64(u.InputTokens)/1e6*p.Input +
		float64(u.OutputTokens)/1e6*p.Output +
		float64(u.CacheReadInputTokens)/1e6*p.CacheRead +
		float64(u.CacheCreationInputTokens)/1e6*p.CacheWrite
	return Round(cost, 2)
}

// ContextPercentage returns tokens as a share of maxTokens, capped at 100
// and rounded to one decimal place.
func ContextPercentage(tokens, maxTokens int) float64 {
	if maxTokens <= 0 || tokens <= 0 {
		return 0
	}
	pct := float64(tokens) / float64(maxTokens) * 100
	return Round(math.Min(pct, 100), 1)
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
