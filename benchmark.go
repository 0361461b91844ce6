package tradecost

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Relative performance of a cost level against the industry.
const (
	Better  = "better"
	Average = "average"
	Worse   = "worse"
)

// Benchmark compares our cost percentage with an industry reference.
type Benchmark struct {
	OurCostPct          Rate
	IndustryPct         Rate
	RelativePerformance string
	// EfficiencyScore is 50 at parity, 100 for a cost half the industry's or
	// lower, and tends to 0 as our cost grows.
	EfficiencyScore decimal.Decimal
}

var (
	worseMargin = decimal.RequireFromString("1.2")
	fifty       = decimal.NewFromInt(50)
	hundred     = decimal.NewFromInt(100)
)

// BenchmarkComparison rates ourCostPct against industryPct. Our cost is
// better below the industry and worse above 120% of it.
func BenchmarkComparison(ourCostPct, industryPct Rate) (Benchmark, error) {
	if !industryPct.value.IsPositive() {
		return Benchmark{}, fmt.Errorf("benchmark against %s: %w", industryPct, ErrInvalidBenchmark)
	}
	if ourCostPct.IsNegative() {
		return Benchmark{}, fmt.Errorf("benchmark of %s: %w", ourCostPct, ErrNegativeAmount)
	}
	b := Benchmark{OurCostPct: ourCostPct, IndustryPct: industryPct, RelativePerformance: Average}
	switch {
	case ourCostPct.LessThan(industryPct):
		b.RelativePerformance = Better
	case ourCostPct.value.GreaterThan(industryPct.value.Mul(worseMargin)):
		b.RelativePerformance = Worse
	}
	if ourCostPct.IsZero() {
		b.EfficiencyScore = hundred
		return b, nil
	}
	score := fifty.Mul(industryPct.value).Div(ourCostPct.value)
	if score.GreaterThan(hundred) {
		score = hundred
	}
	b.EfficiencyScore = score.Round(moneyPlaces)
	return b, nil
}
