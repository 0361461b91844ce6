package tradecost

import (
	"cmp"
	"fmt"
	"slices"
)

// CommissionFee is the fee charged for one operation.
type CommissionFee struct {
	Base  Money
	Tax   Money
	Total Money
}

// Custody is a monthly custody charge.
type Custody struct {
	Fee   Money
	Tax   Money
	Total Money
}

// checkAmount makes sure amount can be priced by s.
func checkAmount(amount Money, s FeeSchedule) error {
	if _, err := commonCurrency(amount.Currency(), s.Currency); err != nil {
		return fmt.Errorf("broker %s: %w", s.BrokerID, err)
	}
	return nil
}

// Commission computes the fee of a side operation of the given amount.
//
// The rate of the tier containing amount applies, floored at the schedule
// minimum fee. There is no fallback to a neighbouring tier: an amount that no
// tier covers is an *InvalidScheduleError.
func (s FeeSchedule) Commission(side Side, amount Money) (CommissionFee, error) {
	if err := s.Validate(); err != nil {
		return CommissionFee{}, err
	}
	if !amount.IsPositive() {
		return CommissionFee{}, fmt.Errorf("commission on %s: %w", amount.Decimal(), ErrNonPositiveAmount)
	}
	if err := checkAmount(amount, s); err != nil {
		return CommissionFee{}, err
	}
	t, err := s.tier(side, amount)
	if err != nil {
		return CommissionFee{}, err
	}
	base := s.zero().Add(amount.MulRate(t.Rate).Round())
	if base.LessThan(s.MinimumFee) {
		base = s.zero().Add(s.MinimumFee)
	}
	tax := base.MulRate(s.TaxRate).Round()
	return CommissionFee{Base: base, Tax: tax, Total: base.Add(tax)}, nil
}

// CustodyFee computes the monthly custody charge on a portfolio value.
//
// Only the value above the exempt threshold is charged, and the minimum fee
// applies only to a portfolio above that threshold.
func (s FeeSchedule) CustodyFee(portfolioValue Money) (Custody, error) {
	if err := s.Validate(); err != nil {
		return Custody{}, err
	}
	if portfolioValue.IsNegative() {
		return Custody{}, fmt.Errorf("custody on %s: %w", portfolioValue.Decimal(), ErrNegativeAmount)
	}
	if err := checkAmount(portfolioValue, s); err != nil {
		return Custody{}, err
	}
	fee := s.zero()
	if excess := portfolioValue.Sub(s.Custody.ExemptThreshold); excess.IsPositive() {
		fee = fee.Add(excess.MulRate(s.Custody.Rate).Round()).Max(s.Custody.MinimumFee)
	}
	tax := fee.MulRate(s.TaxRate).Round()
	return Custody{Fee: fee, Tax: tax, Total: fee.Add(tax)}, nil
}

// Commission is a shortcut for schedule.Commission(side, amount).
func Commission(side Side, amount Money, schedule FeeSchedule) (CommissionFee, error) {
	return schedule.Commission(side, amount)
}

// CustodyFee is a shortcut for schedule.CustodyFee(portfolioValue).
func CustodyFee(portfolioValue Money, schedule FeeSchedule) (Custody, error) {
	return schedule.CustodyFee(portfolioValue)
}

// Projection is the first year cost of opening a position with a broker:
// the operation commission plus twelve months of custody.
type Projection struct {
	BrokerID           string
	Broker             string
	Side               Side
	OperationAmount    Money
	OperationCost      Money
	AnnualCustody      Money
	TotalFirstYearCost Money
	BreakEvenPct       Rate // percent of the operation amount
}

// ProjectFirstYearCost projects the cost of a side operation of amount,
// followed by a year of custody on projectedPortfolioValue.
func ProjectFirstYearCost(side Side, amount, projectedPortfolioValue Money, schedule FeeSchedule) (Projection, error) {
	op, err := schedule.Commission(side, amount)
	if err != nil {
		return Projection{}, err
	}
	custody, err := schedule.CustodyFee(projectedPortfolioValue)
	if err != nil {
		return Projection{}, err
	}
	annual := custody.Total.Mul(Q(12))
	total := op.Total.Add(annual)
	return Projection{
		BrokerID:           schedule.BrokerID,
		Broker:             schedule.Name(),
		Side:               side,
		OperationAmount:    amount,
		OperationCost:      op.Total,
		AnnualCustody:      annual,
		TotalFirstYearCost: total,
		BreakEvenPct:       total.Ratio(amount).Percent(),
	}, nil
}

// ScheduleRank is one entry of a broker comparison.
type ScheduleRank struct {
	Rank int // 1 is the cheapest
	Projection
	ExtraCostVsBest Money
}

// CompareSchedules projects the same operation with every schedule and ranks
// them from the cheapest first year to the most expensive. Ties are broken
// by broker name, then broker id. One invalid schedule fails the whole
// comparison.
func CompareSchedules(side Side, amount, portfolioValue Money, schedules []FeeSchedule) ([]ScheduleRank, error) {
	ranks := make([]ScheduleRank, 0, len(schedules))
	for _, s := range schedules {
		p, err := ProjectFirstYearCost(side, amount, portfolioValue, s)
		if err != nil {
			return nil, err
		}
		ranks = append(ranks, ScheduleRank{Projection: p})
	}
	if _, err := commonCurrency(scheduleCurrencies(schedules)...); err != nil {
		return nil, err
	}
	slices.SortFunc(ranks, func(a, b ScheduleRank) int {
		if c := a.TotalFirstYearCost.Cmp(b.TotalFirstYearCost); c != 0 {
			return c
		}
		return cmp.Or(cmp.Compare(a.Broker, b.Broker), cmp.Compare(a.BrokerID, b.BrokerID))
	})
	for i := range ranks {
		ranks[i].Rank = i + 1
		ranks[i].ExtraCostVsBest = ranks[i].TotalFirstYearCost.Sub(ranks[0].TotalFirstYearCost)
	}
	return ranks, nil
}

func scheduleCurrencies(schedules []FeeSchedule) []string {
	codes := make([]string, len(schedules))
	for i, s := range schedules {
		codes[i] = s.Currency
	}
	return codes
}

// FeeRecord is the fee line of one trade.
type FeeRecord struct {
	TradeID      int64
	Date         Date
	InstrumentID string
	Symbol       string
	Side         Side
	Commission   Money
	Tax          Money
	Total        Money
}

// TradeFees returns the fee line of every effective trade, in (date, id)
// order. Reversed trades and their reversals carry no fees.
func TradeFees(trades []Trade) []FeeRecord {
	effective := withoutReversals(trades)
	records := make([]FeeRecord, 0, len(effective))
	for _, t := range effective {
		records = append(records, FeeRecord{
			TradeID:      t.ID,
			Date:         t.Date,
			InstrumentID: t.InstrumentID,
			Symbol:       t.Symbol,
			Side:         t.Side,
			Commission:   t.Commission,
			Tax:          t.Tax,
			Total:        t.Fees(),
		})
	}
	return records
}

// withoutReversals returns a sorted copy of trades without reversal trades
// and without the trades they cancel.
func withoutReversals(trades []Trade) []Trade {
	reversed := make(map[int64]bool)
	for _, t := range trades {
		if t.IsReversal() {
			reversed[t.Reverses] = true
		}
	}
	out := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.IsReversal() || reversed[t.ID] {
			continue
		}
		out = append(out, t)
	}
	SortTrades(out)
	return out
}
