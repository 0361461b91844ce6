package tradecost

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Severity ranks alerts.
type Severity int

const (
	Medium Severity = iota + 1
	High
)

func (s Severity) String() string {
	switch s {
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) { return []byte(`"` + s.String() + `"`), nil }

// Alert codes.
const (
	HighCommissionPct   = "HIGH_COMMISSION_PCT"
	FrequentSmallTrades = "FREQUENT_SMALL_TRADES"
	ExcessiveCustody    = "EXCESSIVE_CUSTODY"
)

// alertNamespace seeds the name based alert ids.
var alertNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/etnz/tradecost/alerts"))

// Alert is a cost issue detected in the ledger.
type Alert struct {
	ID                uuid.UUID // stable for a given code and subject
	Code              string
	Severity          Severity
	Subject           string
	Message           string
	RecommendedAction string
	PotentialSavings  Money
}

func newAlert(code string, severity Severity, subject string) Alert {
	return Alert{
		ID:       uuid.NewSHA1(alertNamespace, []byte(code+"/"+subject)),
		Code:     code,
		Severity: severity,
		Subject:  subject,
	}
}

// MarshalJSON writes the alert with the savings as a plain number.
func (a Alert) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", a.ID)
	w.Append("code", a.Code)
	w.Append("severity", a.Severity)
	w.Append("subject", a.Subject)
	w.Append("message", a.Message)
	w.Append("recommendedAction", a.RecommendedAction)
	w.Optional("currency", a.PotentialSavings.Currency())
	w.Append("potentialSavings", a.PotentialSavings.Decimal())
	return w.MarshalJSON()
}

// Thresholds parameterize the alert rules.
type Thresholds struct {
	// CommissionMedium and CommissionHigh bound the fees over net amount
	// ratio of a single trade.
	CommissionMedium Rate
	CommissionHigh   Rate
	// SmallTradeFloor is the gross amount under which a trade is small. Zero
	// disables the rule.
	SmallTradeFloor Money
	// SmallTradeShare is the share of small trades above which they are
	// too frequent.
	SmallTradeShare Rate
	// Range restricts the trades inspected. Zero means all.
	Range Range
	// CustodyAlternatives are the schedules the custody records are compared
	// with.
	CustodyAlternatives []FeeSchedule
}

// DefaultThresholds returns the standard thresholds: 2% and 5% of commission
// and 30% of small trades.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CommissionMedium: R(0.02),
		CommissionHigh:   R(0.05),
		SmallTradeShare:  R(0.30),
	}
}

// alertInput is what every rule sees.
type alertInput struct {
	trades     []Trade // effective, in range
	roundTrips []RoundTrip
	custody    []CustodyFeeRecord
	th         Thresholds
	currency   string
}

// alertRule inspects the input and reports zero or more alerts.
type alertRule struct {
	code  string
	check func(in alertInput) ([]Alert, error)
}

var alertRules = []alertRule{
	{HighCommissionPct, checkHighCommission},
	{FrequentSmallTrades, checkSmallTrades},
	{ExcessiveCustody, checkCustody},
}

// Alerts runs every alert rule and returns the alerts sorted by severity
// (high first), code and subject.
func Alerts(trades []Trade, roundTrips []RoundTrip, custody []CustodyFeeRecord, th Thresholds) ([]Alert, error) {
	codes := entityCurrencies(trades, roundTrips, custody)
	codes = append(codes, th.SmallTradeFloor.Currency())
	currency, err := commonCurrency(codes...)
	if err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	in := alertInput{roundTrips: roundTrips, custody: custody, th: th, currency: currency}
	for _, t := range withoutReversals(trades) {
		if th.Range.IsZero() || th.Range.Contains(t.Date) {
			in.trades = append(in.trades, t)
		}
	}

	var alerts []Alert
	for _, rule := range alertRules {
		found, err := rule.check(in)
		if err != nil {
			return nil, fmt.Errorf("alert %s: %w", rule.code, err)
		}
		alerts = append(alerts, found...)
	}
	slices.SortFunc(alerts, func(a, b Alert) int {
		return cmp.Or(cmp.Compare(b.Severity, a.Severity), cmp.Compare(a.Code, b.Code), cmp.Compare(a.Subject, b.Subject))
	})
	return alerts, nil
}

// checkHighCommission flags every trade whose fees weigh more than the
// medium threshold of its net amount. Savings are the fees above that
// threshold.
func checkHighCommission(in alertInput) ([]Alert, error) {
	var alerts []Alert
	for _, t := range in.trades {
		fees, net := t.Fees(), t.NetAmount()
		if fees.IsZero() {
			continue
		}
		severity := High
		if net.IsPositive() {
			r := fees.Ratio(net)
			if !r.GreaterThan(in.th.CommissionMedium) {
				continue
			}
			if !r.GreaterThan(in.th.CommissionHigh) {
				severity = Medium
			}
		}
		a := newAlert(HighCommissionPct, severity, fmt.Sprintf("trade-%d", t.ID))
		a.Message = fmt.Sprintf("%s %s %s on %s: fees %s are %s of the net amount %s",
			t.Side, t.Quantity, t.Symbol, t.Date, fees, pctOf(fees, net), net)
		a.RecommendedAction = "Group orders into larger operations or use a broker with a lower minimum fee."
		a.PotentialSavings = fees.Sub(net.MulRate(in.th.CommissionMedium)).Round()
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func pctOf(a, b Money) string {
	if !b.IsPositive() {
		return "more than 100%"
	}
	return a.Ratio(b).Round().PercentString()
}

// checkSmallTrades flags a ledger where too many trades are under the floor.
// Savings are what merging the small trades of the same instrument, side
// and month into one would have saved: every fee but the largest of each
// group.
func checkSmallTrades(in alertInput) ([]Alert, error) {
	if in.th.SmallTradeFloor.IsZero() || len(in.trades) == 0 {
		return nil, nil
	}
	type group struct {
		instrument string
		side       Side
		month      Date
	}
	zero := M(0, in.currency)
	largest := make(map[group]Money)
	small, fees := 0, zero
	for _, t := range in.trades {
		if !t.GrossAmount().LessThan(in.th.SmallTradeFloor) {
			continue
		}
		small++
		fees = fees.Add(t.Fees())
		g := group{t.InstrumentID, t.Side, t.Date.StartOf(Monthly)}
		if m, ok := largest[g]; !ok || t.Fees().GreaterThan(m) {
			largest[g] = t.Fees()
		}
	}
	share := R(small).divInt(len(in.trades))
	if !share.GreaterThan(in.th.SmallTradeShare) {
		return nil, nil
	}
	kept := zero
	for _, m := range largest {
		kept = kept.Add(m)
	}
	a := newAlert(FrequentSmallTrades, Medium, "portfolio")
	a.Message = fmt.Sprintf("%d of %d trades (%s) are below %s", small, len(in.trades), share.PercentString(), in.th.SmallTradeFloor)
	a.RecommendedAction = "Accumulate orders of the same instrument into fewer, larger trades."
	a.PotentialSavings = fees.Sub(kept).Round()
	return []Alert{a}, nil
}

// checkCustody flags each broker whose custody would have been cheaper with
// one of the alternatives.
func checkCustody(in alertInput) ([]Alert, error) {
	if len(in.custody) == 0 || len(in.th.CustodyAlternatives) == 0 {
		return nil, nil
	}
	byBroker := make(map[string][]CustodyFeeRecord)
	for _, r := range in.custody {
		byBroker[r.BrokerID] = append(byBroker[r.BrokerID], r)
	}
	var alerts []Alert
	for broker, records := range byBroker {
		var others []FeeSchedule
		for _, s := range in.th.CustodyAlternatives {
			if s.BrokerID != broker {
				others = append(others, s)
			}
		}
		opt, err := OptimizeCustody(records, others)
		if err != nil {
			return nil, err
		}
		best, ok := opt.Best()
		if !ok || !opt.AnnualSavings.IsPositive() {
			continue
		}
		a := newAlert(ExcessiveCustody, Medium, broker)
		a.Message = fmt.Sprintf("custody at %s cost %s over %d months, %s would have charged %s",
			broker, opt.CurrentCost, opt.Months, best.Broker, best.Cost)
		a.RecommendedAction = fmt.Sprintf("Consider moving custody to %s.", best.Broker)
		a.PotentialSavings = opt.AnnualSavings
		alerts = append(alerts, a)
	}
	return alerts, nil
}
