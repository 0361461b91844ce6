package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/etnz/tradecost"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrUnknownBroker is returned when looking up a schedule that is not defined.
var ErrUnknownBroker = errors.New("unknown broker")

// amount is a decimal that can be written either as a YAML number or as a
// string, strings being preferred to avoid float parsing.
type amount struct {
	decimal.Decimal
	set bool
}

func (a *amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a decimal, got a %v", node.Line, node.Tag)
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid decimal %q: %w", node.Line, node.Value, err)
	}
	a.Decimal, a.set = d, true
	return nil
}

type tierFile struct {
	Min  amount `yaml:"min"`
	Max  amount `yaml:"max"` // omitted for an open-ended tier
	Rate amount `yaml:"rate"`
}

type custodyFile struct {
	ExemptThreshold amount `yaml:"exempt_threshold"`
	Rate            amount `yaml:"rate"`
	MinimumFee      amount `yaml:"minimum_fee"`
}

type scheduleFile struct {
	BrokerID      string      `yaml:"broker_id"`
	Broker        string      `yaml:"broker"`
	Currency      string      `yaml:"currency"`
	EffectiveFrom string      `yaml:"effective_from"`
	MinimumFee    amount      `yaml:"minimum_fee"`
	TaxRate       amount      `yaml:"tax_rate"`
	BuyTiers      []tierFile  `yaml:"buy_tiers"`
	SellTiers     []tierFile  `yaml:"sell_tiers"`
	Custody       custodyFile `yaml:"custody"`
}

type schedulesFile struct {
	Schedules []scheduleFile `yaml:"schedules"`
}

func (f scheduleFile) schedule() (tradecost.FeeSchedule, error) {
	m := func(a amount) tradecost.Money { return tradecost.M(a.Decimal, f.Currency) }
	tiers := func(in []tierFile) []tradecost.Tier {
		out := make([]tradecost.Tier, len(in))
		for i, t := range in {
			out[i] = tradecost.Tier{Min: m(t.Min), Max: m(t.Max), Rate: tradecost.R(t.Rate.Decimal)}
		}
		return out
	}
	s := tradecost.FeeSchedule{
		BrokerID:   f.BrokerID,
		Broker:     f.Broker,
		Currency:   f.Currency,
		BuyTiers:   tiers(f.BuyTiers),
		SellTiers:  tiers(f.SellTiers),
		MinimumFee: m(f.MinimumFee),
		TaxRate:    tradecost.R(f.TaxRate.Decimal),
		Custody: tradecost.CustodyTerms{
			ExemptThreshold: m(f.Custody.ExemptThreshold),
			Rate:            tradecost.R(f.Custody.Rate.Decimal),
			MinimumFee:      m(f.Custody.MinimumFee),
		},
	}
	if f.EffectiveFrom != "" {
		d, err := tradecost.ParseDate(f.EffectiveFrom)
		if err != nil {
			return s, fmt.Errorf("broker %s: effective_from: %w", f.BrokerID, err)
		}
		s.EffectiveFrom = d
	}
	for i, t := range f.BuyTiers {
		if !t.Rate.set {
			return s, &tradecost.InvalidScheduleError{ScheduleID: f.BrokerID, Reason: fmt.Sprintf("buy tier %d has no rate", i)}
		}
	}
	for i, t := range f.SellTiers {
		if !t.Rate.set {
			return s, &tradecost.InvalidScheduleError{ScheduleID: f.BrokerID, Reason: fmt.Sprintf("sell tier %d has no rate", i)}
		}
	}
	return s, nil
}

// DecodeSchedules reads fee schedules from YAML and validates each of them.
// Broker ids must be unique.
func DecodeSchedules(r io.Reader) ([]tradecost.FeeSchedule, error) {
	var file schedulesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not decode fee schedules: %w", err)
	}
	seen := make(map[string]bool)
	schedules := make([]tradecost.FeeSchedule, 0, len(file.Schedules))
	for _, f := range file.Schedules {
		s, err := f.schedule()
		if err != nil {
			return nil, err
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.BrokerID] {
			return nil, &tradecost.InvalidScheduleError{ScheduleID: s.BrokerID, Reason: "defined twice"}
		}
		seen[s.BrokerID] = true
		schedules = append(schedules, s)
	}
	return schedules, nil
}

// LoadSchedules reads the fee schedules file at path.
func LoadSchedules(path string) ([]tradecost.FeeSchedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open fee schedules: %w", err)
	}
	defer f.Close()
	return DecodeSchedules(f)
}

// FindSchedule returns the schedule of broker id.
func FindSchedule(schedules []tradecost.FeeSchedule, id string) (tradecost.FeeSchedule, error) {
	for _, s := range schedules {
		if s.BrokerID == id {
			return s, nil
		}
	}
	return tradecost.FeeSchedule{}, fmt.Errorf("%w %q", ErrUnknownBroker, id)
}
