package tradecost

// JSON encodings of the computed results. Amounts are written as plain
// numbers next to a single "currency" key, like the ledger records.

func (c CommissionFee) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("currency", c.Total.Currency())
	w.Append("commission", c.Base.Decimal())
	w.Append("tax", c.Tax.Decimal())
	w.Append("total", c.Total.Decimal())
	return w.MarshalJSON()
}

func (c Custody) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("currency", c.Total.Currency())
	w.Append("fee", c.Fee.Decimal())
	w.Append("tax", c.Tax.Decimal())
	w.Append("total", c.Total.Decimal())
	return w.MarshalJSON()
}

func (p Projection) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("brokerId", p.BrokerID)
	w.Append("broker", p.Broker)
	w.Append("side", p.Side)
	w.Optional("currency", p.TotalFirstYearCost.Currency())
	w.Append("operationAmount", p.OperationAmount.Decimal())
	w.Append("operationCost", p.OperationCost.Decimal())
	w.Append("annualCustody", p.AnnualCustody.Decimal())
	w.Append("totalFirstYearCost", p.TotalFirstYearCost.Decimal())
	w.Append("breakEvenPct", p.BreakEvenPct)
	return w.MarshalJSON()
}

// MarshalJSON is required: the embedded Projection would otherwise provide
// the encoding and drop the rank.
func (r ScheduleRank) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("rank", r.Rank)
	w.EmbedFrom(r.Projection)
	w.Append("extraCostVsBest", r.ExtraCostVsBest.Decimal())
	return w.MarshalJSON()
}

func (f FeeRecord) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("tradeId", f.TradeID)
	w.Append("tradeDate", f.Date)
	w.Append("instrumentId", f.InstrumentID)
	w.Append("symbol", f.Symbol)
	w.Append("side", f.Side)
	w.Optional("currency", f.Total.Currency())
	w.Append("commission", f.Commission.Decimal())
	w.Append("tax", f.Tax.Decimal())
	w.Append("total", f.Total.Decimal())
	return w.MarshalJSON()
}

func (r CustodyFeeRecord) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("brokerId", r.BrokerID)
	w.Append("month", r.Month.Format("2006-01"))
	w.Optional("currency", r.TotalCharged.Currency())
	w.Append("portfolioValue", r.PortfolioValue.Decimal())
	w.Append("feeAmount", r.FeeAmount.Decimal())
	w.Append("taxAmount", r.TaxAmount.Decimal())
	w.Append("totalCharged", r.TotalCharged.Decimal())
	return w.MarshalJSON()
}

func (o CustodyOptimization) MarshalJSON() ([]byte, error) {
	type alternative struct {
		BrokerID string `json:"brokerId"`
		Broker   string `json:"broker"`
		Cost     any    `json:"cost"`
	}
	alternatives := make([]alternative, len(o.Alternatives))
	for i, a := range o.Alternatives {
		alternatives[i] = alternative{a.BrokerID, a.Broker, a.Cost.Decimal()}
	}
	var w jsonObjectWriter
	w.Append("brokerId", o.BrokerID)
	w.Append("months", o.Months)
	w.Optional("currency", o.CurrentCost.Currency())
	w.Append("currentCost", o.CurrentCost.Decimal())
	w.Append("alternatives", alternatives)
	w.Append("annualSavings", o.AnnualSavings.Decimal())
	return w.MarshalJSON()
}

func (p Profitability) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("closed", p.Closed)
	w.Append("wins", p.Wins)
	w.Append("losses", p.Losses)
	w.Append("winRate", p.WinRate)
	w.Optional("currency", p.TotalRealized.Currency())
	w.Append("avgWin", p.AvgWin.Decimal())
	w.Append("avgLoss", p.AvgLoss.Decimal())
	w.Append("profitFactor", p.ProfitFactor)
	w.Append("costAdjustedROI", p.CostAdjustedROI)
	w.Append("totalGains", p.TotalGains.Decimal())
	w.Append("totalLosses", p.TotalLosses.Decimal())
	w.Append("totalRealized", p.TotalRealized.Decimal())
	w.Append("totalCost", p.TotalCost.Decimal())
	return w.MarshalJSON()
}

func (s HoldingStats) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("count", s.Count)
	w.Append("meanDays", s.Mean)
	w.Append("medianDays", s.Median)
	w.Append("stdDevDays", s.StdDev)
	w.Append("shortTerm", s.ShortTerm)
	w.Append("longTerm", s.LongTerm)
	return w.MarshalJSON()
}

func (b Benchmark) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("ourCostPct", b.OurCostPct)
	w.Append("industryPct", b.IndustryPct)
	w.Append("relativePerformance", b.RelativePerformance)
	w.Append("efficiencyScore", b.EfficiencyScore)
	return w.MarshalJSON()
}
