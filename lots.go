package tradecost

// lot is the part of a buy trade not yet consumed by sells.
type lot struct {
	TradeID  int64
	Date     Date
	Quantity Quantity // remaining
	Cost     Money    // remaining cost, fees included
}

func newLot(t Trade) lot {
	return lot{
		TradeID:  t.ID,
		Date:     t.Date,
		Quantity: t.Quantity,
		Cost:     t.GrossAmount().Add(t.Fees()).Round(),
	}
}

// lots is a FIFO queue of open lots, oldest first.
type lots []lot

// Quantity returns the total open quantity.
func (l lots) Quantity() Quantity {
	var q Quantity
	for _, x := range l {
		q = q.Add(x.Quantity)
	}
	return q
}

// Cost returns the total open cost.
func (l lots) Cost() Money {
	var c Money
	for _, x := range l {
		c = c.Add(x.Cost)
	}
	return c
}

// consume takes c units from the oldest lot, c must not exceed its
// remaining quantity. It returns the consumed lot slice and the queue left.
//
// The slice takes the share c of the remaining cost, to the cent, so it
// never exceeds what is left. An exhausted lot gives all its remaining cost.
func (l lots) consume(c Quantity) (lot, lots) {
	front := l[0]
	if c.Equal(front.Quantity) {
		return front, l[1:]
	}
	slice := front
	slice.Quantity = c
	slice.Cost = share(front.Cost, c, front.Quantity)
	rest := make(lots, len(l))
	copy(rest, l)
	rest[0].Quantity = front.Quantity.Sub(c)
	rest[0].Cost = front.Cost.Sub(slice.Cost)
	return slice, rest
}

// share returns the part c/of of amount, to the cent. It lies between zero
// and amount when 0 <= c <= of.
func share(amount Money, c, of Quantity) Money {
	return amount.Mul(c).Div(of).Round()
}

// OpenLot is a lot still held after matching.
type OpenLot struct {
	TradeID  int64
	Date     Date
	Quantity Quantity
	Cost     Money
}

func (l lots) open() []OpenLot {
	out := make([]OpenLot, len(l))
	for i, x := range l {
		out[i] = OpenLot{TradeID: x.TradeID, Date: x.Date, Quantity: x.Quantity, Cost: x.Cost}
	}
	return out
}
