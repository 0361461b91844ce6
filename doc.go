// Package tradecost turns a ledger of buy and sell trades into realized
// gains, fee schedules and time-bucketed cost analytics.
//
// The core functionalities include:
//   - Lot Matching: a stateless FIFO engine that pairs every sell with the
//     oldest open buy quantity of the same instrument, producing round-trips
//     and the remaining open position.
//   - Fee Schedules: tiered brokerage commissions, monthly custody fees and
//     the tax charged on them, first-year cost projections and broker
//     comparisons.
//   - Aggregation: monthly, quarterly and yearly aggregates of volume, costs
//     and realized results, profitability metrics, benchmark comparison and
//     table-driven cost alerts.
//
// Every computation is a pure function of its arguments. Amounts are exact
// decimals rounded to the cent, rates to four digits, so that re-aggregating
// the same snapshot always yields the same figures.
//
// This package is the foundation of the `tcx` command-line tool, the ledger
// store and the report assembler, which all read a single snapshot of the
// trade ledger before calling into it.
package tradecost
