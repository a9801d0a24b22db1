package core

import "time"

// DaySummary aggregates all transactions whose date falls within a
// single calendar day.
type DaySummary struct {
	Date          time.Time
	TotalSales    Money
	TotalExpenses Money
	SalesCount    int64
	ExpensesCount int64
}

// RemainingBalance is total sales minus total expenses for the day.
func (s DaySummary) RemainingBalance() Money {
	return Money{Cents: s.TotalSales.Cents - s.TotalExpenses.Cents}
}

// MonthSummary aggregates a full calendar month.
type MonthSummary struct {
	Year          int
	Month         int // 1-12
	TotalSales    Money
	TotalExpenses Money
}

// NetProfit is total sales minus total expenses for the month.
func (s MonthSummary) NetProfit() Money {
	return Money{Cents: s.TotalSales.Cents - s.TotalExpenses.Cents}
}

// Period formats the month as "YYYY-MM".
func (s MonthSummary) Period() string {
	return time.Date(s.Year, time.Month(s.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
