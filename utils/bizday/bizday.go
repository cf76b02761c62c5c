package bizday

import (
	"time"

	"github.com/alpacahq/gopaca/calendar"
	"github.com/equitylab/gocax/models/enum"
	"github.com/equitylab/gocax/utils/date"
)

// IsBusinessDay reports whether d is a trading day on the equity's
// calendar.
func IsBusinessDay(d date.Date) bool {
	return calendar.IsMarketDay(d.In(calendar.NY))
}

// Next returns the first business day strictly after d.
func Next(d date.Date) date.Date {
	cur := d.AddDays(1)
	for !IsBusinessDay(cur) {
		cur = cur.AddDays(1)
	}
	return cur
}

// Prev returns the first business day strictly before d.
func Prev(d date.Date) date.Date {
	cur := d.AddDays(-1)
	for !IsBusinessDay(cur) {
		cur = cur.AddDays(-1)
	}
	return cur
}

// Adjust rolls d onto a business day according to the convention.
// Modified conventions roll back (or forward) when the plain roll
// would cross a month boundary.
func Adjust(d date.Date, conv enum.BusinessDayConvention) date.Date {
	if conv == enum.Unadjusted || IsBusinessDay(d) {
		return d
	}

	switch conv {
	case enum.Following:
		return Next(d)
	case enum.ModifiedFollowing:
		adj := Next(d)
		if adj.Month != d.Month {
			return Prev(d)
		}
		return adj
	case enum.Preceding:
		return Prev(d)
	case enum.ModifiedPreceding:
		adj := Prev(d)
		if adj.Month != d.Month {
			return Next(d)
		}
		return adj
	}
	return d
}

// AdjustPtr adjusts a nullable date in place, returning nil for nil.
func AdjustPtr(d *date.Date, conv enum.BusinessDayConvention) *date.Date {
	if d == nil {
		return nil
	}
	adj := Adjust(*d, conv)
	return &adj
}

// Today returns the date in the exchange timezone for the supplied
// instant.
func Today(t time.Time) date.Date {
	return date.DateOf(t.In(calendar.NY))
}
