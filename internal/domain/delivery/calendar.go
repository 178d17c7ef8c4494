package delivery

import (
	"time"

	"github.com/petalpost/petalpost/internal/types"
)

// MonthCalendar lists the Mondays of one cycle month and labels them by ordinal
type MonthCalendar struct {
	Month   types.CycleMonth
	Mondays []time.Time
	// Slots maps first..fourth and last to concrete dates. A label is absent
	// only when the month has fewer Mondays than its position.
	Slots map[types.OrdinalSlot]time.Time
}

// ResolveMonth enumerates every Monday of month at midnight in loc
func ResolveMonth(month types.CycleMonth, loc *time.Location) MonthCalendar {
	if loc == nil {
		loc = time.UTC
	}

	first := month.Start(loc)
	offset := (int(time.Monday) - int(first.Weekday()) + 7) % 7
	mondays := make([]time.Time, 0, 5)
	for d := first.AddDate(0, 0, offset); month.Contains(d); d = d.AddDate(0, 0, 7) {
		mondays = append(mondays, d)
	}

	slots := make(map[types.OrdinalSlot]time.Time, len(types.AllOrdinalSlots))
	positional := []types.OrdinalSlot{
		types.OrdinalSlotFirst,
		types.OrdinalSlotSecond,
		types.OrdinalSlotThird,
		types.OrdinalSlotFourth,
	}
	for i, slot := range positional {
		if i < len(mondays) {
			slots[slot] = mondays[i]
		}
	}
	if len(mondays) > 0 {
		slots[types.OrdinalSlotLast] = mondays[len(mondays)-1]
	}

	return MonthCalendar{
		Month:   month,
		Mondays: mondays,
		Slots:   slots,
	}
}

// Date returns the concrete date of slot, if the month has one
func (c MonthCalendar) Date(slot types.OrdinalSlot) (time.Time, bool) {
	d, ok := c.Slots[slot]
	return d, ok
}
