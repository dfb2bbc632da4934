package availability

import (
	"sort"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

// Blocked is the unavailability that applies to one date.
type Blocked struct {
	// WholeDay is set when an active salon or staff vacation covers the date.
	WholeDay bool
	// Windows are the active breaks of the date, sorted by start.
	Windows []model.Interval
	// Ignored holds active breaks for the date whose start is not before their end.
	Ignored []model.Break
}

// CollectExclusions unions salon-wide and staff exclusions that apply on date.
// Inactive entries are skipped.
func CollectExclusions(date model.Date, salon, staff model.Exclusions) Blocked {
	var b Blocked
	for _, ex := range [...]model.Exclusions{salon, staff} {
		for _, v := range ex.Vacations {
			if v.Active && v.Covers(date) {
				b.WholeDay = true
			}
		}
		for _, br := range ex.Breaks {
			if !br.Active || br.Recurrence == nil || !br.Recurrence.AppliesOn(date) {
				continue
			}
			w, ok := br.Window()
			if !ok {
				b.Ignored = append(b.Ignored, br)
				continue
			}
			b.Windows = append(b.Windows, w)
		}
	}

	sort.Slice(b.Windows, func(i, j int) bool {
		if b.Windows[i].Start == b.Windows[j].Start {
			return b.Windows[i].End < b.Windows[j].End
		}
		return b.Windows[i].Start < b.Windows[j].Start
	})

	return b
}

// Blocks reports whether iv cannot be booked because of a vacation or a break.
func (b Blocked) Blocks(iv model.Interval) bool {
	if b.WholeDay {
		return true
	}
	for _, w := range b.Windows {
		if w.Overlaps(iv) {
			return true
		}
	}
	return false
}
