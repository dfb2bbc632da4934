package availability

import "github.com/aaleksandraa/frizerino-backend-sub001/internal/model"

// EffectiveWindow intersects the salon opening hours with the staff working hours for date.
// It returns false when either is closed that weekday or when the two ranges do not overlap.
func EffectiveWindow(salon, staff *model.WeeklySchedule, date model.Date) (model.Interval, bool) {
	if salon == nil || staff == nil {
		return model.Interval{}, false
	}

	day := date.Weekday()

	open, ok := salon.Day(day).Window()
	if !ok {
		return model.Interval{}, false
	}

	working, ok := staff.Day(day).Window()
	if !ok {
		return model.Interval{}, false
	}

	w := model.Interval{
		Start: max(open.Start, working.Start),
		End:   min(open.End, working.End),
	}
	if w.Empty() {
		return model.Interval{}, false
	}
	return w, true
}
