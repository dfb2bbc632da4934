package availability

import "github.com/aaleksandraa/frizerino-backend-sub001/internal/model"

// Candidates returns start, start+step, ... up to end, and always ends with end itself even
// when end is off the step grid. A non-positive step falls back to the default slot step.
func Candidates(start, end model.TimeOfDay, step int) []model.TimeOfDay {
	if end < start {
		return nil
	}
	if step <= 0 {
		step = model.DefaultSlotStep
	}

	out := make([]model.TimeOfDay, 0, end.Sub(start)/step+2)
	for cursor := start; cursor <= end; cursor = cursor.Add(step) {
		out = append(out, cursor)
	}

	if out[len(out)-1] != end {
		out = append(out, end)
	}
	return out
}
