package portable

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// WriteCSV writes one row per record, with times in loc.
func WriteCSV(w io.Writer, d *Data, loc *time.Location) error {
	cw := csv.NewWriter(w)

	categories := make(map[string]string, len(d.Categories))
	for _, c := range d.Categories {
		categories[c.ID] = c.Label
	}
	activities := make(map[string]Activity, len(d.Activities))
	for _, a := range d.Activities {
		activities[a.ID] = a
	}

	if err := cw.Write([]string{"ID", "Category", "Activity", "Start", "End", "Frames", "Duration (s)", "Duration", "Memo"}); err != nil {
		return err
	}

	for _, r := range d.Records {
		if len(r.TimeFrames) == 0 {
			continue
		}
		activity, category := "???", "Uncategorized"
		if a, ok := activities[r.ActivityID]; ok {
			activity = a.Label
			if label, ok := categories[a.CategoryID]; ok {
				category = label
			}
		}
		var total time.Duration
		for _, f := range r.TimeFrames {
			if f.End.After(f.Start) {
				total += f.End.Sub(f.Start)
			}
		}
		secs := int64(total / time.Second)

		row := []string{
			r.ID,
			category,
			activity,
			r.TimeFrames[0].Start.In(loc).Format(time.RFC3339),
			r.TimeFrames[len(r.TimeFrames)-1].End.In(loc).Format(time.RFC3339),
			fmt.Sprintf("%d", len(r.TimeFrames)),
			fmt.Sprintf("%d", secs),
			formatDuration(secs),
			r.Memo,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
