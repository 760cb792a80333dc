package check

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"time"

	"mnstat/internal/dataone"
	"mnstat/internal/model"
)

// Member nodes do not sort listObjects by modified date, so the date
// range has to be discovered by probing date windows: widen forward
// from the network epoch for the earliest record, widen backward from
// now for the latest.
const (
	epochYear          = 2012
	earliestStepDays   = 180
	latestInitialDays  = 2
	latestMaxStepDays  = 365
	dateWindowPageSize = 1000
)

type dateRange struct {
	earliest    *time.Time
	earliestPID string
	latest      *time.Time
	latestPID   string
}

func (c *Checker) dateRange(ctx context.Context, listURL string, extra url.Values, task string) dateRange {
	slog.Info("grok date range", "task", task, "node", c.nodeID)
	var dr dateRange

	now := time.Now().UTC()
	epoch := time.Date(epochYear, 1, 1, 0, 0, 0, 0, time.UTC)

	// Earliest record: grow the toDate bound forward from the epoch.
	for offs := 0; ctx.Err() == nil; offs += earliestStepDays {
		t1 := epoch.AddDate(0, 0, offs)
		if t1.Year() > now.Year() {
			break
		}
		slog.Debug("earliest probe", "task", task, "node", c.nodeID, "to", t1)
		w := c.modifiedWindow(ctx, listURL, extra, time.Time{}, t1)
		if w.total > 0 && len(w.objects) > 0 {
			first := w.objects[0]
			ts := first.DateModified
			dr.earliest = &ts
			dr.earliestPID = first.Identifier
			break
		}
	}

	// Latest record: grow the fromDate bound backward from now with a
	// doubling step, capped at a year.
	t1 := now
	offs := latestInitialDays
	inc := latestInitialDays
	for ctx.Err() == nil {
		t0 := t1.AddDate(0, 0, -offs)
		if t0.Year() < epochYear {
			break
		}
		slog.Debug("latest probe", "task", task, "node", c.nodeID, "from", t0, "to", t1)
		w := c.modifiedWindow(ctx, listURL, extra, t0, t1)
		if w.total > 0 && len(w.objects) > 0 {
			last := w.objects[len(w.objects)-1]
			ts := last.DateModified
			dr.latest = &ts
			dr.latestPID = last.Identifier
			break
		}
		inc *= 2
		if inc > latestMaxStepDays {
			inc = latestMaxStepDays
		}
		offs += inc
	}

	return dr
}

type window struct {
	status  int
	total   int
	objects []model.ObjectInfo // ascending by DateModified
}

func (c *Checker) modifiedWindow(ctx context.Context, listURL string, extra url.Values, t0, t1 time.Time) window {
	params := url.Values{
		"start": []string{"0"},
		"count": []string{strconv.Itoa(dateWindowPageSize)},
	}
	for k, vs := range extra {
		params[k] = vs
	}
	if !t0.IsZero() {
		params.Set("fromDate", dataone.FormatTime(t0))
	}
	if !t1.IsZero() {
		params.Set("toDate", dataone.FormatTime(t1))
	}

	res := c.client.Get(ctx, listURL, params)
	w := window{status: res.Status}
	if !res.OK() {
		return w
	}

	list, err := dataone.ParseObjectList(res.Body)
	if err != nil {
		slog.Error("failed to parse listObjects window", "url", res.URL, "err", err)
		w.status = dataone.StatusDecodeError
		return w
	}

	w.total = list.Total
	w.objects = append(w.objects, list.Objects...)
	sort.Slice(w.objects, func(i, j int) bool {
		return w.objects[i].DateModified.Before(w.objects[j].DateModified)
	})
	return w
}
