package report

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"mnstat/internal/model"
)

// WriteCSV flattens a report to CSV with a fixed column order, one
// row per (node, test).
func WriteCSV(w io.Writer, rep model.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"run_id",
		"node_id",
		"test",
		"method",
		"url",
		"tstamp",
		"elapsed_sec",
		"status",
		"message",
		"count",
		"earliest",
		"earliest_pid",
		"latest",
		"latest_pid",
		"earliest_sid",
		"latest_sid",
		"earliest_uploaded",
		"latest_uploaded",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, node := range rep.Nodes {
		tests := make([]string, 0, len(node.Checks))
		for test := range node.Checks {
			tests = append(tests, test)
		}
		sort.Strings(tests)

		for _, test := range tests {
			res := node.Checks[test]
			record := []string{
				rep.RunID,
				node.NodeID,
				test,
				res.Method,
				res.URL,
				res.Timestamp.UTC().Format(time.RFC3339),
				strconv.FormatFloat(res.ElapsedSec, 'f', 3, 64),
				strconv.Itoa(res.Status),
				res.Message,
				formatCount(res.Count),
				formatTime(res.Earliest),
				res.EarliestPID,
				formatTime(res.Latest),
				res.LatestPID,
				res.EarliestSID,
				res.LatestSID,
				formatTime(res.EarliestUploaded),
				formatTime(res.LatestUploaded),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return writer.Error()
}

func formatCount(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}
