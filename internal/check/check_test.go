package check

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mnstat/internal/dataone"
)

type fixtureObject struct {
	id   string
	date time.Time
}

var fixtures = []fixtureObject{
	{"pid-old", time.Date(2013, 5, 10, 8, 0, 0, 0, time.UTC)},
	{"pid-mid", time.Date(2017, 11, 2, 12, 30, 0, 0, time.UTC)},
	{"pid-new", time.Date(2021, 2, 3, 4, 5, 6, 0, time.UTC)},
}

// objectListHandler serves a listObjects endpoint over the fixture
// objects, honoring fromDate/toDate filtering the way a node would.
func objectListHandler(t *testing.T, requireNodeID string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if requireNodeID != "" && q.Get("nodeId") != requireNodeID {
			t.Errorf("nodeId=%q", q.Get("nodeId"))
		}

		var from, to time.Time
		if v := q.Get("fromDate"); v != "" {
			ts, err := dataone.ParseTime(v)
			if err != nil {
				t.Errorf("fromDate=%q: %v", v, err)
			}
			from = ts
		}
		if v := q.Get("toDate"); v != "" {
			ts, err := dataone.ParseTime(v)
			if err != nil {
				t.Errorf("toDate=%q: %v", v, err)
			}
			to = ts
		}

		var hits []fixtureObject
		for _, obj := range fixtures {
			if !from.IsZero() && obj.date.Before(from) {
				continue
			}
			if !to.IsZero() && obj.date.After(to) {
				continue
			}
			hits = append(hits, obj)
		}

		fmt.Fprintf(w, `<d1:objectList xmlns:d1="http://ns.dataone.org/service/types/v1" count="%d" start="0" total="%d">`,
			len(hits), len(hits))
		for _, obj := range hits {
			fmt.Fprintf(w, `<objectInfo>
  <identifier>%s</identifier>
  <formatId>text/plain</formatId>
  <checksum algorithm="MD5">00</checksum>
  <dateSysMetadataModified>%s</dateSysMetadataModified>
  <size>1</size>
</objectInfo>`, obj.id, obj.date.Format(time.RFC3339))
		}
		fmt.Fprint(w, `</d1:objectList>`)
	}
}

func newChecker(t *testing.T, mux *http.ServeMux) (*Checker, *httptest.Server) {
	t.Helper()
	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)

	c := New(dataone.NewClient(dataone.Options{}), Options{
		NodeID:    "urn:node:TEST",
		BaseURL:   s.URL + "/mn",
		CNBaseURL: s.URL + "/cn",
		Version:   2,
	})
	return c, s
}

func TestPing_OK(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/mn/v2/monitor/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	c, _ := newChecker(t, mux)

	res := c.Ping(context.Background())
	if res.Status != http.StatusOK {
		t.Fatalf("status=%d message=%q", res.Status, res.Message)
	}
	if res.Method != "ping" {
		t.Fatalf("method=%q", res.Method)
	}
	if res.ElapsedSec <= 0 || res.Timestamp.IsZero() {
		t.Fatalf("result=%+v", res)
	}
}

func TestPing_Down(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux() // no ping route
	c, _ := newChecker(t, mux)

	res := c.Ping(context.Background())
	if res.Status != http.StatusNotFound {
		t.Fatalf("status=%d", res.Status)
	}
	if res.Message == "" {
		t.Fatalf("message empty")
	}
}

func TestMNObjectInfo(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/mn/v2/object", objectListHandler(t, ""))
	c, _ := newChecker(t, mux)

	res := c.MNObjectInfo(context.Background())
	if res.Status != http.StatusOK {
		t.Fatalf("status=%d message=%q", res.Status, res.Message)
	}
	if res.Method != "mn.listObjects" {
		t.Fatalf("method=%q", res.Method)
	}
	if res.Count == nil || *res.Count != len(fixtures) {
		t.Fatalf("count=%v", res.Count)
	}
	if res.EarliestPID != "pid-old" || res.LatestPID != "pid-new" {
		t.Fatalf("range: earliest=%q latest=%q", res.EarliestPID, res.LatestPID)
	}
	if res.Earliest == nil || !res.Earliest.Equal(fixtures[0].date) {
		t.Fatalf("earliest=%v", res.Earliest)
	}
	if res.Latest == nil || !res.Latest.Equal(fixtures[2].date) {
		t.Fatalf("latest=%v", res.Latest)
	}
}

func TestMNObjectInfo_EmptyNode(t *testing.T) {
	t.Parallel()

	// A node holding nothing: every date window the range probing
	// tries, from the 2012 epoch forward and from now backward, comes
	// up empty, and the result carries a zero count with no range.
	mux := http.NewServeMux()
	mux.HandleFunc("/mn/v2/object", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<d1:objectList xmlns:d1="http://ns.dataone.org/service/types/v1" count="0" start="0" total="0"></d1:objectList>`)
	})
	c, _ := newChecker(t, mux)

	res := c.MNObjectInfo(context.Background())
	if res.Status != http.StatusOK {
		t.Fatalf("status=%d message=%q", res.Status, res.Message)
	}
	if res.Count == nil || *res.Count != 0 {
		t.Fatalf("count=%v", res.Count)
	}
	if res.Earliest != nil || res.Latest != nil {
		t.Fatalf("range: earliest=%v latest=%v", res.Earliest, res.Latest)
	}
	if res.EarliestPID != "" || res.LatestPID != "" {
		t.Fatalf("pids: earliest=%q latest=%q", res.EarliestPID, res.LatestPID)
	}
}

func TestCNObjectInfo(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/cn/v2/object", objectListHandler(t, "urn:node:TEST"))
	c, _ := newChecker(t, mux)

	res := c.CNObjectInfo(context.Background())
	if res.Status != http.StatusOK {
		t.Fatalf("status=%d message=%q", res.Status, res.Message)
	}
	if res.Method != "cn.listObjects" {
		t.Fatalf("method=%q", res.Method)
	}
	if res.Count == nil || *res.Count != len(fixtures) {
		t.Fatalf("count=%v", res.Count)
	}
	if res.EarliestPID != "pid-old" || res.LatestPID != "pid-new" {
		t.Fatalf("range: %+v", res)
	}
}

func TestMNObjectInfo_ServerError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/mn/v2/object", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusBadGateway)
	})
	c, _ := newChecker(t, mux)

	res := c.MNObjectInfo(context.Background())
	if res.Status != http.StatusBadGateway {
		t.Fatalf("status=%d", res.Status)
	}
	if res.Count != nil {
		t.Fatalf("count should be unset, got %v", *res.Count)
	}
}

func TestMNObjectInfo_BadPayload(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/mn/v2/object", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>surprise login page</html>"))
	})
	c, _ := newChecker(t, mux)

	res := c.MNObjectInfo(context.Background())
	if res.Status != dataone.StatusDecodeError {
		t.Fatalf("status=%d", res.Status)
	}
}

func TestIndexObjectInfo(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/cn/v2/query/solr/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != `datasource:urn\:node\:TEST` {
			t.Errorf("q=%q", q.Get("q"))
		}
		doc := `{"id":"pid-old","seriesId":"sid-old","dateModified":"2013-05-10T08:00:00Z","dateUploaded":"2013-05-09T00:00:00Z"}`
		if q.Get("sort") == "dateModified desc" {
			doc = `{"id":"pid-new","seriesId":"sid-new","dateModified":"2021-02-03T04:05:06Z","dateUploaded":"2021-02-01T00:00:00Z"}`
		}
		fmt.Fprintf(w, `{"response":{"numFound":3,"start":0,"docs":[%s]}}`, doc)
	})
	c, _ := newChecker(t, mux)

	res := c.IndexObjectInfo(context.Background())
	if res.Status != http.StatusOK {
		t.Fatalf("status=%d message=%q", res.Status, res.Message)
	}
	if res.Method != "cn.index" {
		t.Fatalf("method=%q", res.Method)
	}
	if res.Count == nil || *res.Count != 3 {
		t.Fatalf("count=%v", res.Count)
	}
	if res.EarliestPID != "pid-old" || res.EarliestSID != "sid-old" {
		t.Fatalf("earliest: %+v", res)
	}
	if res.LatestPID != "pid-new" || res.LatestSID != "sid-new" {
		t.Fatalf("latest: %+v", res)
	}
	if res.EarliestUploaded == nil || res.LatestUploaded == nil {
		t.Fatalf("uploaded dates missing: %+v", res)
	}
}

func TestIndexObjectInfo_BadJSON(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/cn/v2/query/solr/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})
	c, _ := newChecker(t, mux)

	res := c.IndexObjectInfo(context.Background())
	if res.Status != dataone.StatusDecodeError {
		t.Fatalf("status=%d", res.Status)
	}
}

func TestRun_UnknownTest(t *testing.T) {
	t.Parallel()

	c := New(dataone.NewClient(dataone.Options{}), Options{NodeID: "x", BaseURL: "http://127.0.0.1:1"})
	if _, err := c.Run(context.Background(), "tcp"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStatus_CollectsRequestedChecks(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/mn/v2/monitor/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/mn/v2/object", objectListHandler(t, ""))
	c, _ := newChecker(t, mux)

	status, err := c.Status(context.Background(), []string{TestPing, TestMN})
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.NodeID != "urn:node:TEST" {
		t.Fatalf("node_id=%q", status.NodeID)
	}
	if len(status.Checks) != 2 {
		t.Fatalf("checks=%v", status.Checks)
	}
	if status.Checks[TestPing].Status != http.StatusOK {
		t.Fatalf("ping=%+v", status.Checks[TestPing])
	}
}

func TestNew_V1Root(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/mn/v1/monitor/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)

	c := New(dataone.NewClient(dataone.Options{}), Options{
		NodeID:  "urn:node:OLD",
		BaseURL: s.URL + "/mn",
		Version: 1,
	})
	res := c.Ping(context.Background())
	if res.Status != http.StatusOK {
		t.Fatalf("status=%d", res.Status)
	}
}
