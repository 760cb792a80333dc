// Package check runs the per-node status checks: ping liveness and
// object count / modified-date range as seen by the member node, the
// coordinating node, and the coordinating node's search index.
package check

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"mnstat/internal/dataone"
	"mnstat/internal/model"
	"mnstat/internal/registry"
)

// Check names accepted by Run.
const (
	TestPing  = "ping"
	TestMN    = "mn"
	TestCN    = "cn"
	TestIndex = "index"
)

const DefaultPingTimeout = 5 * time.Second

// Checker runs checks against one member node.
type Checker struct {
	nodeID      string
	baseURL     string // member node base, trailing slash
	cnBaseURL   string // coordinating node base, trailing slash
	solrURL     string
	apiRoot     string // v1/ or v2/
	pingTimeout time.Duration
	client      *dataone.Client
}

// Options configures a Checker.
type Options struct {
	NodeID      string
	BaseURL     string
	CNBaseURL   string
	SolrPath    string // relative to the CN v2 root, or an absolute URL
	Version     int    // MNRead version; 1 selects the v1 root, 0 and 2+ select v2
	PingTimeout time.Duration
}

// New creates a Checker for one node.
func New(client *dataone.Client, opts Options) *Checker {
	base := registry.EnsureTrailingSlash(opts.BaseURL)
	cnBase := registry.EnsureTrailingSlash(opts.CNBaseURL)

	solrURL := opts.SolrPath
	if solrURL == "" {
		solrURL = "query/solr/"
	}
	if !strings.HasPrefix(solrURL, "http") {
		solrURL = cnBase + "v2/" + solrURL
	}

	apiRoot := "v2/"
	if opts.Version != 0 && opts.Version < 2 {
		apiRoot = "v1/"
	}

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}

	return &Checker{
		nodeID:      opts.NodeID,
		baseURL:     base,
		cnBaseURL:   cnBase,
		solrURL:     solrURL,
		apiRoot:     apiRoot,
		pingTimeout: pingTimeout,
		client:      client,
	}
}

// NodeID returns the identifier of the node under check.
func (c *Checker) NodeID() string {
	return c.nodeID
}

// BaseURL returns the member node base URL.
func (c *Checker) BaseURL() string {
	return c.baseURL
}

// Run executes one named check.
func (c *Checker) Run(ctx context.Context, test string) (model.CheckResult, error) {
	switch test {
	case TestPing:
		return c.Ping(ctx), nil
	case TestMN:
		return c.MNObjectInfo(ctx), nil
	case TestCN:
		return c.CNObjectInfo(ctx), nil
	case TestIndex:
		return c.IndexObjectInfo(ctx), nil
	default:
		return model.CheckResult{}, fmt.Errorf("unknown test %q", test)
	}
}

// Ping checks liveness of the node's monitor/ping endpoint.
func (c *Checker) Ping(ctx context.Context) model.CheckResult {
	pingURL := c.baseURL + c.apiRoot + "monitor/ping"
	res := c.client.GetTimeout(ctx, pingURL, nil, c.pingTimeout)
	return model.CheckResult{
		Method:     "ping",
		URL:        pingURL,
		Status:     res.Status,
		Message:    res.Message,
		Timestamp:  res.Started,
		ElapsedSec: res.Elapsed.Seconds(),
	}
}

// MNObjectInfo reads the object count and modified-date range from
// the member node's own listObjects endpoint.
func (c *Checker) MNObjectInfo(ctx context.Context) model.CheckResult {
	listURL := c.baseURL + c.apiRoot + "object"
	return c.objectInfo(ctx, "mn.listObjects", listURL, nil, TestMN)
}

// CNObjectInfo reads the same information as the coordinating node
// sees it, scoped to this node via the nodeId parameter.
func (c *Checker) CNObjectInfo(ctx context.Context) model.CheckResult {
	listURL := c.cnBaseURL + "v2/object"
	extra := url.Values{"nodeId": []string{c.nodeID}}
	return c.objectInfo(ctx, "cn.listObjects", listURL, extra, TestCN)
}

func (c *Checker) objectInfo(ctx context.Context, method, listURL string, extra url.Values, task string) model.CheckResult {
	start := time.Now()
	result := model.CheckResult{
		Method:    method,
		URL:       listURL,
		Timestamp: time.Now().UTC(),
	}

	params := url.Values{"start": []string{"0"}, "count": []string{"2"}}
	for k, vs := range extra {
		params[k] = vs
	}

	res := c.client.Get(ctx, listURL, params)
	result.Status = res.Status
	result.Message = res.Message
	result.Timestamp = res.Started
	if !res.OK() {
		result.ElapsedSec = time.Since(start).Seconds()
		return result
	}

	list, err := dataone.ParseObjectList(res.Body)
	if err != nil {
		result.Status = dataone.StatusDecodeError
		result.Message = err.Error()
		result.ElapsedSec = time.Since(start).Seconds()
		return result
	}
	total := list.Total
	result.Count = &total

	dr := c.dateRange(ctx, listURL, extra, task)
	result.Earliest = dr.earliest
	result.EarliestPID = dr.earliestPID
	result.Latest = dr.latest
	result.LatestPID = dr.latestPID
	result.ElapsedSec = time.Since(start).Seconds()
	return result
}

// IndexObjectInfo reads the object count and modified-date range from
// the coordinating node's Solr index.
func (c *Checker) IndexObjectInfo(ctx context.Context) model.CheckResult {
	start := time.Now()
	result := model.CheckResult{
		Method:    "cn.index",
		URL:       c.solrURL,
		Timestamp: time.Now().UTC(),
	}

	params := url.Values{
		"wt":    []string{"json"},
		"start": []string{"0"},
		"rows":  []string{"5"},
		"fl":    []string{"id,seriesId,formatId,dateModified,dateUploaded"},
		"q":     []string{"datasource:" + dataone.EscapeSolrTerm(c.nodeID)},
		"sort":  []string{"dateModified asc"},
	}

	res := c.client.Get(ctx, c.solrURL, params)
	result.Timestamp = res.Started
	result.Status = res.Status
	result.Message = res.Message
	if !res.OK() {
		result.ElapsedSec = time.Since(start).Seconds()
		return result
	}

	asc, err := dataone.ParseSolrResult(res.Body)
	if err != nil {
		result.Status = dataone.StatusDecodeError
		result.Message = err.Error()
		result.ElapsedSec = time.Since(start).Seconds()
		return result
	}
	count := asc.NumFound
	result.Count = &count
	if count > 0 && len(asc.Docs) > 0 {
		doc := asc.Docs[0]
		result.EarliestPID = doc.ID
		result.EarliestSID = doc.SeriesID
		if ts, err := dataone.ParseTime(doc.DateModified); err == nil {
			result.Earliest = &ts
		}
		if ts, err := dataone.ParseTime(doc.DateUploaded); err == nil {
			result.EarliestUploaded = &ts
		}
	}

	params.Set("sort", "dateModified desc")
	res = c.client.Get(ctx, c.solrURL, params)
	result.Status = res.Status
	result.Message = res.Message
	if !res.OK() {
		result.ElapsedSec = time.Since(start).Seconds()
		return result
	}

	desc, err := dataone.ParseSolrResult(res.Body)
	if err != nil {
		result.Status = dataone.StatusDecodeError
		result.Message = err.Error()
		result.ElapsedSec = time.Since(start).Seconds()
		return result
	}
	if count > 0 && len(desc.Docs) > 0 {
		doc := desc.Docs[0]
		result.LatestPID = doc.ID
		result.LatestSID = doc.SeriesID
		if ts, err := dataone.ParseTime(doc.DateModified); err == nil {
			result.Latest = &ts
		}
		if ts, err := dataone.ParseTime(doc.DateUploaded); err == nil {
			result.LatestUploaded = &ts
		}
	}
	result.ElapsedSec = time.Since(start).Seconds()
	return result
}

// Status collects the requested checks for this node. Check failures
// are recorded in the results, never returned as errors.
func (c *Checker) Status(ctx context.Context, tests []string) (model.NodeStatus, error) {
	status := model.NodeStatus{
		NodeID:  c.nodeID,
		BaseURL: c.baseURL,
		Checks:  make(map[string]model.CheckResult, len(tests)),
	}
	for _, test := range tests {
		res, err := c.Run(ctx, test)
		if err != nil {
			return status, err
		}
		status.Checks[test] = res
		if ctx.Err() != nil {
			return status, ctx.Err()
		}
	}
	return status, nil
}
