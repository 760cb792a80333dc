// Package sweep fans checks out across many nodes with bounded
// concurrency. The per-kind caps keep the coordinating node from
// being hit by too many cn/index checks at once.
package sweep

import (
	"context"
	"log/slog"
	"sync"

	"mnstat/internal/check"
	"mnstat/internal/model"
)

// Limits bounds the number of checks in flight.
type Limits struct {
	Total int // all checks
	CN    int // checks against the CN object listing
	Index int // checks against the CN search index
}

const (
	DefaultTotal = 12
	DefaultCN    = 3
	DefaultIndex = 5
)

func (l Limits) normalized() Limits {
	if l.Total <= 0 {
		l.Total = DefaultTotal
	}
	if l.CN <= 0 {
		l.CN = DefaultCN
	}
	if l.Index <= 0 {
		l.Index = DefaultIndex
	}
	return l
}

// NodeChecker is the part of check.Checker a sweep needs.
type NodeChecker interface {
	NodeID() string
	BaseURL() string
	Run(ctx context.Context, test string) (model.CheckResult, error)
}

// Run executes every (node, test) pair and returns one NodeStatus per
// checker, in input order. Failed checks are recorded in the results
// with their sentinel status; a cancelled context stops scheduling and
// returns whatever completed.
func Run(ctx context.Context, checkers []NodeChecker, tests []string, limits Limits) []model.NodeStatus {
	limits = limits.normalized()

	global := make(chan struct{}, limits.Total)
	kind := map[string]chan struct{}{
		check.TestCN:    make(chan struct{}, limits.CN),
		check.TestIndex: make(chan struct{}, limits.Index),
	}

	statuses := make([]model.NodeStatus, len(checkers))
	for i, c := range checkers {
		statuses[i] = model.NodeStatus{
			NodeID:  c.NodeID(),
			BaseURL: c.BaseURL(),
			Checks:  make(map[string]model.CheckResult, len(tests)),
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	total := len(checkers) * len(tests)
	slog.Info("sweep start", "nodes", len(checkers), "tests", tests, "checks", total)

	for i, c := range checkers {
		for _, test := range tests {
			wg.Add(1)
			go func(idx int, c NodeChecker, test string) {
				defer wg.Done()

				select {
				case global <- struct{}{}:
				case <-ctx.Done():
					return
				}
				defer func() { <-global }()

				if sem, ok := kind[test]; ok {
					select {
					case sem <- struct{}{}:
					case <-ctx.Done():
						return
					}
					defer func() { <-sem }()
				}

				slog.Info("check start", "test", test, "node", c.NodeID())
				res, err := c.Run(ctx, test)
				if err != nil {
					slog.Error("check failed", "test", test, "node", c.NodeID(), "err", err)
					return
				}
				slog.Info("check complete", "test", test, "node", c.NodeID(), "status", res.Status)

				mu.Lock()
				statuses[idx].Checks[test] = res
				mu.Unlock()
			}(i, c, test)
		}
	}

	wg.Wait()
	return statuses
}
