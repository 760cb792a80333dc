// Package registry loads and queries the DataONE node registry
// published by a coordinating node at {cn}/v2/node.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mnstat/internal/dataone"
	"mnstat/internal/model"
)

// NodeList is a snapshot of the coordinating node's registry.
type NodeList struct {
	BaseURL string
	Nodes   []model.Node
}

// Fetch downloads and parses the registry from the CN base URL.
func Fetch(ctx context.Context, client *dataone.Client, cnBaseURL string) (*NodeList, error) {
	base := EnsureTrailingSlash(cnBaseURL)
	url := base + "v2/node"

	slog.Info("loading node list", "url", url)
	res := client.Get(ctx, url, nil)
	if !res.OK() {
		return nil, fmt.Errorf("fetch node list %s: status %d %s", url, res.Status, res.Message)
	}

	nodes, err := dataone.ParseNodeList(res.Body)
	if err != nil {
		return nil, err
	}
	return &NodeList{BaseURL: base, Nodes: nodes}, nil
}

// Node returns the node with the given identifier, or nil.
func (nl *NodeList) Node(nodeID string) *model.Node {
	for i := range nl.Nodes {
		if nl.Nodes[i].Identifier == nodeID {
			return &nl.Nodes[i]
		}
	}
	return nil
}

// NodeByBaseURL returns the node with the given base URL, or nil.
func (nl *NodeList) NodeByBaseURL(baseURL string) *model.Node {
	trimmed := strings.TrimRight(baseURL, "/")
	for i := range nl.Nodes {
		if strings.TrimRight(nl.Nodes[i].BaseURL, "/") == trimmed {
			return &nl.Nodes[i]
		}
	}
	return nil
}

// IDs returns all node identifiers, in registry order.
func (nl *NodeList) IDs() []string {
	ids := make([]string, 0, len(nl.Nodes))
	for _, n := range nl.Nodes {
		ids = append(ids, n.Identifier)
	}
	return ids
}

// FilterType drops nodes whose type does not match (mn or cn).
// An empty type keeps everything.
func (nl *NodeList) FilterType(nodeType string) {
	if nodeType == "" {
		return
	}
	nodeType = strings.ToLower(nodeType)
	kept := nl.Nodes[:0]
	for _, n := range nl.Nodes {
		if n.Type == nodeType {
			kept = append(kept, n)
		}
	}
	nl.Nodes = kept
}

// FilterState drops nodes whose state does not match (up or down).
// An empty state keeps everything.
func (nl *NodeList) FilterState(state string) {
	if state == "" {
		return
	}
	state = strings.ToLower(state)
	kept := nl.Nodes[:0]
	for _, n := range nl.Nodes {
		if n.State == state {
			kept = append(kept, n)
		}
	}
	nl.Nodes = kept
}

// ServiceVersion returns the highest version (1 or 2) the node
// advertises for the named service, or 0 when absent.
func (nl *NodeList) ServiceVersion(nodeID, service string) int {
	node := nl.Node(nodeID)
	if node == nil {
		return 0
	}
	version := 0
	for _, svc := range node.Services {
		if svc.Name != service {
			continue
		}
		switch strings.ToLower(svc.Version) {
		case "v1":
			if version < 1 {
				version = 1
			}
		case "v2":
			if version < 2 {
				version = 2
			}
		}
	}
	return version
}

// EnsureTrailingSlash appends a trailing slash when missing, so URL
// paths can be joined by concatenation.
func EnsureTrailingSlash(url string) string {
	if url == "" || strings.HasSuffix(url, "/") {
		return url
	}
	return url + "/"
}
