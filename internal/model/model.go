package model

import "time"

// Node is one entry from the coordinating node's registry.
type Node struct {
	Identifier    string    `json:"identifier" yaml:"identifier"`
	Name          string    `json:"name" yaml:"name"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	BaseURL       string    `json:"baseURL" yaml:"base_url"`
	Type          string    `json:"type" yaml:"type"`   // mn|cn
	State         string    `json:"state" yaml:"state"` // up|down
	LastHarvested time.Time `json:"lastHarvested,omitempty" yaml:"last_harvested,omitempty"`
	Services      []Service `json:"services,omitempty" yaml:"services,omitempty"`
}

// Service describes one API a node advertises (e.g. MNRead v2).
type Service struct {
	Name      string `json:"name" yaml:"name"`
	Version   string `json:"version" yaml:"version"`
	Available bool   `json:"available" yaml:"available"`
}

// ObjectInfo is one record from a listObjects response.
type ObjectInfo struct {
	Identifier        string    `json:"identifier"`
	FormatID          string    `json:"formatId"`
	ChecksumAlgorithm string    `json:"checksum_algorithm"`
	Checksum          string    `json:"checksum"`
	DateModified      time.Time `json:"dateSysMetadataModified"`
	Size              int64     `json:"size"`
}

// CheckResult records the outcome of a single check against a node.
// Status holds the HTTP status code, or a negative sentinel for
// failures that never produced a response.
type CheckResult struct {
	Method           string     `json:"method"`
	URL              string     `json:"url"`
	Status           int        `json:"status"`
	Message          string     `json:"message,omitempty"`
	Timestamp        time.Time  `json:"tstamp"`
	ElapsedSec       float64    `json:"elapsed"`
	Count            *int       `json:"count,omitempty"`
	Earliest         *time.Time `json:"earliest,omitempty"`
	EarliestPID      string     `json:"earliest_pid,omitempty"`
	Latest           *time.Time `json:"latest,omitempty"`
	LatestPID        string     `json:"latest_pid,omitempty"`
	EarliestSID      string     `json:"earliest_sid,omitempty"`
	LatestSID        string     `json:"latest_sid,omitempty"`
	EarliestUploaded *time.Time `json:"earliest_uploaded,omitempty"`
	LatestUploaded   *time.Time `json:"latest_uploaded,omitempty"`
}

// NodeStatus holds the results of all checks run against one node
// during one sweep or node command.
type NodeStatus struct {
	NodeID  string                 `json:"node_id"`
	BaseURL string                 `json:"base_url,omitempty"`
	Checks  map[string]CheckResult `json:"checks"`
}

// Report is the output of a full-network sweep.
type Report struct {
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	CNBaseURL   string       `json:"cn_base_url"`
	Tests       []string     `json:"tests"`
	Nodes       []NodeStatus `json:"nodes"`
}
