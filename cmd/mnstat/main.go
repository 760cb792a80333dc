package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mnstat/internal/check"
	"mnstat/internal/config"
	"mnstat/internal/dataone"
	"mnstat/internal/model"
	"mnstat/internal/registry"
	"mnstat/internal/report"
	"mnstat/internal/store"
	"mnstat/internal/sweep"
)

const usage = `mnstat - DataONE node status checks

Usage:
  mnstat nids   [--config <path>] [--type mn|cn] [--state up|down] [--full] [--json] [--cached] [base_url]
  mnstat node   [--config <path>] --id <node_id> | --base-url <url> [--tests ping,mn,cn,index] [--timeout <dur>]
  mnstat sweep  [--config <path>] [--tests ping,mn,cn,index] [--nodes id1,id2] [--type mn|cn] [--state up|down] [--out <file-or-dir>]
  mnstat export csv --in <report.json> [--out <file>]
  mnstat init   --config <path>

Each command accepts --verbosity debug|info|warn|error (default info).
Results go to stdout, logs to stderr.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "-h", "--help", "help":
		fmt.Print(usage)
	case "nids":
		handleNids(os.Args[2:])
	case "node":
		handleNode(os.Args[2:])
	case "sweep":
		handleSweep(os.Args[2:])
	case "export":
		handleExport(os.Args[2:])
	case "init":
		handleInit(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func handleNids(args []string) {
	fs := flag.NewFlagSet("nids", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	nodeType := fs.String("type", "", "node type filter: mn or cn")
	state := fs.String("state", "", "node state filter: up or down")
	full := fs.Bool("full", false, "show full node records (with --json)")
	jsonOut := fs.Bool("json", false, "output in JSON")
	cached := fs.Bool("cached", false, "read the on-disk registry snapshot instead of the network")
	verbosity := fs.String("verbosity", "info", "log level")
	_ = fs.Parse(args)

	setupLogging(*verbosity)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if fs.NArg() > 0 {
		cfg.CNBaseURL = fs.Arg(0)
	}

	if err := validateFilters(*nodeType, *state); err != nil {
		fatal(err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var nl *registry.NodeList
	if *cached {
		if cfg.CachePath == "" {
			fatal(errors.New("cache_path is not configured"))
		}
		snap, err := store.LoadSnapshot(cfg.CachePath)
		if err != nil {
			fatal(err)
		}
		if len(snap.Nodes) == 0 {
			fatal(fmt.Errorf("registry snapshot %s is empty; run a sweep or nids without --cached first", cfg.CachePath))
		}
		nl = &registry.NodeList{BaseURL: snap.CNBaseURL, Nodes: snap.Nodes}
	} else {
		client := newHTTPClient(cfg)
		nl, err = registry.Fetch(ctx, client, cfg.CNBaseURL)
		if err != nil {
			fatal(err)
		}
		saveSnapshot(cfg, nl)
	}

	nl.FilterState(*state)
	nl.FilterType(*nodeType)

	if *jsonOut {
		if err := printNodesJSON(nl.Nodes, *full); err != nil {
			fatal(err)
		}
		return
	}

	for _, n := range nl.Nodes {
		lastHarvested := ""
		if !n.LastHarvested.IsZero() {
			lastHarvested = dataone.FormatTime(n.LastHarvested)
		}
		fmt.Fprintf(os.Stdout, "%-25s %s %d %-20s %s\n",
			n.Identifier, n.Type, stateInt(n.State), lastHarvested, n.BaseURL)
	}
}

func handleNode(args []string) {
	fs := flag.NewFlagSet("node", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	nodeID := fs.String("id", "", "node identifier, e.g. urn:node:KNB")
	baseURL := fs.String("base-url", "", "node base URL (skips registry lookup)")
	tests := fs.String("tests", "", "comma-separated tests to run")
	timeout := fs.Duration("timeout", 0, "per-request timeout, e.g. 30s (overrides the config)")
	verbosity := fs.String("verbosity", "info", "log level")
	_ = fs.Parse(args)

	setupLogging(*verbosity)

	if *nodeID == "" && *baseURL == "" {
		fatal(errors.New("--id or --base-url is required"))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	applyTimeoutOverride(&cfg, *timeout)

	requested := cfg.Tests
	if *tests != "" {
		requested = splitList(*tests)
	}
	if err := validateTests(requested); err != nil {
		fatal(err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	client := newHTTPClient(cfg)

	var checker *check.Checker
	switch {
	case *nodeID != "":
		nl, err := registry.Fetch(ctx, client, cfg.CNBaseURL)
		if err != nil {
			fatal(err)
		}
		node := nl.Node(*nodeID)
		if node == nil {
			fatal(fmt.Errorf("node %q not found in registry %s", *nodeID, cfg.CNBaseURL))
		}
		checker = newChecker(client, cfg, nl, *node)
	default:
		// Without a registry identity the CN-side checks cannot be scoped
		// to this node.
		kept := requested[:0]
		for _, t := range requested {
			if t == check.TestCN || t == check.TestIndex {
				slog.Warn("skipping test that needs a node identifier", "test", t)
				continue
			}
			kept = append(kept, t)
		}
		requested = kept
		checker = check.New(client, check.Options{
			BaseURL:     *baseURL,
			CNBaseURL:   cfg.CNBaseURL,
			SolrPath:    cfg.SolrPath,
			PingTimeout: cfg.PingTimeout(),
		})
	}

	status, err := checker.Status(ctx, requested)
	if err != nil {
		fatal(err)
	}

	enc := jsonEncoder(os.Stdout)
	if err := enc.Encode(status); err != nil {
		fatal(err)
	}
}

func handleSweep(args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	tests := fs.String("tests", "", "comma-separated tests to run")
	nodes := fs.String("nodes", "", "comma-separated node identifiers (default: all)")
	nodeType := fs.String("type", "", "node type filter: mn or cn")
	state := fs.String("state", "", "node state filter: up or down")
	out := fs.String("out", "", "output file, or directory for a dated snapshot")
	verbosity := fs.String("verbosity", "info", "log level")
	_ = fs.Parse(args)

	setupLogging(*verbosity)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if err := validateFilters(*nodeType, *state); err != nil {
		fatal(err)
	}

	requested := cfg.Tests
	if *tests != "" {
		requested = splitList(*tests)
	}
	if err := validateTests(requested); err != nil {
		fatal(err)
	}

	ctx, cancel := signalContext()
	defer cancel()
	client := newHTTPClient(cfg)

	nl, err := registry.Fetch(ctx, client, cfg.CNBaseURL)
	if err != nil {
		fatal(err)
	}
	saveSnapshot(cfg, nl)

	nl.FilterState(*state)
	nl.FilterType(*nodeType)

	targets := nl.Nodes
	if *nodes != "" {
		targets = nil
		for _, id := range splitList(*nodes) {
			node := nl.Node(id)
			if node == nil {
				fatal(fmt.Errorf("node %q not found in registry %s", id, cfg.CNBaseURL))
			}
			targets = append(targets, *node)
		}
	}
	if len(targets) == 0 {
		fatal(errors.New("no nodes matched"))
	}

	checkers := make([]sweep.NodeChecker, 0, len(targets))
	for _, node := range targets {
		checkers = append(checkers, newChecker(client, cfg, nl, node))
	}

	limits := sweep.Limits{
		Total: cfg.Concurrency.Total,
		CN:    cfg.Concurrency.CN,
		Index: cfg.Concurrency.Index,
	}
	statuses := sweep.Run(ctx, checkers, requested, limits)
	rep := report.New(cfg.CNBaseURL, requested, statuses)

	if *out != "" {
		path, err := report.WriteFile(*out, rep)
		if err != nil {
			fatal(err)
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", path)
		return
	}
	if err := report.WriteJSON(os.Stdout, rep); err != nil {
		fatal(err)
	}
}

func handleExport(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "export subcommand required\n")
		os.Exit(2)
	}
	if args[0] != "csv" {
		fmt.Fprintf(os.Stderr, "unknown export format %q\n", args[0])
		os.Exit(2)
	}

	fs := flag.NewFlagSet("export csv", flag.ExitOnError)
	in := fs.String("in", "", "sweep report JSON file")
	out := fs.String("out", "", "output file (default stdout)")
	verbosity := fs.String("verbosity", "info", "log level")
	_ = fs.Parse(args[1:])

	setupLogging(*verbosity)

	if *in == "" {
		fatal(errors.New("--in is required"))
	}

	rep, err := report.ReadFile(*in)
	if err != nil {
		fatal(err)
	}

	if *out == "" {
		fatal(report.WriteCSV(os.Stdout, rep))
		return
	}

	f, err := os.Create(*out)
	if err != nil {
		fatal(err)
	}
	defer f.Close()

	if err := report.WriteCSV(f, rep); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "exported %s\n", *out)
}

func handleInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "path to write the YAML config")
	verbosity := fs.String("verbosity", "info", "log level")
	_ = fs.Parse(args)

	setupLogging(*verbosity)

	if *configPath == "" {
		fatal(errors.New("--config is required"))
	}

	var cfg config.Config
	config.ApplyDefaults(&cfg)
	if err := config.Save(*configPath, cfg); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "wrote %s\n", *configPath)
}

func loadConfig(path string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	config.ApplyDefaults(&cfg)
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newHTTPClient(cfg config.Config) *dataone.Client {
	return dataone.NewClient(dataone.Options{
		Timeout:          cfg.Timeout(),
		InsecureFallback: cfg.Insecure(),
		MaxRetries:       2,
	})
}

// applyTimeoutOverride replaces the configured per-request timeout
// with a flag-supplied duration, rounded up to a whole second.
func applyTimeoutOverride(cfg *config.Config, d time.Duration) {
	if d <= 0 {
		return
	}
	cfg.TimeoutSec = int((d + time.Second - 1) / time.Second)
}

// mnReadVersion resolves the MNRead tier a registry node advertises.
// Nodes with no MNRead service entry are probed over the v1 root.
func mnReadVersion(nl *registry.NodeList, node model.Node) int {
	if v := nl.ServiceVersion(node.Identifier, "MNRead"); v != 0 {
		return v
	}
	return 1
}

func newChecker(client *dataone.Client, cfg config.Config, nl *registry.NodeList, node model.Node) *check.Checker {
	version := mnReadVersion(nl, node)
	return check.New(client, check.Options{
		NodeID:      node.Identifier,
		BaseURL:     node.BaseURL,
		CNBaseURL:   cfg.CNBaseURL,
		SolrPath:    cfg.SolrPath,
		Version:     version,
		PingTimeout: cfg.PingTimeout(),
	})
}

func saveSnapshot(cfg config.Config, nl *registry.NodeList) {
	if cfg.CachePath == "" {
		return
	}
	snap := &store.Snapshot{CNBaseURL: nl.BaseURL, Nodes: nl.Nodes}
	if err := store.SaveSnapshot(cfg.CachePath, snap); err != nil {
		slog.Warn("failed to save registry snapshot", "path", cfg.CachePath, "err", err)
	}
}

// trimmedNode is the short record nids --json emits without --full.
type trimmedNode struct {
	Identifier    string `json:"identifier"`
	BaseURL       string `json:"baseURL"`
	Name          string `json:"name"`
	State         string `json:"state"`
	Type          string `json:"type"`
	LastHarvested string `json:"lastHarvested"`
}

func printNodesJSON(nodes []model.Node, full bool) error {
	enc := jsonEncoder(os.Stdout)
	if full {
		return enc.Encode(nodes)
	}

	trimmed := make([]trimmedNode, 0, len(nodes))
	for _, n := range nodes {
		rec := trimmedNode{
			Identifier: n.Identifier,
			BaseURL:    n.BaseURL,
			Name:       n.Name,
			State:      n.State,
			Type:       n.Type,
		}
		if !n.LastHarvested.IsZero() {
			rec.LastHarvested = dataone.FormatTime(n.LastHarvested)
		}
		trimmed = append(trimmed, rec)
	}
	return enc.Encode(trimmed)
}

func validateFilters(nodeType, state string) error {
	switch strings.ToLower(nodeType) {
	case "", "mn", "cn":
	default:
		return fmt.Errorf("expecting 'mn' or 'cn' for the node type, got %q", nodeType)
	}
	switch strings.ToLower(state) {
	case "", "up", "down":
	default:
		return fmt.Errorf("expecting node state to be 'up' or 'down', got %q", state)
	}
	return nil
}

func validateTests(tests []string) error {
	if len(tests) == 0 {
		return errors.New("no tests requested")
	}
	for _, t := range tests {
		switch t {
		case check.TestPing, check.TestMN, check.TestCN, check.TestIndex:
		default:
			return fmt.Errorf("unknown test %q", t)
		}
	}
	return nil
}

func jsonEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}

func stateInt(state string) int {
	if strings.EqualFold(state, "up") {
		return 1
	}
	return 0
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func setupLogging(verbosity string) {
	var level slog.Level
	switch strings.ToLower(verbosity) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error", "fatal", "critical":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()
	return ctx, cancel
}

func fatal(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
