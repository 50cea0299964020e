// Package main is the entry point for simreq, a command-line runner
// for HPL requirement trees against a live or recorded simulation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nugget/simreq/internal/bridge"
	"github.com/nugget/simreq/internal/bridge/mqttbridge"
	"github.com/nugget/simreq/internal/bridge/rosbridge"
	"github.com/nugget/simreq/internal/buildinfo"
	"github.com/nugget/simreq/internal/catalog"
	"github.com/nugget/simreq/internal/config"
	"github.com/nugget/simreq/internal/connwatch"
	"github.com/nugget/simreq/internal/hplparse"
	"github.com/nugget/simreq/internal/report"
	"github.com/nugget/simreq/internal/requirements"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() == 0 {
		printUsage()
		return
	}

	switch flag.Arg(0) {
	case "run":
		runRun(logger, *configPath, flag.Args()[1:])
	case "catalog":
		runCatalog(logger, *configPath, flag.Args()[1:])
	case "report":
		runReport(flag.Args()[1:])
	case "version":
		fmt.Println(buildinfo.String())
		for k, v := range buildinfo.BuildInfo() {
			fmt.Printf("  %-12s %s\n", k+":", v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("simreq - HPL requirement tree runner")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       Run one or more requirement files against a live bridge")
	fmt.Println("  catalog   Manage the named requirement catalog")
	fmt.Println("  report    Re-render a report from a saved verdict")
	fmt.Println("  version   Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

// runRun loads each named HPL source (a file path, or catalog:<name>),
// parses it into one or more requirement trees, wires all trees under
// one Manager, connects the configured bridge, and blocks until the
// manager finishes by satisfaction, descendant stop, or max_timeout.
func runRun(logger *slog.Logger, configPath string, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	runName := fs.String("name", "", "name for this run (defaults to the first source file)")
	saveVerdict := fs.String("save", "", "path to write the verdict JSON (for later `simreq report`)")
	fs.Parse(args)

	sources := fs.Args()
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "usage: simreq run [-name=...] [-save=...] <requirement.hpl>...")
		os.Exit(1)
	}

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	var store *catalog.Store
	if hasCatalogSource(sources) {
		store, err = catalog.Open(cfg.Catalog.Path)
		if err != nil {
			logger.Error("failed to open catalog", "error", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	names, trees, err := loadTrees(store, sources)
	if err != nil {
		logger.Error("failed to load requirements", "error", err)
		os.Exit(1)
	}

	mgr := requirements.NewManager(cfg.Timeouts.MaxSeconds, cfg.Timeouts.MinSeconds)
	for _, t := range trees {
		mgr.AddChild(t)
	}

	client, closeClient, err := connectBridge(cfg, logger)
	if err != nil {
		logger.Error("failed to connect bridge", "error", err)
		os.Exit(1)
	}
	defer closeClient()

	name := *runName
	if name == "" {
		name = filepath.Base(sources[0])
	}

	logger.Info("starting run", "name", name, "requirements", len(trees), "bridge", cfg.Bridge.Kind)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	mgr.Connect(client)

	for !mgr.Finished() {
		select {
		case <-ctx.Done():
			logger.Warn("interrupted, stopping run")
			mgr.Disconnect()
			os.Exit(1)
		case <-time.After(50 * time.Millisecond):
		}
	}
	finishedAt := time.Now()

	verdict := buildVerdict(name, startedAt, finishedAt, names, trees)

	md := report.Markdown(verdict)
	fmt.Println(md)

	if *saveVerdict != "" {
		if err := writeVerdict(*saveVerdict, verdict); err != nil {
			logger.Error("failed to save verdict", "error", err)
		}
	}

	if cfg.Report.GitHub.Configured() {
		logger.Info("github status reporting configured but requires a commit sha; use the library directly from a CI step")
	}

	if !verdict.Passed() {
		os.Exit(1)
	}
}

func hasCatalogSource(sources []string) bool {
	for _, s := range sources {
		if strings.HasPrefix(s, "catalog:") {
			return true
		}
	}
	return false
}

// loadTrees resolves each source into HPL text (either a file on disk
// or a catalog-stored definition), parses it, and returns one name and
// one Node per top-level pattern found. A source defining N patterns
// contributes N names, suffixed with an index when N > 1.
func loadTrees(store *catalog.Store, sources []string) ([]string, []requirements.Node, error) {
	var names []string
	var allTrees []requirements.Node

	for _, src := range sources {
		var label string
		var hpl string

		if strings.HasPrefix(src, "catalog:") {
			defName := strings.TrimPrefix(src, "catalog:")
			def, err := store.Get(defName)
			if err != nil {
				return nil, nil, fmt.Errorf("catalog lookup %q: %w", defName, err)
			}
			if def == nil {
				return nil, nil, fmt.Errorf("catalog: no definition named %q", defName)
			}
			label = defName
			hpl = def.Source
		} else {
			data, err := os.ReadFile(src)
			if err != nil {
				return nil, nil, fmt.Errorf("read %q: %w", src, err)
			}
			label = filepath.Base(src)
			hpl = string(data)
		}

		patterns, err := hplparse.Parse(hpl)
		if err != nil {
			return nil, nil, fmt.Errorf("parse %q: %w", label, err)
		}
		trees, err := requirements.ParseRequirements(patterns)
		if err != nil {
			return nil, nil, fmt.Errorf("build requirements from %q: %w", label, err)
		}

		for i, t := range trees {
			name := label
			if len(trees) > 1 {
				name = fmt.Sprintf("%s[%d]", label, i)
			}
			names = append(names, name)
			allTrees = append(allTrees, t)
		}
	}

	return names, allTrees, nil
}

// connectBridge dials the configured transport and returns a bridge.Client
// plus a closer to release its connection. The initial dial is retried
// with backoff through connwatch, since the robot's telemetry bus
// commonly finishes booting after the harness driving the run starts.
func connectBridge(cfg *config.Config, logger *slog.Logger) (bridge.Client, func(), error) {
	ctx := context.Background()

	switch cfg.Bridge.Kind {
	case "mqtt":
		c := mqttbridge.New(mqttbridge.Config{
			Broker:   cfg.Bridge.MQTTBroker,
			Username: cfg.Bridge.MQTTUsername,
			Password: cfg.Bridge.MQTTPassword,
			ClientID: cfg.Bridge.MQTTClientID,
		}, logger)
		if err := dialWithRetry(ctx, "mqtt", c.Connect, logger); err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close(ctx) }, nil

	default: // "rosbridge"
		c := rosbridge.New(cfg.Bridge.RosbridgeURL, logger)
		if err := dialWithRetry(ctx, "rosbridge", c.Connect, logger); err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	}
}

// dialWithRetry drives dial through a connwatch startup backoff schedule,
// returning once the watcher reports ready, ctx is done, or two minutes
// have passed without a successful dial.
func dialWithRetry(ctx context.Context, name string, dial func(context.Context) error, logger *slog.Logger) error {
	mgr := connwatch.NewManager(logger)
	ready := make(chan struct{})
	var once sync.Once

	w := mgr.Watch(ctx, connwatch.WatcherConfig{
		Name:  name,
		Probe: dial,
		OnReady: func() {
			once.Do(func() { close(ready) })
		},
	})

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case <-time.After(2 * time.Minute):
		w.Stop()
		return fmt.Errorf("connect %s: gave up after retries: %w", name, w.LastError())
	}
}

func buildVerdict(name string, startedAt, finishedAt time.Time, names []string, trees []requirements.Node) report.Verdict {
	reqs := make([]report.Requirement, 0, len(trees))
	for i, t := range trees {
		outcome := report.OutcomeTimedOut
		if t.Satisfied() {
			outcome = report.OutcomeSatisfied
		}
		reqs = append(reqs, report.Requirement{Name: names[i], Outcome: outcome})
	}
	return report.Verdict{
		RunName:      name,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		Requirements: reqs,
	}
}

func writeVerdict(path string, v report.Verdict) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func runCatalog(logger *slog.Logger, configPath string, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: simreq catalog list|add|rm ...")
		os.Exit(1)
	}

	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	store, err := catalog.Open(cfg.Catalog.Path)
	if err != nil {
		logger.Error("failed to open catalog", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	switch args[0] {
	case "list":
		defs, err := store.List()
		if err != nil {
			logger.Error("catalog list", "error", err)
			os.Exit(1)
		}
		for _, d := range defs {
			fmt.Printf("%-24s %s\n", d.Name, d.UpdatedAt.Format(time.RFC3339))
		}

	case "add":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: simreq catalog add <name> <file.hpl>")
			os.Exit(1)
		}
		data, err := os.ReadFile(args[2])
		if err != nil {
			logger.Error("catalog add", "error", err)
			os.Exit(1)
		}
		if _, err := hplparse.Parse(string(data)); err != nil {
			logger.Error("catalog add: invalid requirement source", "error", err)
			os.Exit(1)
		}
		if _, err := store.Add(args[1], string(data)); err != nil {
			logger.Error("catalog add", "error", err)
			os.Exit(1)
		}
		fmt.Printf("added %q\n", args[1])

	case "rm":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: simreq catalog rm <name>")
			os.Exit(1)
		}
		if err := store.Remove(args[1]); err != nil {
			logger.Error("catalog rm", "error", err)
			os.Exit(1)
		}
		fmt.Printf("removed %q\n", args[1])

	default:
		fmt.Fprintf(os.Stderr, "unknown catalog subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

// runReport re-renders a Markdown/HTML report from a verdict JSON file
// previously written by `simreq run -save=...`. The core requirements
// engine never persists a verdict itself; this is a CLI-only convenience.
func runReport(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: simreq report <verdict.json>")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}

	var v report.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(report.Markdown(v))

	if report.ShouldDrawQR() {
		report.PrintReportQR(os.Stdout, args[0])
	}
}
