// Package main is the entry point for storectl, a command line host for
// the reactive store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/proxystore/internal/app"
	"github.com/dshills/proxystore/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli, fs, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if cli.showVersion {
		fmt.Printf("storectl %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		return 0
	}

	cfg, err := resolveConfig(cli, fs, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cli.printConfig {
		fmt.Print(cfg.String())
		return 0
	}

	opts := cli.app
	opts.Config = cfg

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Ensure cleanup on all exit paths
	defer application.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	code := 0
	if err := printResults(application, cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = 1
	}
	if cli.stats {
		application.LogStats()
	}
	return code
}

// printResults writes -get and -query results, or the whole tree when
// neither was given.
func printResults(application *app.Application, cli cliOptions) error {
	if len(cli.gets) == 0 && len(cli.queries) == 0 {
		if cli.quiet {
			return nil
		}
		return application.PrintSnapshot()
	}

	var errs []error
	for _, path := range cli.gets {
		errs = append(errs, application.PrintPath(path))
	}
	for _, q := range cli.queries {
		errs = append(errs, application.PrintQuery(q))
	}
	return errors.Join(errs...)
}

// cliOptions holds parsed command line flags.
type cliOptions struct {
	app app.Options

	configPath  string
	gets        stringList
	queries     stringList
	quiet       bool
	stats       bool
	printConfig bool
	showVersion bool

	// Overrides applied over the config file when given.
	format     string
	color      string
	logLevel   string
	maxCascade int
	debounce   time.Duration
	timeout    time.Duration
	async      bool
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func parseFlags(args []string, stderr io.Writer) (cliOptions, *flag.FlagSet, error) {
	var cli cliOptions
	var files, defaults, sets, events, exclude stringList

	fs := flag.NewFlagSet("storectl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cli.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&cli.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.Var(&files, "file", "Document to load (json, toml, yaml); repeatable, merged in order")
	fs.Var(&files, "f", "Document to load (shorthand)")
	fs.StringVar(&cli.app.Defaults, "defaults", "", "Document applied as defaults")
	fs.Var(&defaults, "D", "Default assignment path=value; repeatable")
	fs.Var(&sets, "set", "Assignment path=value; repeatable")
	fs.Var(&cli.gets, "get", "Print the value at a dotted path; repeatable")
	fs.Var(&cli.queries, "query", "Print a gjson query result; repeatable")
	fs.StringVar(&cli.app.Script, "script", "", "Lua script to run")
	fs.Var(&events, "events", "Print notifications matching a label pattern; repeatable")
	fs.Var(&events, "e", "Print notifications matching a label pattern (shorthand)")
	fs.Var(&exclude, "exclude", "Skip notifications matching a label pattern; repeatable")
	fs.Var(&exclude, "x", "Skip notifications matching a label pattern (shorthand)")
	fs.BoolVar(&cli.app.Watch, "watch", false, "Reload documents when they change until interrupted")
	fs.BoolVar(&cli.app.Watch, "w", false, "Reload documents when they change (shorthand)")
	fs.BoolVar(&cli.quiet, "quiet", false, "Do not print the final tree")
	fs.BoolVar(&cli.quiet, "q", false, "Do not print the final tree (shorthand)")
	fs.BoolVar(&cli.stats, "stats", false, "Log activity counters on exit")
	fs.BoolVar(&cli.printConfig, "print-config", false, "Print the resolved configuration and exit")
	fs.StringVar(&cli.format, "format", "", "Output format (json, pretty, msgpack)")
	fs.StringVar(&cli.color, "color", "", "Colored output (auto, always, never)")
	fs.StringVar(&cli.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.IntVar(&cli.maxCascade, "max-cascade", 0, "Maximum notifications per write cycle (0 is unbounded)")
	fs.DurationVar(&cli.debounce, "debounce", 0, "Delay coalescing file change bursts")
	fs.DurationVar(&cli.timeout, "timeout", 0, "Script timeout")
	fs.BoolVar(&cli.async, "async-events", false, "Print notifications from the bus worker pool")
	fs.BoolVar(&cli.showVersion, "version", false, "Show version information")
	fs.BoolVar(&cli.showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "storectl - reactive nested data store\n\n")
		fmt.Fprintf(stderr, "Usage: storectl [options] [files...]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		for _, name := range config.EnvVars() {
			fmt.Fprintf(stderr, "  %s\n", name)
		}
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  storectl app.yaml                         Print a document as a tree\n")
		fmt.Fprintf(stderr, "  storectl -D login.name=guest -get login   Read with a default\n")
		fmt.Fprintf(stderr, "  storectl -query 'names.#.name' data.json  Run a gjson query\n")
		fmt.Fprintf(stderr, "  storectl -w -e 'store.**' app.toml        Print changes as the file is edited\n")
	}

	if err := fs.Parse(args); err != nil {
		return cli, fs, err
	}

	// Remaining arguments are documents to load
	files = append(files, fs.Args()...)

	cli.app.Files = files
	cli.app.DefaultAssignments = defaults
	cli.app.Assignments = sets
	cli.app.Events = events
	cli.app.Exclude = exclude
	return cli, fs, nil
}

// resolveConfig layers the config file, the environment and explicitly
// given flags over the defaults, then validates the result.
func resolveConfig(cli cliOptions, fs *flag.FlagSet, lookup func(string) (string, bool)) (config.Config, error) {
	cfg := config.Default()
	if cli.configPath != "" {
		loaded, err := config.Load(cli.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnvFunc(lookup); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "format":
			cfg.Output.Format = cli.format
		case "color":
			cfg.Output.Color = cli.color
		case "log-level":
			cfg.Log.Level = cli.logLevel
		case "max-cascade":
			cfg.Store.MaxCascade = cli.maxCascade
		case "debounce":
			cfg.Watch.Debounce = config.Duration{Duration: cli.debounce}
		case "timeout":
			cfg.Script.Timeout = config.Duration{Duration: cli.timeout}
		case "async-events":
			cfg.Bus.AsyncEvents = cli.async
		}
	})

	return cfg, cfg.Validate()
}
