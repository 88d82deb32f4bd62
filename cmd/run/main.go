package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/runtime"
)

type options struct {
	backend     string
	configFile  string
	call        string
	args        string
	list        bool
	trace       bool
	metrics     bool
	verbose     bool
	interactive bool
}

func main() {
	var opts options
	flag.StringVar(&opts.backend, "backend", "", "Backend: "+kindNames())
	flag.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	flag.StringVar(&opts.call, "call", "", "Function or global to call")
	flag.StringVar(&opts.args, "args", "", "Comma-separated arguments")
	flag.BoolVar(&opts.list, "list", false, "List functions and globals and exit")
	flag.BoolVar(&opts.trace, "trace", false, "Print call spans to stderr")
	flag.BoolVar(&opts.metrics, "metrics", false, "Print call metrics on exit")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.BoolVar(&opts.interactive, "i", false, "Interactive mode with TUI")
	flag.Parse()

	if !opts.list && opts.call == "" && !opts.interactive {
		fmt.Fprintln(os.Stderr, "Usage: run [-backend kind] [-config file.yaml] -list")
		fmt.Fprintln(os.Stderr, "       run [-backend kind] -call name [-args a,b]")
		fmt.Fprintln(os.Stderr, "       run [-backend kind] -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(context.Background(), opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return err
	}
	if opts.backend != "" {
		if cfg.Backend, err = engine.ParseKind(opts.backend); err != nil {
			return err
		}
	}

	logger := zap.NewNop()
	if opts.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
	}
	engine.SetLogger(logger)
	cfg.Logger = logger

	if opts.trace {
		tp, shutdown, err := setupTracing(stderr)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(ctx) }()
		cfg.TracerProvider = tp
	}

	reg := prometheus.NewRegistry()
	if opts.metrics {
		cfg.Registerer = reg
	}

	sess, err := newSession(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() { _ = sess.Close(ctx) }()

	if opts.metrics {
		defer func() { _ = writeMetrics(stderr, reg) }()
	}

	switch {
	case opts.interactive:
		if f, ok := stdout.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		return runInteractive(sess)

	case opts.list:
		fmt.Fprintf(stdout, "Backend: %s\n\n", sess.engine.Kind())
		for _, e := range sess.list() {
			fmt.Fprintf(stdout, "  %-8s %s\n", e.name, e.signature())
		}
		return nil
	}

	results, err := sess.call(ctx, opts.call, splitArgs(opts.args))
	if err != nil {
		return fmt.Errorf("call %s: %w", opts.call, err)
	}
	fmt.Fprintf(stdout, "Result: %s\n", formatValues(results))
	return nil
}

// loadConfig reads a YAML config over the defaults. An empty path keeps
// the defaults.
func loadConfig(path string) (*runtime.Config, error) {
	cfg := runtime.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func kindNames() string {
	names := make([]string, 0, len(engine.Kinds()))
	for _, k := range engine.Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}
