// Package main is a development host for setonix plugins.
//
// It loads one plugin script, runs it, then replays events read from stdin,
// one JSON object per line:
//
//	{"type":"join","args":["alice"]}
//	{"type":"chat","name":"message","payload":{"text":"hi"},"target":3}
//
// Lines with a payload go through RunEvent; the others through
// DispatchNamed. Plugin output and dispatch results are written to stdout
// as JSON lines.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dshills/setonix/internal/config"
	"github.com/dshills/setonix/internal/plugin"
	"github.com/dshills/setonix/internal/plugin/api"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	configPath string
	logLevel   string
	name       string
	script     string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger := cfg.NewLogger(os.Stderr)

	source, err := os.ReadFile(opts.script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading plugin: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := newEmitter(os.Stdout)
	callbacks := api.NewCallbacks(func(_ context.Context, line string) <-chan error {
		return api.Completed(out.emit(map[string]any{"output": line}))
	})

	p, err := plugin.New(string(source), callbacks,
		plugin.WithName(opts.name),
		plugin.WithConfig(cfg),
		plugin.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer p.Close()

	if err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := replay(ctx, p, os.Stdin, out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file (.toml, .yaml)")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.name, "name", "", "Plugin name used in logs")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "setonix - plugin development host\n\n")
		fmt.Fprintf(os.Stderr, "Usage: setonix [options] plugin.lua < events.jsonl\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("setonix %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.script = flag.Arg(0)
	return opts
}

// loadConfig resolves defaults, the config file, the environment and
// finally command-line flags.
func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}

	if err := cfg.ApplyEnv(config.DefaultEnvPrefix); err != nil {
		return config.Config{}, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// replay dispatches every event line from r until EOF or ctx is done.
// Dispatch failures are reported as output and do not stop the replay.
func replay(ctx context.Context, p plugin.Plugin, r io.Reader, out *emitter) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		if ctx.Err() != nil {
			return nil
		}

		req, err := parseRequest(scanner.Text())
		if err != nil {
			if err == errBlankLine {
				continue
			}
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		if err := out.emit(handle(p, req)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func handle(p plugin.Plugin, req request) map[string]any {
	if req.structured {
		res, err := p.RunEvent(req.eventType, req.name, req.payload, req.target)
		if err != nil {
			return map[string]any{"type": req.eventType, "error": err.Error()}
		}
		return map[string]any{"type": req.eventType, "result": res}
	}

	if err := p.DispatchNamed(req.eventType, req.args...); err != nil {
		return map[string]any{"type": req.eventType, "error": err.Error()}
	}
	return map[string]any{"type": req.eventType, "ok": true}
}

// emitter serialises JSON lines from the plugin's output and the replay loop.
type emitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newEmitter(w io.Writer) *emitter {
	return &emitter{enc: json.NewEncoder(w)}
}

func (e *emitter) emit(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(v)
}
