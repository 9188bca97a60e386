// Command portagent runs a single port agent instance: a long-running
// daemon mediating between an instrument connection and one or more driver
// clients. See SPEC_FULL.md section A.3 for the division of labor between
// this composition root and the pkg/portagent orchestrator it wires up.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/hashicorp/go-envparse"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/oceanobs/portagent/pkg/memstore"
	"github.com/oceanobs/portagent/pkg/portagent"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if len(args) == 0 {
		usage()
		return 1
	}

	if args[0] == "--config" {
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "error: --config requires exactly one yaml file argument")
			return 1
		}
		return runConfig(log, args[1])
	}

	variant := args[0]
	switch variant {
	case "tcp", "rsn", "botpt", "datalog", "digilog_ascii", "chunky":
	default:
		fmt.Fprintf(os.Stderr, "error: unknown agent type %q\n", variant)
		usage()
		return 1
	}

	fs := pflag.NewFlagSet(variant, pflag.ContinueOnError)
	sniff := fs.Int("sniff", 0, "sniffer port (0 binds an ephemeral port)")
	name := fs.String("name", "", "agent name (defaults to the command port)")
	refdes := fs.String("refdes", "", "reference designator (defaults to the agent type)")
	ttl := fs.Int("ttl", 30, "service registration TTL, in seconds")
	logDir := fs.String("log-dir", "", "directory for daily .log/.datalog files (empty disables logging)")
	logLevel := fs.String("log-level", "info", "zerolog level (trace/debug/info/warn/error)")
	envFile := fs.String("env", "", "env file overlaying --name/--refdes/--ttl defaults")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid --log-level %q: %v\n", *logLevel, err)
		return 1
	}
	log = log.Level(lvl)

	if *envFile != "" {
		flagTTL := *ttl
		if err := applyEnvOverlay(*envFile, name, refdes, ttl); err != nil {
			fmt.Fprintf(os.Stderr, "error: read env file: %v\n", err)
			return 1
		}
		if fs.Changed("ttl") {
			*ttl = flagTTL
		}
	}

	cfg := portagent.Config{
		Type:       variant,
		Name:       *name,
		RefDes:     *refdes,
		TTLSeconds: *ttl,
		SniffPort:  *sniff,
		LogDir:     *logDir,
	}

	if err := fillPositional(&cfg, variant, fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		usage()
		return 1
	}

	return serve(log, cfg)
}

// fillPositional parses the variant-specific positional arguments (after
// flags have been removed) per §6's usage grammar: every variant accepts
// an optional leading "<port> <commandport>" pair ahead of its required
// arguments.
func fillPositional(cfg *portagent.Config, variant string, args []string) error {
	switch variant {
	case "tcp":
		rest, err := takePortPrefix(cfg, args, 2)
		if err != nil {
			return err
		}
		cfg.InstrumentAddr = rest[0]
		return parseIntInto(&cfg.InstrumentPort, "instport", rest[1])

	case "rsn":
		rest, err := takePortPrefix(cfg, args, 3)
		if err != nil {
			return err
		}
		cfg.InstrumentAddr = rest[0]
		if err := parseIntInto(&cfg.InstrumentPort, "instport", rest[1]); err != nil {
			return err
		}
		return parseIntInto(&cfg.DigiPort, "digiport", rest[2])

	case "botpt":
		rest, err := takePortPrefix(cfg, args, 3)
		if err != nil {
			return err
		}
		cfg.InstrumentAddr = rest[0]
		if err := parseIntInto(&cfg.RxPort, "rxport", rest[1]); err != nil {
			return err
		}
		return parseIntInto(&cfg.TxPort, "txport", rest[2])

	case "datalog", "digilog_ascii", "chunky":
		rest, err := takeFileArgs(cfg, args)
		if err != nil {
			return err
		}
		files, err := expandGlobs(rest)
		if err != nil {
			return err
		}
		cfg.Files = files
		return nil

	default:
		return fmt.Errorf("unknown agent type %q", variant)
	}
}

// takePortPrefix consumes an optional leading "<port> <commandport>" pair:
// if exactly required+2 arguments are given and the first two parse as
// integers, they become DataPort/CommandPort and the remaining required
// arguments are returned. Otherwise exactly `required` arguments must be
// present, with ports left at their zero ("ephemeral") default.
func takePortPrefix(cfg *portagent.Config, args []string, required int) ([]string, error) {
	switch len(args) {
	case required:
		return args, nil
	case required + 2:
		port, err1 := strconv.Atoi(args[0])
		cport, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("expected numeric <port> <commandport>, got %q %q", args[0], args[1])
		}
		cfg.DataPort, cfg.CommandPort = port, cport
		return args[2:], nil
	default:
		return nil, fmt.Errorf("expected %d or %d positional arguments, got %d", required, required+2, len(args))
	}
}

// takeFileArgs is takePortPrefix's variadic-tail counterpart for the
// datalog/digilog_ascii/chunky variants: the optional "<port>
// <commandport>" prefix is recognized only when at least one file argument
// remains after it and both candidate tokens parse as integers.
func takeFileArgs(cfg *portagent.Config, args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one file argument is required")
	}
	if len(args) >= 3 {
		if port, err1 := strconv.Atoi(args[0]); err1 == nil {
			if cport, err2 := strconv.Atoi(args[1]); err2 == nil {
				cfg.DataPort, cfg.CommandPort = port, cport
				return args[2:], nil
			}
		}
	}
	return args, nil
}

func parseIntInto(dst *int, label, s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", label, s, err)
	}
	*dst = n
	return nil
}

func expandGlobs(patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern %q: %w", p, err)
		}
		if matches == nil {
			files = append(files, p) // literal path; let the replayer report the open error
			continue
		}
		files = append(files, matches...)
	}
	return files, nil
}

// applyEnvOverlay folds KEY=VALUE pairs from an env file into name/refdes/
// ttl, mirroring cmd/atlas/main.go's readEnv helper. name and refdes are
// filled only when empty; a numeric PORT_AGENT_TTL always replaces ttl, so
// run restores an explicitly given --ttl afterwards.
func applyEnvOverlay(path string, name, refdes *string, ttl *int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return err
	}
	if *name == "" {
		if v, ok := m["PORT_AGENT_NAME"]; ok {
			*name = v
		}
	}
	if *refdes == "" {
		if v, ok := m["PORT_AGENT_REFDES"]; ok {
			*refdes = v
		}
	}
	if v, ok := m["PORT_AGENT_TTL"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			*ttl = n
		}
	}
	return nil
}

func runConfig(log zerolog.Logger, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: read config: %v\n", err)
		return 1
	}
	var cfg portagent.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse config: %v\n", err)
		return 1
	}
	return serve(log, cfg)
}

// serve builds the agent for cfg and blocks until SIGINT/SIGTERM, then
// shuts down cleanly. The registrar wired here is an in-memory stand-in
// (pkg/memstore): a real service-directory integration (Consul or
// similar) is an external collaborator per spec §1, but defaulting to a
// no-op interface with no observable state would make get_config's
// reported ports unverifiable, so this composition root uses the
// in-process Registry instead of nil.
func serve(log zerolog.Logger, cfg portagent.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registrar := memstore.New()
	a, err := portagent.New(ctx, log, cfg, registrar)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: start agent: %v\n", err)
		return 1
	}
	defer a.Close()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  %[1]s --config <yaml-file>
  %[1]s tcp      [<port> <commandport>] <instaddr> <instport>             [flags]
  %[1]s rsn      [<port> <commandport>] <instaddr> <instport> <digiport>  [flags]
  %[1]s botpt    [<port> <commandport>] <instaddr> <rxport> <txport>      [flags]
  %[1]s datalog  [<port> <commandport>] <files>...                       [flags]
  %[1]s digilog_ascii [<port> <commandport>] <files>...                  [flags]
  %[1]s chunky   [<port> <commandport>] <files>...                       [flags]

flags: --sniff --name --refdes --ttl --log-dir --log-level --env
`, filepath.Base(os.Args[0]))
}
