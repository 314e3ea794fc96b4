package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"maizekg/internal/config"
	"maizekg/internal/logger"
	"maizekg/internal/logger/console"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error
}

var commands = []command{
	{name: "build", summary: "build the graph from one or more inputs", run: runBuild},
	{name: "report", summary: "print a summary of the graph", run: runReport},
	{name: "export", summary: "write graph nodes and relationships as CSV", run: runExport},
	{name: "classify", summary: "dry-run entity classification of an input", run: runClassify},
}

func main() {
	_ = godotenv.Load(".env")
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	global := flag.NewFlagSet("kgctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.BoolVar(&cfg.LogDebug, "debug", cfg.LogDebug, "Enable debug logging (env: KG_LOG_DEBUG)")
	global.Usage = func() { printUsage(stderr) }
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{Debug: cfg.LogDebug, Prefix: "kgctl", Output: stderr}))

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return exitUsage
	}
	var cmd *command
	for i := range commands {
		if commands[i].name == rest[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "kgctl: unknown command %q\n\n", rest[0])
		printUsage(stderr)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := cmd.run(ctx, cfg, rest[1:], stdout)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return exitUsage
	default:
		fmt.Fprintf(stderr, "kgctl %s: %v\n", cmd.name, err)
		return exitError
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: kgctl [-debug] <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Graph connection strings: postgres://..., bolt://..., neo4j://..., memory://<name>")
}
