// Command stepflow-run executes a graph file in-process and reports each
// step as it runs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	app "github.com/kode4food/stepflow"
	"github.com/kode4food/stepflow/internal/client"
	"github.com/kode4food/stepflow/internal/config"
	"github.com/kode4food/stepflow/internal/engine"
	"github.com/kode4food/stepflow/internal/engine/handler"
	"github.com/kode4food/stepflow/internal/engine/runopt"
	"github.com/kode4food/stepflow/pkg/api"
	"github.com/kode4food/stepflow/pkg/log"
)

const (
	exitOK = iota
	exitRunFailed
	exitUsage
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("stepflow-run", flag.ContinueOnError)
	flags.SetOutput(stderr)
	verbose := flags.Bool("v", false, "log engine activity to stderr")
	planOnly := flags.Bool("plan", false, "print the execution order and exit")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: stepflow-run [-v] [-plan] <graph.yaml>")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return exitUsage
	}

	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	setupLogging(stderr, cfg, *verbose)

	g, err := loadGraph(flags.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	eng := engine.New(cfg, engine.Dependencies{
		Registry: handler.NewDefaultRegistry(handler.Dependencies{
			Client: client.NewHTTPClient(cfg.WebhookTimeout),
		}),
	})
	defer func() { _ = eng.Stop() }()

	order, err := eng.Order(g)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	p := newPrinter(stdout)
	p.plan(order)
	if *planOnly {
		return exitOK
	}

	id, err := eng.StartRun(ctx, g, runopt.WithSubscriber(p.update))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	st, err := eng.WaitRun(ctx, id)
	if errors.Is(err, context.Canceled) {
		_ = eng.CancelRun(id)
		st, err = eng.WaitRun(context.Background(), id)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitRunFailed
	}

	p.summary(st)
	if st.Status != api.RunCompleted {
		return exitRunFailed
	}
	return exitOK
}

func setupLogging(w io.Writer, cfg *config.Config, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level, _ = log.ParseLevel(cfg.LogLevel)
	}
	slog.SetDefault(log.NewWithWriter(w, app.Name, "cli", app.Version, level))
}
