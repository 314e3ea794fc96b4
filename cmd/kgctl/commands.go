package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"maizekg/internal/config"
	"maizekg/internal/logger"
	"maizekg/internal/metrics"
	"maizekg/internal/pipeline"
	"maizekg/internal/source"
	"maizekg/internal/storage"
	"maizekg/internal/util"
)

func newFlagSet(name string, cfg *config.Config, stdout io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("kgctl "+name, flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.StringVar(&cfg.GraphURL, "graph", cfg.GraphURL, "Graph store connection string (env: KG_GRAPH_URL)")
	return fs
}

func openPipeline(ctx context.Context, cfg config.Config) (*pipeline.Pipeline, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(ctx, cfg.GraphURL, pipeline.StoreOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	c, err := pipeline.NewClassifier(cfg)
	if err != nil {
		_ = store.Close(ctx)
		return nil, nil, err
	}
	p := pipeline.New(store, c, pipeline.UpsertConfig(cfg), metrics.New())
	closeFn := func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("close graph store", "err", err)
		}
	}
	return p, closeFn, nil
}

func runBuild(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	fs := newFlagSet("build", &cfg, stdout)
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Store attempts per triple (env: KG_MAX_ATTEMPTS)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stdout, "kgctl build: at least one input is required")
		return errUsage
	}
	p, closeFn, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	var errs []error
	srcs := make([]source.Source, 0, fs.NArg())
	for _, path := range fs.Args() {
		src, err := source.Open(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		srcs = append(srcs, src)
	}
	if len(srcs) == 0 {
		return errors.Join(errs...)
	}

	results, err := p.BuildAll(ctx, srcs)
	if err != nil {
		errs = append(errs, err)
	}
	for _, res := range results {
		if res.Status != storage.RunStatusCompleted {
			continue
		}
		fmt.Fprintf(stdout, "%s %s\n", res.Input, res.Summary())
		for _, f := range res.Upsert.Failures {
			fmt.Fprintf(stdout, "  failed triple %d (%s -%s-> %s) after %d attempts: %s\n",
				f.Index, f.Triple.Subject, f.Triple.Predicate, f.Triple.Object, f.Attempts, f.Error)
		}
	}
	return errors.Join(errs...)
}

func runReport(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	fs := newFlagSet("report", &cfg, stdout)
	format := fs.String("format", "text", "Output format: text or json")
	out := fs.String("out", "", "Write the report to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "text" && *format != "json" {
		fmt.Fprintf(stdout, "kgctl report: unknown format %q\n", *format)
		return errUsage
	}
	p, closeFn, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := p.Report(ctx)
	if err != nil {
		return err
	}
	if *out != "" {
		if *format == "json" {
			return util.WriteJSONAtomic(*out, report)
		}
		return util.WriteTextAtomic(*out, report.Text())
	}
	if *format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err = io.WriteString(stdout, report.Text())
	return err
}

func runExport(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	fs := newFlagSet("export", &cfg, stdout)
	dir := fs.String("dir", "", "Directory for graph_nodes.csv and graph_relationships.csv")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		fmt.Fprintln(stdout, "kgctl export: -dir is required")
		return errUsage
	}
	p, closeFn, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	nodes, rels, err := p.Export(ctx, *dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s\nwrote %s\n", nodes, rels)
	return nil
}

func runClassify(ctx context.Context, cfg config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("kgctl classify", flag.ContinueOnError)
	fs.SetOutput(stdout)
	explain := fs.Bool("explain", false, "List every rule matching each name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stdout, "kgctl classify: exactly one input is required")
		return errUsage
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c, err := pipeline.NewClassifier(cfg)
	if err != nil {
		return err
	}
	src, err := source.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	triples, stats, err := source.Collect(ctx, src)
	if err != nil {
		return err
	}
	cls, err := c.Classify(ctx, triples)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, name := range cls.SortedNames() {
		if *explain {
			fmt.Fprintf(tw, "%s\t%s\t%v\n", name, cls[name], c.Explain(name))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, cls[name])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d triples, %d names, %d rows skipped\n", len(triples), len(cls), stats.SkippedCount())
	return nil
}
