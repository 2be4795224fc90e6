package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/internal/catalog"
	"github.com/suduli/AI-ASIL-Analyser/internal/core"
	"github.com/suduli/AI-ASIL-Analyser/internal/export"
	"github.com/suduli/AI-ASIL-Analyser/internal/server"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

const checkKeyTimeout = 15 * time.Second

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// ---------------------------------------------------------------------------
// analyze
// ---------------------------------------------------------------------------

func runAnalyze(ctx context.Context, args []string) error {
	fs := newFlagSet("analyze")
	formatFlag := fs.String("format", string(export.FormatMarkdown), "report format: md or json")
	output := fs.String("o", "", "write the report to this file or directory")
	details := fs.String("details", "", "description passed to the generator")
	category := fs.String("category", "", "category for a manual component")
	noCheck := fs.Bool("no-check", false, "skip the automotive relevance check")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\nusage: asil analyze [-format md|json] [-o file] [-details text] [-no-check] <component>", err)
	}
	name := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if name == "" {
		return errors.New("usage: asil analyze [-format md|json] [-o file] [-details text] [-no-check] <component>")
	}
	format, err := export.ParseFormat(*formatFlag)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	analysis, err := a.analyzer.Start(ctx, core.AnalysisRequest{
		Query:               name,
		Category:            *category,
		Description:         *details,
		SkipAutomotiveCheck: *noCheck,
	})
	if err != nil {
		return err
	}
	report, err := analysis.Wait(ctx)
	if err != nil {
		return err
	}

	if *output == "" {
		return export.Write(stdout, format, report)
	}
	path := *output
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, export.Filename(report, format))
	}
	if err := writeFile(path, func(w io.Writer) error { return export.Write(w, format, report) }); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "📄 Wrote %s\n", path)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ---------------------------------------------------------------------------
// catalog
// ---------------------------------------------------------------------------

func runCatalog(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	switch sub {
	case "list":
		printComponents(stdout, a.catalog.List())
		return nil
	case "search":
		if len(args) == 0 {
			return errors.New("usage: asil catalog search <query>")
		}
		found := a.catalog.Search(strings.Join(args, " "), "")
		if len(found) == 0 {
			fmt.Fprintln(stdout, "No matching components")
			return nil
		}
		printComponents(stdout, found)
		return nil
	case "show":
		if len(args) == 0 {
			return errors.New("usage: asil catalog show <id>")
		}
		rec, err := a.catalog.FindByName(strings.Join(args, " "))
		if err != nil {
			return err
		}
		printComponent(stdout, rec)
		return nil
	case "stats":
		printStats(stdout, a.catalog.Stats())
		return nil
	case "export":
		if len(args) == 0 {
			return errors.New("usage: asil catalog export <file.csv>")
		}
		records := a.catalog.List()
		if err := writeFile(args[0], func(w io.Writer) error { return export.WriteCatalogCSV(w, records) }); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "📄 Wrote %d components to %s\n", len(records), args[0])
		return nil
	default:
		return fmt.Errorf("unknown catalog command %q", sub)
	}
}

func printComponents(w io.Writer, records []schema.ComponentRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tRATING\tASIL")
	for _, rec := range records {
		level := asil.Of(rec.Rating)
		mark := ""
		if rec.RecordedASIL != "" && rec.RecordedASIL != level {
			mark = fmt.Sprintf(" (recorded %s)", rec.RecordedASIL)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s%s\n", rec.ID, rec.Name, rec.Category, rec.Rating, level, mark)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\n%d components\n", len(records))
}

func printComponent(w io.Writer, rec schema.ComponentRecord) {
	level := asil.Of(rec.Rating)
	fmt.Fprintf(w, "%s (%s)\n", rec.Name, rec.ID)
	fmt.Fprintf(w, "Category: %s\n", rec.Category)
	if rec.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", rec.Description)
	}
	fmt.Fprintf(w, "Rating: %s → %s\n", rec.Rating, level.Label())
	for _, d := range schema.Dimensions() {
		fmt.Fprintf(w, "  %s %s: %s\n", rec.Rating.Level(d), d, rec.Reasons.For(d))
	}
	printList(w, "Hazards", rec.Hazards)
	printList(w, "Failure modes", rec.FailureModes)
	printList(w, "Recommendations", rec.Recommendations)
	fmt.Fprintf(w, "\n%s\n", level.Explanation())
}

func printList(w io.Writer, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", heading)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func printStats(w io.Writer, st catalog.Stats) {
	fmt.Fprintf(w, "Components: %d\n", st.Total)
	fmt.Fprintln(w, "By ASIL:")
	for _, level := range schema.ASILs() {
		fmt.Fprintf(w, "  %-3s %d\n", level, st.ByASIL[level])
	}
	fmt.Fprintf(w, "Categories: %d\n", len(st.ByCategory))
	if st.LabelMismatches > 0 {
		fmt.Fprintf(w, "Recorded labels differing from the matrix: %d\n", st.LabelMismatches)
	}
	if st.HighestRisk != nil {
		fmt.Fprintf(w, "Highest risk: %s (%s, ASIL %s)\n", st.HighestRisk.Name, st.HighestRisk.Rating, st.HighestRisk.ASIL)
	}
	if st.LowestRisk != nil {
		fmt.Fprintf(w, "Lowest risk: %s (%s, ASIL %s)\n", st.LowestRisk.Name, st.LowestRisk.Rating, st.LowestRisk.ASIL)
	}
}

// ---------------------------------------------------------------------------
// add / delete
// ---------------------------------------------------------------------------

func runAdd(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	name := fs.String("name", "", "component name")
	category := fs.String("category", "", "category")
	description := fs.String("description", "", "description")
	sev := fs.String("s", "", "severity S0-S3")
	exp := fs.String("e", "", "exposure E0-E4")
	ctl := fs.String("c", "", "controllability C0-C3")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\nusage: asil add [-name n -category c -s S3 -e E4 -c C3 [-description d]]", err)
	}

	fields := componentFields{
		Name: *name, Category: *category, Description: *description,
		Severity: *sev, Exposure: *exp, Controllability: *ctl,
	}
	if fields.Name == "" {
		var err error
		fields, err = promptComponent()
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
	}
	rec, err := fields.record()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	saved, err := a.catalog.Add(ctx, rec)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✅ Added %s as %s (%s, ASIL %s)\n", saved.Name, saved.ID, saved.Rating, asil.Of(saved.Rating))
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: asil delete <id>")
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	removed, err := a.catalog.Delete(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "🗑  Removed %s (%s)\n", removed.Name, removed.ID)
	return nil
}

// ---------------------------------------------------------------------------
// session / serve
// ---------------------------------------------------------------------------

func runSession(ctx context.Context, _ []string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.config.HasAPIKey() {
		fmt.Fprintln(stdout, "⚠️  No API key configured: candidate ratings come from the keyword heuristic.")
	}
	cli, err := core.NewCLISession(a.analyzer, os.Stdin, stdout)
	if err != nil {
		return err
	}
	defer cli.Session.Close()
	if err := cli.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := newFlagSet("serve")
	addr := fs.String("addr", "", "listen address (default from ASIL_ADDR)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\nusage: asil serve [-addr :8080]", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	srv, err := server.New(a.analyzer, server.Options{
		SessionSecret: a.config.SessionSecret,
		AdminToken:    a.config.AdminToken,
		Logger:        a.logger,
	})
	if err != nil {
		return err
	}
	listen := *addr
	if listen == "" {
		listen = a.config.Addr
	}
	return srv.Run(ctx, listen)
}

// ---------------------------------------------------------------------------
// matrix / check-key
// ---------------------------------------------------------------------------

func runMatrix(_ context.Context, _ []string) error {
	printMatrix(stdout)
	return nil
}

func printMatrix(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "\t")
	for c := 0; c <= schema.ControllabilityMax; c++ {
		fmt.Fprintf(tw, "\t%s", schema.Controllability(c))
	}
	fmt.Fprintln(tw)
	for s := 0; s <= schema.SeverityMax; s++ {
		for e := 0; e <= schema.ExposureMax; e++ {
			fmt.Fprintf(tw, "%s\t%s", schema.Severity(s), schema.Exposure(e))
			for c := 0; c <= schema.ControllabilityMax; c++ {
				fmt.Fprintf(tw, "\t%s", asil.Lookup(s, e, c))
			}
			fmt.Fprintln(tw)
		}
	}
	_ = tw.Flush()
}

func runCheckKey(ctx context.Context, _ []string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.client == nil {
		return errors.New("no API key configured (set ASIL_API_KEY or OPENROUTER_API_KEY)")
	}
	ctx, cancel := context.WithTimeout(ctx, checkKeyTimeout)
	defer cancel()
	if err := a.client.CheckKey(ctx); err != nil {
		return fmt.Errorf("API key rejected: %w", err)
	}
	fmt.Fprintf(stdout, "✅ API key accepted by %s (model %s)\n", a.client.Provider(), a.client.Model())
	return nil
}
