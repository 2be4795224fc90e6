package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/suduli/AI-ASIL-Analyser/internal/export"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// CLISession manages an interactive line-oriented session.
type CLISession struct {
	Session *Session
	in      *bufio.Scanner
	out     io.Writer
}

// NewCLISession creates a CLI session reading commands from in.
func NewCLISession(analyzer *Analyzer, in io.Reader, out io.Writer) (*CLISession, error) {
	session, err := NewSession(analyzer)
	if err != nil {
		return nil, err
	}
	return &CLISession{
		Session: session,
		in:      bufio.NewScanner(in),
		out:     out,
	}, nil
}

const cliHelp = `Commands:
  analyze <component>           Analyze a catalog component or free-text input
  override <s|e|c> <level>      Override a dimension on both sides (e.g. override c C3)
  clear                         Drop all overrides
  adopt                         Make the candidate rating the catalog reference
  save                          Save the analysis as a catalog component
  show                          Show the current analysis
  export <json|md> [path]       Write the current analysis to a file
  help                          Show this help
  quit                          Leave the session
Any other input is analyzed as a component name.`

// Run executes the interactive session loop until quit, end of input or
// ctx cancellation.
func (c *CLISession) Run(ctx context.Context) error {
	defer c.Session.Close()

	c.printf("ASIL session %s. Type 'help' for commands.\n", c.Session.ID())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.printf("> ")
		if !c.in.Scan() {
			if err := c.in.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			c.printf("\n")
			return nil
		}

		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		quit, err := c.Execute(ctx, line)
		if err != nil {
			c.printf("Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Execute runs one command line. It reports true when the session should end.
func (c *CLISession) Execute(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		c.printf("%s\n", cliHelp)
		return false, nil
	case "analyze", "a":
		if arg == "" {
			return false, errors.New("usage: analyze <component>")
		}
		return false, c.analyze(ctx, arg)
	case "override", "o":
		return false, c.override(arg)
	case "clear":
		return false, c.clear()
	case "adopt":
		return false, c.adopt(ctx)
	case "save":
		return false, c.save(ctx)
	case "show":
		a, err := c.current()
		if err != nil {
			return false, err
		}
		c.printReport(a.Report())
		return false, nil
	case "export":
		return false, c.export(arg)
	default:
		return false, c.analyze(ctx, line)
	}
}

func (c *CLISession) analyze(ctx context.Context, query string) error {
	a, err := c.Session.Analyze(ctx, AnalysisRequest{Query: query})
	if err != nil {
		return err
	}

	// The reference is shown before the candidate lands.
	first := a.Report()
	if first.Reference != nil {
		c.printf("\n📚 %s (catalog: %s)\n", first.ComponentName, first.ComponentID)
		c.printAssessment("Reference", first.Reference)
	} else {
		c.printf("\n✏️  %s (manual input)\n", first.ComponentName)
	}
	c.printf("🤖 Waiting for candidate rating...\n")

	report, err := a.Wait(ctx)
	if err != nil {
		return err
	}
	c.printCandidate(report)
	c.printComparison(report)
	if report.SavedAs != "" {
		c.printf("💾 Learned as catalog component %s\n", report.SavedAs)
	}
	return nil
}

func (c *CLISession) override(arg string) error {
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return errors.New("usage: override <s|e|c> <level>")
	}
	dim, err := schema.ParseDimension(fields[0])
	if err != nil {
		return err
	}
	a, err := c.current()
	if err != nil {
		return err
	}
	report, err := a.SetOverride(dim, fields[1])
	if err != nil {
		return err
	}
	c.printComparison(report)
	return nil
}

func (c *CLISession) clear() error {
	a, err := c.current()
	if err != nil {
		return err
	}
	c.printComparison(a.ClearOverrides())
	return nil
}

func (c *CLISession) adopt(ctx context.Context) error {
	a, err := c.current()
	if err != nil {
		return err
	}
	rec, err := c.Session.Analyzer().Adopt(ctx, a)
	if err != nil {
		return err
	}
	c.printf("✅ %s now rated %s (ASIL %s)\n", rec.ID, rec.Rating, rec.RecordedASIL)
	return nil
}

func (c *CLISession) save(ctx context.Context) error {
	a, err := c.current()
	if err != nil {
		return err
	}
	rec, created, err := c.Session.Analyzer().Save(ctx, a)
	if err != nil {
		return err
	}
	if created {
		c.printf("💾 Saved as %s\n", rec.ID)
	} else {
		c.printf("Already catalogued as %s\n", rec.ID)
	}
	return nil
}

func (c *CLISession) export(arg string) error {
	fields := strings.Fields(arg)
	if len(fields) == 0 || len(fields) > 2 {
		return errors.New("usage: export <json|md> [path]")
	}
	format, err := export.ParseFormat(fields[0])
	if err != nil {
		return err
	}
	a, err := c.current()
	if err != nil {
		return err
	}
	report := a.Report()

	path := export.Filename(report, format)
	if len(fields) == 2 {
		path = fields[1]
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(f, format, report); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	c.printf("📄 Wrote %s\n", path)
	return nil
}

func (c *CLISession) current() (*Analysis, error) {
	a, ok := c.Session.Current()
	if !ok {
		return nil, errors.New("no analysis yet; run 'analyze <component>' first")
	}
	return a, nil
}

func (c *CLISession) printReport(r *schema.AnalysisReport) {
	c.printf("\n%s [%s, %s]\n", r.ComponentName, r.Mode, r.ID)
	if r.Description != "" {
		c.printf("%s\n", r.Description)
	}
	if r.Reference != nil {
		c.printAssessment("Reference", r.Reference)
	}
	c.printCandidate(r)
	c.printComparison(r)
}

func (c *CLISession) printCandidate(r *schema.AnalysisReport) {
	switch r.CandidateStatus {
	case schema.CandidateAvailable:
		c.printAssessment("Candidate", r.Candidate)
		if r.CandidateError != "" {
			c.printf("   ⚠️  %s\n", r.CandidateError)
		}
	case schema.CandidateUnavailable:
		c.printf("Candidate: unavailable (%s)\n", r.CandidateError)
	default:
		c.printf("Candidate: pending\n")
	}
}

func (c *CLISession) printAssessment(label string, a *schema.Assessment) {
	c.printf("%s: %s → ASIL %s [%s]\n", label, a.Rating, a.ASIL, a.Source)
	for _, d := range schema.Dimensions() {
		c.printf("   %s: %s\n", a.Rating.Level(d), truncate(a.Reasons.For(d), 100))
	}
	if len(a.Hazards) > 0 {
		c.printf("   Hazards: %s\n", truncate(strings.Join(a.Hazards, "; "), 100))
	}
}

func (c *CLISession) printComparison(r *schema.AnalysisReport) {
	cmp := r.Comparison
	if cmp == nil {
		return
	}
	if cmp.Overrides != nil {
		c.printf("Overrides applied to both sides\n")
	}
	if !cmp.Comparable() {
		if cmp.Reference != nil {
			c.printf("📊 ASIL %s (reference only)\n", cmp.ReferenceASIL)
		} else if cmp.Candidate != nil {
			c.printf("📊 ASIL %s (candidate only)\n", cmp.CandidateASIL)
		}
		return
	}

	c.printf("📊 Reference ASIL %s, candidate ASIL %s: %s\n", cmp.ReferenceASIL, cmp.CandidateASIL, cmp.ASIL)
	for _, diff := range cmp.Differences {
		c.printf("   [≠] %s: reference %s, candidate %s\n", diff.Dimension, diff.Reference, diff.Candidate)
	}
	if cmp.FullMatch() {
		c.printf("   Full agreement on every dimension\n")
	}
}

func (c *CLISession) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// truncate shortens s to max bytes, ellipsis included, on a rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
