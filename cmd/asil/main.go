package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(ctx context.Context, args []string) error
}

var commands = []command{
	{
		name:  "analyze",
		short: "Rate a component and compare it with the catalog",
		usage: "asil analyze [-format md|json] [-o file] [-details text] [-no-check] <component>",
		long: `Analyze a component by catalog id or name, or as free text.

A catalog component is shown with its reference rating and compared with a
freshly generated candidate. Anything else is rated by the generator, or by
the keyword heuristic when no API key is configured.

The report is printed as Markdown unless -format json is given. With -o it
is written to a file instead; a directory argument gets a generated name.
`,
		run: runAnalyze,
	},
	{
		name:  "catalog",
		short: "List, search and export catalog components",
		usage: "asil catalog [list | search <query> | show <id> | stats | export <file.csv>]",
		long: `Inspect the component catalog.

  list             every component with its computed ASIL (default)
  search <query>   components whose id, name, description or category match
  show <id>        one component with its reasons and lists
  stats            distribution by ASIL, severity and category
  export <file>    write the catalog as CSV
`,
		run: runCatalog,
	},
	{
		name:  "add",
		short: "Add a component to the catalog",
		usage: "asil add [-name n -category c -s S3 -e E4 -c C3 [-description d]]",
		long: `Add a component with a manually chosen rating.

Without -name the fields are asked for interactively.
`,
		run: runAdd,
	},
	{
		name:  "delete",
		short: "Remove a component from the catalog",
		usage: "asil delete <id>",
		long:  "Remove the component with the given id. The removal is kept in the changelog.\n",
		run:   runDelete,
	},
	{
		name:  "session",
		short: "Start an interactive analysis session",
		usage: "asil session",
		long: `Start an interactive session. Each line is a command or a component
to analyze; type 'help' inside the session for the command list.
`,
		run: runSession,
	},
	{
		name:  "serve",
		short: "Serve the JSON API",
		usage: "asil serve [-addr :8080]",
		long: `Serve the catalog and analyzer over HTTP.

Mutating routes require "Authorization: Bearer <token>" when
ASIL_ADMIN_TOKEN is set.
`,
		run: runServe,
	},
	{
		name:  "matrix",
		short: "Print the ASIL determination matrix",
		usage: "asil matrix",
		long:  "Print the ASIL for every severity, exposure and controllability combination.\n",
		run:   runMatrix,
	},
	{
		name:  "check-key",
		short: "Verify the configured API key",
		usage: "asil check-key",
		long:  "Call the provider with the configured API key and report whether it is accepted.\n",
		run:   runCheckKey,
	},
}

// stdout is where commands write their results.
var stdout io.Writer = os.Stdout

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "asil: ISO 26262 ASIL analysis\n\n")
	fmt.Fprintf(w, "Usage:\n  asil <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'asil help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "asil: unknown command %q\n\nRun 'asil help' for usage.\n", name)
}

func dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(stdout, args[1])
		} else {
			printUsage(stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(ctx, args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'asil help' for usage", args[0])
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := dispatch(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
