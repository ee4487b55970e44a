package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/vk/rulegrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// specsArg is shared by every subcommand. Without specs the whole build
// root is selected.
type specsArg struct {
	Specs []string `arg:"" optional:"" name:"specs" help:"Addresses (pkg:name), directories (pkg:) or trees (pkg::). Defaults to '::'."`
}

// grammar is the command line understood by rulegrid.
type grammar struct {
	Root            string `short:"r" help:"Build root directory." default:"."`
	Options         string `short:"o" help:"YAML options file."`
	LogLevel        string `help:"Logging level: debug, info, warn or error."`
	LogFormat       string `help:"Log output format: text or json."`
	Workers         int    `short:"w" help:"Maximum number of rules running at once. 0 uses one per CPU."`
	Store           string `help:"SQLite file for the content store. In memory when empty."`
	HealthcheckPort int    `help:"Port for the HTTP health check and metrics server. 0 is disabled."`
	WorkunitURL     string `name:"workunit-url" help:"socket.io server receiving workunit events."`

	List  specsArg `cmd:"" help:"List the addresses the specs expand to."`
	Show  specsArg `cmd:"" help:"Print hydrated records as HCL."`
	Deps  specsArg `cmd:"" help:"List the transitive dependencies of the specs."`
	Dot   specsArg `cmd:"" help:"Hydrate the specs and print the product graph in Graphviz format."`
	Watch specsArg `cmd:"" help:"List the specs and again on every change below the root."`
}

// exitSignal carries kong's exit request out of Parse.
type exitSignal struct{ code int }

// Parse processes command-line arguments. It returns a populated Config and
// the command to run, a boolean indicating if the program should exit
// cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (cfg *app.Config, cmd *app.Command, shouldExit bool, err error) {
	slog.Debug("CLI parser started.")
	var g grammar
	parser, err := kong.New(&g,
		kong.Name("rulegrid"),
		kong.Description("Rulegrid - hydrates declarative build records with a memoizing rule engine."),
		kong.Writers(output, output),
		kong.Exit(func(code int) { panic(exitSignal{code: code}) }),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to build command line parser: %w", err)
	}

	if len(args) == 0 {
		slog.Debug("No command provided, printing usage and exiting.")
		args = []string{"--help"}
	}

	defer func() {
		if r := recover(); r != nil {
			sig, ok := r.(exitSignal)
			if !ok {
				panic(r)
			}
			cfg, cmd, err = nil, nil, nil
			shouldExit = true
			if sig.code != 0 {
				err = &ExitError{Code: sig.code, Message: "exit requested by parser"}
			}
		}
	}()

	kctx, err := parser.Parse(args)
	if err != nil {
		return nil, nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	name := strings.Fields(kctx.Command())[0]
	specs := specsFor(&g, name)
	if len(specs) == 0 {
		specs = []string{"::"}
	}

	config, err := app.NewConfig(app.Config{
		Root:            g.Root,
		OptionsFile:     g.Options,
		LogLevel:        strings.ToLower(g.LogLevel),
		LogFormat:       strings.ToLower(g.LogFormat),
		WorkerCount:     g.Workers,
		StorePath:       g.Store,
		HealthcheckPort: g.HealthcheckPort,
		WorkunitURL:     g.WorkunitURL,
	})
	if err != nil {
		return nil, nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "command", name, "specs", specs)
	return config, &app.Command{Name: name, Specs: specs}, false, nil
}

func specsFor(g *grammar, name string) []string {
	switch name {
	case app.CmdList:
		return g.List.Specs
	case app.CmdShow:
		return g.Show.Specs
	case app.CmdDeps:
		return g.Deps.Specs
	case app.CmdDot:
		return g.Dot.Specs
	case app.CmdWatch:
		return g.Watch.Specs
	}
	return nil
}
