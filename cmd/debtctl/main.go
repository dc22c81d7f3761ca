// Command debtctl imports, exports and reports on debts from the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/config"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/ledger"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/store"
)

// as a short lived CLI, global flags are fine.

var (
	userFlag  = flag.String("user", "default", "User whose debts are read or written")
	plainFlag = flag.Bool("plain", false, "Print raw markdown instead of rendering it")
)

var cfg config.Config

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&importCmd{}, "data")
	commander.Register(&exportCmd{}, "data")
	commander.Register(&listCmd{}, "reports")
	commander.Register(&summaryCmd{}, "reports")
	commander.Register(&sectionsCmd{}, "reports")

	flag.Parse()

	var err error
	if cfg, err = config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	os.Exit(int(commander.Execute(context.Background())))
}

// openLedger opens the configured store and a ledger over it. The caller closes the store.
func openLedger(ctx context.Context) (*ledger.Ledger, store.Store, error) {
	var (
		st  store.Store
		err error
	)
	if cfg.DBDriver == config.DriverPostgres {
		st, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
	} else {
		st, err = store.NewSQLiteStore(cfg.DBPath)
	}
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewLedger(st, st), st, nil
}

// printMarkdown renders md for the terminal, or prints it raw with -plain.
func printMarkdown(md string) {
	if *plainFlag {
		fmt.Print(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	slog.Debug("markdown rendering failed, printing raw", "error", err)
	fmt.Print(md)
}
