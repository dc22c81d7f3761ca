package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/importer"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/ledger"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/report"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/summary"
)

// parseAsOf parses a -d flag value; empty means today.
func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return models.Day(time.Now()), nil
	}
	return importer.ParseDate(s)
}

// importCmd holds the flags for the 'import' subcommand.
type importCmd struct {
	debts      string
	repayments string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import debts and repayments from CSV files" }
func (*importCmd) Usage() string {
	return `debtctl import [-debts <file>] [-repayments <file>]

  Imports the debts file first, then the repayments file. A repayment's debtId may
  refer to a debt of the same session by its id column (or row number).
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.debts, "debts", "", "Debts CSV file")
	f.StringVar(&c.repayments, "repayments", "", "Repayments CSV file")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.debts == "" && c.repayments == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one of -debts or -repayments is required")
		return subcommands.ExitUsageError
	}

	var debtsCSV, repaymentsCSV io.Reader
	if c.debts != "" {
		file, err := os.Open(c.debts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening debts file: %v\n", err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		debtsCSV = file
	}
	if c.repayments != "" {
		file, err := os.Open(c.repayments)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening repayments file: %v\n", err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		repaymentsCSV = file
	}

	l, st, err := openLedger(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	res, err := l.Import(ctx, *userFlag, debtsCSV, repaymentsCSV)
	if res != nil {
		printMarkdown(report.Import(res))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// exportCmd holds the flags for the 'export' subcommand.
type exportCmd struct {
	debts      string
	repayments string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export debts and repayments to CSV files" }
func (*exportCmd) Usage() string {
	return `debtctl export [-debts <file>] [-repayments <file>]

  Writes files that 'debtctl import' reads back.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.debts, "debts", "debts.csv", "Debts CSV file to write")
	f.StringVar(&c.repayments, "repayments", "repayments.csv", "Repayments CSV file to write")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, st, err := openLedger(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	debts, err := l.ListDebts(ctx, *userFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing debts: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := writeFile(c.debts, debts, importer.ExportDebts); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", c.debts, err)
		return subcommands.ExitFailure
	}
	if err := writeFile(c.repayments, debts, importer.ExportRepayments); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", c.repayments, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Exported %d debts to %s and %s\n", len(debts), c.debts, c.repayments)
	return subcommands.ExitSuccess
}

func writeFile(name string, debts []*models.Debt, write func(io.Writer, []*models.Debt) error) error {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := write(file, debts); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// listCmd holds the flags for the 'list' subcommand.
type listCmd struct {
	date   string
	status string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list debts with their balances" }
func (*listCmd) Usage() string {
	return `debtctl list [-d <date>] [-status <status>]

  Lists debts with interest, repayments and the remaining amount at the given date.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "As-of date (YYYY-MM-DD, MM/DD/YYYY or DD-MM-YYYY). Defaults to today.")
	f.StringVar(&c.status, "status", "", "Only list debts presented with this status")
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := parseAsOf(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	var want models.DebtStatus
	if c.status != "" {
		var ok bool
		if want, ok = models.ParseStatus(c.status); !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown status %q\n", c.status)
			return subcommands.ExitUsageError
		}
	}

	l, st, err := openLedger(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	debts, err := l.ListDebts(ctx, *userFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing debts: %v\n", err)
		return subcommands.ExitFailure
	}
	var views []ledger.DebtView
	for _, v := range ledger.Views(debts, on) {
		if want == "" || v.EffectiveStatus == want {
			views = append(views, v)
		}
	}
	printMarkdown(report.Debts(views, cfg.DefaultCurrency))
	return subcommands.ExitSuccess
}

// summaryCmd holds the flags for the 'summary' subcommand.
type summaryCmd struct {
	date string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display portfolio totals" }
func (*summaryCmd) Usage() string {
	return `debtctl summary [-d <date>]

  Displays principal, accrued interest, repaid and outstanding totals.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "As-of date. Defaults to today.")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := parseAsOf(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	l, st, err := openLedger(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	debts, err := l.ListDebts(ctx, *userFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing debts: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.Summary(summary.Summarize(debts, on), on, cfg.DefaultCurrency))
	return subcommands.ExitSuccess
}

// sectionsCmd holds the flags for the 'sections' subcommand.
type sectionsCmd struct {
	date string
}

func (*sectionsCmd) Name() string     { return "sections" }
func (*sectionsCmd) Synopsis() string { return "display debts grouped by status with subtotals" }
func (*sectionsCmd) Usage() string {
	return `debtctl sections [-d <date>]

  Groups debts by the status presented at the given date.
`
}

func (c *sectionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "As-of date. Defaults to today.")
}

func (c *sectionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := parseAsOf(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	l, st, err := openLedger(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	debts, err := l.ListDebts(ctx, *userFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing debts: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(report.Sections(summary.Sections(debts, on), on, cfg.DefaultCurrency))
	return subcommands.ExitSuccess
}
