// Package report renders debts, summaries and import results as markdown.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/ledger"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/summary"
	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"
)

// ErrorPreview is the number of row errors listed before collapsing the rest.
const ErrorPreview = 10

// Money formats amount in currency, rounded half-up to the currency's minor unit.
func Money(amount decimal.Decimal, currency string) string {
	// money.New never returns a nil currency, unknown codes get a generic one.
	cur := money.New(0, currency).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// Summary renders portfolio totals.
func Summary(s summary.Summary, asOf time.Time, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Debt Summary on %s", asOf.Format(models.DateFormat)))
	doc.Table(md.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Debts", fmt.Sprint(s.TotalDebts)},
			{"Principal", Money(s.TotalPrincipal, currency)},
			{"Interest Accrued", Money(s.TotalInterestAccrued, currency)},
			{"Repaid", Money(s.TotalRepaid, currency)},
			{md.Bold("Outstanding"), md.Bold(Money(s.TotalOutstanding, currency))},
		},
	})
	return doc.String()
}

// Sections renders one table per status section.
func Sections(sections []summary.Section, asOf time.Time, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Debts by Status on %s", asOf.Format(models.DateFormat)))
	if len(sections) == 0 {
		doc.PlainText("No debts.")
		return doc.String()
	}
	for _, sec := range sections {
		doc.H2(fmt.Sprintf("%s (%d)", sec.Status, len(sec.Debts)))
		table := md.TableSet{Header: []string{"Borrower", "Lent", "Due", "Amount", "Remaining"}}
		for _, d := range sec.Debts {
			b := ledger.ComputeDebt(d, asOf)
			table.Rows = append(table.Rows, []string{
				d.BorrowerName,
				d.LentDate.Format(models.DateFormat),
				dueDate(d),
				Money(d.Amount, currency),
				Money(b.RemainingAmount, currency),
			})
		}
		table.Rows = append(table.Rows, []string{
			md.Bold("Subtotal"), "", "",
			md.Bold(Money(sec.TotalAmount, currency)),
			md.Bold(Money(sec.TotalRemaining, currency)),
		})
		doc.Table(table)
	}
	return doc.String()
}

// Debts renders a list of debt views.
func Debts(views []ledger.DebtView, currency string) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Debts")
	table := md.TableSet{Header: []string{"ID", "Borrower", "Status", "Amount", "Interest", "Repaid", "Remaining", "Progress"}}
	for _, v := range views {
		table.Rows = append(table.Rows, []string{
			v.ID.String()[:8],
			v.BorrowerName,
			string(v.EffectiveStatus),
			Money(v.Amount, currency),
			Money(v.Balance.InterestAmount, currency),
			Money(v.Balance.TotalRepaid, currency),
			Money(v.Balance.RemainingAmount, currency),
			v.ProgressPercent.StringFixed(0) + "%",
		})
	}
	doc.Table(table)
	return doc.String()
}

// Import renders both batches of an import session.
func Import(res *ledger.ImportResult) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1("Import Result")
	batch(doc, "Debts", res.Debts)
	batch(doc, "Repayments", res.Repayments)
	return doc.String()
}

func batch(doc *md.Markdown, title string, b *models.ImportBatchResult) {
	if b == nil {
		return
	}
	doc.H2(title)
	doc.PlainText(fmt.Sprintf("%d imported, %d skipped.", b.ImportedCount, b.SkippedCount))

	shown, more := b.Preview(ErrorPreview)
	if len(shown) > 0 {
		table := md.TableSet{Header: []string{"Row", "Error", "Detail"}}
		for _, e := range shown {
			table.Rows = append(table.Rows, []string{fmt.Sprint(e.Row), string(e.Error), e.Message})
		}
		doc.Table(table)
	}
	if more > 0 {
		doc.PlainText(fmt.Sprintf("+%d more errors", more))
	}
	if len(b.Warnings) > 0 {
		doc.H3("Warnings")
		table := md.TableSet{Header: []string{"Row", "Warning", "Detail"}}
		for _, w := range b.Warnings {
			table.Rows = append(table.Rows, []string{fmt.Sprint(w.Row), string(w.Error), w.Message})
		}
		doc.Table(table)
	}
}

func dueDate(d *models.Debt) string {
	if d.DueDate == nil {
		return "-"
	}
	return d.DueDate.Format(models.DateFormat)
}
