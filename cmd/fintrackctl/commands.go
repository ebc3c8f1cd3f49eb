package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

var stdout io.Writer = os.Stdout

func openLedger(g *Globals) (*services.LedgerService, error) {
	repo, err := storage.NewSQLiteRepository(g.DB)
	if err != nil {
		return nil, err
	}
	return services.NewLedgerService(repo, nil), nil
}

type migrateCmd struct{}

func (migrateCmd) Run(g *Globals) error {
	if err := storage.RunMigrations(g.DB); err != nil {
		return err
	}
	version, dirty, err := storage.SchemaVersion(g.DB)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema version %d (dirty=%t)\n", version, dirty)
	return nil
}

type provisionUserCmd struct {
	ID    string `arg:"" help:"Identity provider subject of the user."`
	Email string `help:"Email address."`
	Name  string `help:"Display name."`
}

func (c provisionUserCmd) Run(g *Globals) error {
	ledger, err := openLedger(g)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if err := ledger.ProvisionUser(context.Background(), core.Owner{ID: c.ID, Email: c.Email, Name: c.Name}); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "provisioned %s\n", c.ID)
	return nil
}

// FilterFlags mirrors the query parameters of the HTTP listing.
type FilterFlags struct {
	Category string `help:"Exact category."`
	Type     string `help:"INCOME or EXPENSE."`
	From     string `help:"First date, YYYY-MM-DD."`
	To       string `help:"Last date, YYYY-MM-DD."`
	Search   string `help:"Case-insensitive text in description or category."`
}

func (f FilterFlags) filters() (core.Filters, error) {
	out := core.Filters{Category: f.Category, Search: f.Search}
	if f.Type != "" {
		t, err := core.ParseTransactionType(f.Type)
		if err != nil {
			return core.Filters{}, err
		}
		out.Type = t
	}
	var err error
	if f.From != "" {
		if out.StartDate, err = core.ParseDate(f.From); err != nil {
			return core.Filters{}, err
		}
	}
	if f.To != "" {
		if out.EndDate, err = core.ParseDate(f.To); err != nil {
			return core.Filters{}, err
		}
	}
	return out, nil
}

type listCmd struct {
	Owner string `arg:"" help:"Owner id."`
	Limit int    `help:"Maximum rows, 0 for all." default:"0"`
	FilterFlags `embed:""`
}

func (c listCmd) Run(g *Globals) error {
	f, err := c.filters()
	if err != nil {
		return err
	}
	f.Limit = c.Limit

	ledger, err := openLedger(g)
	if err != nil {
		return err
	}
	defer ledger.Close()

	txs, err := ledger.List(context.Background(), core.Owner{ID: c.Owner}, f)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tCATEGORY\tAMOUNT\tDESCRIPTION\tID")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.Date, tx.Type, tx.Category, core.FormatAmount(tx.Amount), tx.Description, tx.ID)
	}
	return tw.Flush()
}

type summaryCmd struct {
	Owner string `arg:"" help:"Owner id."`
	FilterFlags `embed:""`
}

func (c summaryCmd) Run(g *Globals) error {
	f, err := c.filters()
	if err != nil {
		return err
	}

	ledger, err := openLedger(g)
	if err != nil {
		return err
	}
	defer ledger.Close()

	sum, err := ledger.Summary(context.Background(), core.Owner{ID: c.Owner}, f)
	if err != nil {
		return err
	}
	return printSummary(stdout, sum)
}

func printSummary(w io.Writer, sum core.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Income\t%s\n", core.FormatUSD(sum.Income))
	fmt.Fprintf(tw, "Expense\t%s\n", core.FormatUSD(sum.Expense))
	fmt.Fprintf(tw, "Balance\t%s\n", core.FormatUSD(sum.Balance))
	fmt.Fprintf(tw, "Transactions\t%d\n", sum.Count)

	if len(sum.Categories) > 0 {
		fmt.Fprintln(tw, "\nCATEGORY\tSPENT")
		for _, c := range sum.Categories {
			fmt.Fprintf(tw, "%s\t%s\n", c.Category, core.FormatUSD(c.Total))
		}
	}
	if len(sum.Trend) > 0 {
		fmt.Fprintln(tw, "\nMONTH\tINCOME\tEXPENSE\tNET")
		for _, m := range sum.Trend {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Label, core.FormatUSD(m.Income), core.FormatUSD(m.Expense), core.FormatUSD(m.Net))
		}
	}
	return tw.Flush()
}

type issueTokenCmd struct {
	Owner  string        `arg:"" help:"Owner id placed in the token subject."`
	Email  string        `help:"Email claim."`
	Name   string        `help:"Name claim."`
	TTL    time.Duration `name:"ttl" default:"24h" help:"Token lifetime."`
	Secret string        `env:"AUTH_JWT_SECRET" required:"" help:"HMAC signing secret."`
	Issuer string        `env:"AUTH_JWT_ISSUER" help:"Issuer claim."`
}

func (c issueTokenCmd) Run(*Globals) error {
	signer, err := auth.NewJWTResolver(c.Secret, c.Issuer)
	if err != nil {
		return err
	}
	token, err := signer.Sign(core.Owner{ID: c.Owner, Email: c.Email, Name: c.Name}, c.TTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
