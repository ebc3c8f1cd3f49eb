// Command fintrackctl administers a fintrack SQLite ledger from the shell.
package main

import (
	"github.com/alecthomas/kong"

	"fintrack/internal/cli"
)

// Globals holds options shared by every command.
type Globals struct {
	DB       string `name:"db" env:"SQLITE_DB_PATH" default:"./data/fintrack.db" help:"Path to the SQLite ledger."`
	LogLevel string `name:"log-level" env:"LOG_LEVEL" default:"warn" help:"Log level (debug, info, warn, error)."`
}

var ctl struct {
	Globals `embed:""`

	Migrate       migrateCmd       `cmd:"" help:"Apply pending schema migrations and print the schema version."`
	ProvisionUser provisionUserCmd `cmd:"" name:"provision-user" help:"Create or refresh a user profile."`
	List          listCmd          `cmd:"" help:"List an owner's transactions."`
	Summary       summaryCmd       `cmd:"" help:"Print an owner's totals, category breakdown and monthly trend."`
	IssueToken    issueTokenCmd    `cmd:"" name:"issue-token" help:"Sign a bearer token for an owner."`
}

func main() {
	cli.LoadEnvFile()
	ctx := kong.Parse(&ctl,
		kong.Name("fintrackctl"),
		kong.Description("Administer a fintrack ledger."),
		kong.UsageOnError(),
	)
	cli.SetupLogger(ctl.LogLevel, "text", "cli")
	err := ctx.Run(&ctl.Globals)
	ctx.FatalIfErrorf(err)
}
