package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	ports "fintrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultTabPrefix = "Ledger"

// Client exports ledgers into one spreadsheet, one tab per owner.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabPrefix     string
}

var _ ports.LedgerExporter = (*Client)(nil)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	TabPrefix       string
}

// New builds a client from explicit configuration. Extra options are passed
// to the Sheets service (endpoint overrides in tests).
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.TabPrefix == "" {
		cfg.TabPrefix = defaultTabPrefix
	}

	if len(opts) == 0 {
		credentialsJSON, err := loadCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		tabPrefix:     cfg.TabPrefix,
	}, nil
}

// NewFromEnv creates a client from GOOGLE_SPREADSHEET_ID and service account
// credentials in GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS. EXPORT_SHEET_PREFIX names the tabs.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Config{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
		TabPrefix:       strings.TrimSpace(os.Getenv("EXPORT_SHEET_PREFIX")),
	})
}

func loadCredentials(cfg Config) ([]byte, error) {
	file := cfg.CredentialsFile
	if cfg.CredentialsJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case cfg.CredentialsJSON != "":
		return []byte(cfg.CredentialsJSON), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportOwner replaces the owner's tab with the current ledger and summary.
func (c *Client) ExportOwner(ctx context.Context, ownerID string, txs []core.Transaction, sum core.Summary) error {
	tab := ports.TabName(c.tabPrefix, ownerID)

	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, quoteRange(tab, "A:Z"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear tab %q: %w", tab, err)
	}

	rows := ports.Rows(txs, sum)
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		values[i] = make([]interface{}, len(r))
		for j, cell := range r {
			values[i][j] = textCell(cell)
		}
	}

	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoteRange(tab, "A1"), vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("write tab %q: %w", tab, err)
	}

	slog.InfoContext(ctx, "Ledger exported to Google Sheets",
		applog.FieldComponent, applog.ComponentSheets,
		applog.FieldOwnerID, ownerID,
		applog.FieldSheet, tab,
		applog.FieldRows, len(values))
	return nil
}

// ensureTab adds the tab when the spreadsheet does not have it yet.
func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %q: %w", tab, err)
	}
	return nil
}

func quoteRange(tab, cells string) string {
	return "'" + tab + "'!" + cells
}

// textCell stops user text from being evaluated as a formula under
// USER_ENTERED input. Plain decimals pass through so amounts stay numeric.
func textCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '@':
		return "'" + s
	case '-':
		if _, err := core.ParseAmount(s); err != nil {
			return "'" + s
		}
	}
	return s
}
