package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"

	"fintrack/internal/core"
)

type fakeSheets struct {
	mu      sync.Mutex
	tabs    []string
	calls   []string
	written [][]interface{}
}

func (f *fakeSheets) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		path := r.URL.Path
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet123"):
			f.calls = append(f.calls, "get")
			sheets := make([]map[string]any, 0, len(f.tabs))
			for _, tab := range f.tabs {
				sheets = append(sheets, map[string]any{"properties": map[string]any{"title": tab}})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet123", "sheets": sheets})
		case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
			f.calls = append(f.calls, "addSheet")
			var req struct {
				Requests []struct {
					AddSheet struct {
						Properties struct {
							Title string `json:"title"`
						} `json:"properties"`
					} `json:"addSheet"`
				} `json:"requests"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			for _, rq := range req.Requests {
				f.tabs = append(f.tabs, rq.AddSheet.Properties.Title)
			}
			_, _ = io.WriteString(w, `{"spreadsheetId":"sheet123"}`)
		case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
			f.calls = append(f.calls, "clear")
			_, _ = io.WriteString(w, `{"spreadsheetId":"sheet123"}`)
		case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
			f.calls = append(f.calls, "update")
			if got := r.URL.Query().Get("valueInputOption"); got != "USER_ENTERED" {
				t.Errorf("valueInputOption = %q", got)
			}
			var vr struct {
				Values [][]interface{} `json:"values"`
			}
			_ = json.NewDecoder(r.Body).Decode(&vr)
			f.written = vr.Values
			_, _ = io.WriteString(w, `{"spreadsheetId":"sheet123"}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet123"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestExportOwnerCreatesTabAndWrites(t *testing.T) {
	fake := &fakeSheets{tabs: []string{"Sheet1"}}
	c := newTestClient(t, fake)

	txs := []core.Transaction{
		{Type: core.Expense, Amount: decimal.NewFromInt(50), Category: "Food & Drink", Date: core.NewDate(2026, 1, 15), Description: "=HYPERLINK()"},
	}
	if err := c.ExportOwner(context.Background(), "user_1", txs, core.Summarize(txs)); err != nil {
		t.Fatalf("ExportOwner: %v", err)
	}

	want := []string{"get", "addSheet", "clear", "update"}
	if strings.Join(fake.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", fake.calls, want)
	}
	if fake.tabs[len(fake.tabs)-1] != "Ledger user_1" {
		t.Fatalf("tab not created: %v", fake.tabs)
	}
	if len(fake.written) < 2 || fake.written[1][3] != "'=HYPERLINK()" {
		t.Fatalf("formula text must be escaped, got %v", fake.written)
	}
}

func TestExportOwnerReusesExistingTab(t *testing.T) {
	fake := &fakeSheets{tabs: []string{"Ledger user_1"}}
	c := newTestClient(t, fake)

	if err := c.ExportOwner(context.Background(), "user_1", nil, core.Summarize(nil)); err != nil {
		t.Fatalf("ExportOwner: %v", err)
	}
	for _, call := range fake.calls {
		if call == "addSheet" {
			t.Fatalf("existing tab must not be re-added: %v", fake.calls)
		}
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Fatalf("expected missing spreadsheet error, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := New(context.Background(), Config{SpreadsheetID: "x"}); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestTextCell(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"Lunch":     "Lunch",
		"=1+1":      "'=1+1",
		"+39 phone": "'+39 phone",
		"@user":     "'@user",
		"-25.00":    "-25.00",
		"-dash":     "'-dash",
	}
	for in, want := range cases {
		if got := textCell(in); got != want {
			t.Errorf("textCell(%q) = %q, want %q", in, got, want)
		}
	}
}
