package http

import (
	"encoding/json"
	"net/url"
	"testing"

	"fintrack/internal/core"
)

func TestParseFilters(t *testing.T) {
	q := url.Values{
		"category":   {" Rent "},
		"type":       {"expense"},
		"start_date": {"2026-01-01"},
		"end_date":   {"2026-01-31"},
		"search":     {"rent\x00"},
		"limit":      {"10000"},
	}
	f, err := parseFilters(q)
	if err != nil {
		t.Fatalf("parseFilters: %v", err)
	}
	if f.Category != "Rent" || f.Type != core.Expense || f.Search != "rent" {
		t.Fatalf("unexpected filters %+v", f)
	}
	if f.StartDate.String() != "2026-01-01" || f.EndDate.String() != "2026-01-31" {
		t.Fatalf("unexpected range %s..%s", f.StartDate, f.EndDate)
	}
	if f.Limit != maxListLimit {
		t.Fatalf("limit must be capped, got %d", f.Limit)
	}

	for _, bad := range []url.Values{
		{"type": {"transfer"}},
		{"end_date": {"2026-13-01"}},
		{"limit": {"ten"}},
	} {
		if _, err := parseFilters(bad); err == nil {
			t.Errorf("expected error for %v", bad)
		}
	}
}

func TestAmountFieldAcceptsNumberOrString(t *testing.T) {
	cases := map[string]string{
		`{"amount":12.5}`:    "12.5",
		`{"amount":"12,50"}`: "12,50",
		`{"amount":-3}`:      "-3",
	}
	for in, want := range cases {
		var req transactionRequest
		if err := json.Unmarshal([]byte(in), &req); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if string(req.Amount) != want {
			t.Errorf("%s: amount=%q want %q", in, req.Amount, want)
		}
	}
	var req transactionRequest
	if err := json.Unmarshal([]byte(`{"amount":true}`), &req); err == nil {
		t.Fatal("expected error for boolean amount")
	}
}

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"req_0123abcd", true},
		{"trace.id-1", true},
		{"", false},
		{"has space", false},
		{"<script>", false},
	}
	for _, tc := range tests {
		if got := validRequestID(tc.id); got != tc.want {
			t.Errorf("validRequestID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
