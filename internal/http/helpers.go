package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

const (
	headerRequestID = "X-Request-ID"
	maxListLimit    = 500
)

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// validRequestID accepts caller supplied ids that are short and safe to log.
func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// withRequestID keeps a well-formed incoming X-Request-ID or assigns a new
// one, and echoes it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !validRequestID(id) {
			id = generateRequestID()
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}

func requestIDFromHeader(r *http.Request) string {
	return r.Header.Get(headerRequestID)
}

// parseFilters reads list filters from the query string. Unknown parameters
// are ignored.
func parseFilters(q url.Values) (core.Filters, error) {
	f := core.Filters{
		Category: sanitizeInput(q.Get("category")),
		Search:   sanitizeInput(q.Get("search")),
	}

	if v := strings.TrimSpace(q.Get("type")); v != "" {
		t, err := core.ParseTransactionType(v)
		if err != nil {
			return core.Filters{}, err
		}
		f.Type = t
	}

	for _, p := range []struct {
		name string
		dst  *core.Date
	}{
		{"start_date", &f.StartDate},
		{"end_date", &f.EndDate},
	} {
		if v := strings.TrimSpace(q.Get(p.name)); v != "" {
			d, err := core.ParseDate(v)
			if err != nil {
				return core.Filters{}, fmt.Errorf("%s: %w", p.name, err)
			}
			*p.dst = d
		}
	}

	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return core.Filters{}, fmt.Errorf("limit must be a non-negative integer, got %q", v)
		}
		f.Limit = min(n, maxListLimit)
	}

	return f, nil
}
