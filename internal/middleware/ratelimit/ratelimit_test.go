package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
)

func TestMemoryAllow(t *testing.T) {
	rl := NewMemory(Config{RequestsPerMinute: 3})
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow(ctx, "1.2.3.4"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := rl.Allow(ctx, "1.2.3.4"); ok {
		t.Fatal("fourth request in the window should be rejected")
	}
	if ok, _ := rl.Allow(ctx, "5.6.7.8"); !ok {
		t.Fatal("clients are limited independently")
	}

	now = now.Add(61 * time.Second)
	if ok, _ := rl.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatal("a new window resets the counter")
	}
}

func TestMemoryCleanup(t *testing.T) {
	rl := NewMemory(DefaultConfig())
	defer rl.Stop()
	rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	_, _ = rl.Allow(context.Background(), "a")
	now = now.Add(11 * time.Minute)
	rl.cleanupStaleEntries()
	if rl.ActiveClients() != 0 {
		t.Fatalf("stale entries should be removed, have %d", rl.ActiveClients())
	}
}

func TestRedisAllow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rl := NewRedis(db, Config{RequestsPerMinute: 2})
	now := time.Unix(1_800_000_000, 0)
	rl.now = func() time.Time { return now }
	key := "fintrack:ratelimit:user_1:30000000"
	ctx := context.Background()

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, 2*time.Minute).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectIncr(key).SetVal(3)

	for i, want := range []bool{true, true, false} {
		ok, err := rl.Allow(ctx, "user_1")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if ok != want {
			t.Fatalf("call %d: allowed=%v want %v", i, ok, want)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRedisFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rl := NewRedis(db, DefaultConfig())
	rl.now = func() time.Time { return time.Unix(60, 0) }

	mock.ExpectIncr("fintrack:ratelimit:x:1").SetErr(errors.New("connection refused"))
	ok, err := rl.Allow(context.Background(), "x")
	if err == nil || !ok {
		t.Fatalf("redis failure must allow and report, got ok=%v err=%v", ok, err)
	}
}

type stubLimiter struct {
	ok  bool
	err error
}

func (s stubLimiter) Allow(context.Context, string) (bool, error) { return s.ok, s.err }

func TestMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	key := func(*http.Request) string { return "k" }

	tests := []struct {
		name     string
		limiter  Limiter
		want     int
		wantErrs int
	}{
		{"allowed", stubLimiter{ok: true}, http.StatusNoContent, 0},
		{"limited", stubLimiter{ok: false}, http.StatusTooManyRequests, 0},
		{"limiter failure passes", stubLimiter{ok: true, err: errors.New("down")}, http.StatusNoContent, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := 0
			h := Middleware(tt.limiter, key, nil, func(*http.Request, error) { errs++ })(next)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/transactions", nil))
			if rr.Code != tt.want || errs != tt.wantErrs {
				t.Fatalf("status=%d errs=%d", rr.Code, errs)
			}
			if tt.want == http.StatusTooManyRequests && rr.Header().Get("Retry-After") != "60" {
				t.Fatalf("missing Retry-After")
			}
		})
	}
}
