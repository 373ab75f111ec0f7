package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finapi/pkg/bootstrap"
	"finapi/pkg/config"
	"finapi/pkg/logx"
)

// setupPostgresServer runs the API against DB_DSN. Integration tests are
// opt-in: set DB_DSN_TEST=1 and DB_DSN to run them.
func setupPostgresServer(t *testing.T) *testAPI {
	t.Helper()
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	cfg, err := config.Parse()
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.DataBackend = config.BackendPostgres
	cfg.AutoMigrate = true
	st, err := bootstrap.OpenStore(context.Background(), cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return setupServer(t, st)
}

func TestPostgresFullFlow(t *testing.T) {
	api := setupPostgresServer(t)
	email := fmt.Sprintf("it-%d@example.com", time.Now().UnixNano())
	tok := api.register(email).Token

	from := api.createAccount(tok, "Checking", "100")
	to := api.createAccount(tok, "Savings", "0")
	api.createTransaction(tok, map[string]any{"account_id": from, "category_id": api.salary, "amount": "1000", "type": "income"})
	api.createTransaction(tok, map[string]any{"account_id": from, "category_id": api.food, "transfer_account_id": to, "amount": "250.50", "type": "transfer"})

	if got := api.balance(tok, from); !got.Equal(decimal.RequireFromString("849.5")) {
		t.Fatalf("source balance=%s", got)
	}
	if got := api.balance(tok, to); !got.Equal(decimal.RequireFromString("250.5")) {
		t.Fatalf("destination balance=%s", got)
	}
	decode(t, api.do(http.MethodDelete, fmt.Sprintf("/api/accounts/%d", to), nil, tok), http.StatusBadRequest, nil)

	other := api.register("other-" + email).Token
	decode(t, api.do(http.MethodGet, fmt.Sprintf("/api/accounts/%d", from), nil, other), http.StatusNotFound, nil)
	decode(t, api.do(http.MethodGet, "/api/analytics/dashboard", nil, tok), http.StatusOK, nil)
}

// concurrently sends each request from its own goroutine and returns the
// status codes in request order.
func (a *testAPI) concurrently(token string, reqs []func() (string, string, any)) []int {
	codes := make([]int, len(reqs))
	var wg sync.WaitGroup
	for i, build := range reqs {
		method, path, body := build()
		var r io.Reader
		if body != nil {
			b, _ := json.Marshal(body)
			r = bytes.NewReader(b)
		}
		wg.Add(1)
		go func(i int, r io.Reader) {
			defer wg.Done()
			codes[i] = performRequest(a.r, method, path, r, token, "application/json").Code
		}(i, r)
	}
	wg.Wait()
	return codes
}

func TestPostgresConcurrentLedgerMutations(t *testing.T) {
	api := setupPostgresServer(t)
	tok := api.register(fmt.Sprintf("conc-%d@example.com", time.Now().UnixNano())).Token

	a := api.createAccount(tok, "Checking", "1000")
	b := api.createAccount(tok, "Savings", "1000")
	var seeded []uint
	for i := 0; i < 8; i++ {
		seeded = append(seeded, api.createTransaction(tok, map[string]any{"account_id": a, "category_id": api.food, "amount": "5", "type": "expense"}))
	}

	var reqs []func() (string, string, any)
	for i := 0; i < 16; i++ {
		from, to := a, b
		if i%2 == 1 {
			from, to = b, a
		}
		amount := "2.25"
		if i%4 < 2 {
			amount = "1"
		}
		reqs = append(reqs, func() (string, string, any) {
			return http.MethodPost, "/api/transactions", map[string]any{"account_id": from, "category_id": api.food, "transfer_account_id": to, "amount": amount, "type": "transfer"}
		})
	}
	for _, id := range seeded {
		reqs = append(reqs, func() (string, string, any) {
			return http.MethodDelete, fmt.Sprintf("/api/transactions/%d", id), nil
		})
	}
	for i, code := range api.concurrently(tok, reqs) {
		if code != http.StatusCreated && code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, code)
		}
	}

	// Transfers in both directions cancel out; the expenses are all gone.
	if got := api.balance(tok, a); !got.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("balance a=%s want 1000", got)
	}
	if got := api.balance(tok, b); !got.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("balance b=%s want 1000", got)
	}
	for _, id := range []uint{a, b} {
		var out struct {
			Repaired bool `json:"repaired"`
		}
		decode(t, api.do(http.MethodPost, fmt.Sprintf("/api/accounts/%d/reconcile", id), nil, tok), http.StatusOK, &out)
		if out.Repaired {
			t.Fatalf("account %d needed a repair after concurrent writes", id)
		}
	}
}

func TestPostgresRefreshTokenIsSingleUse(t *testing.T) {
	api := setupPostgresServer(t)
	sess := api.register(fmt.Sprintf("refresh-%d@example.com", time.Now().UnixNano()))

	var reqs []func() (string, string, any)
	for i := 0; i < 8; i++ {
		reqs = append(reqs, func() (string, string, any) {
			return http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": sess.RefreshToken}
		})
	}
	granted := 0
	for _, code := range api.concurrently("", reqs) {
		switch code {
		case http.StatusOK:
			granted++
		case http.StatusUnauthorized:
		default:
			t.Fatalf("refresh status=%d", code)
		}
	}
	if granted != 1 {
		t.Fatalf("refresh token was spent %d times", granted)
	}
}

func TestMigrateCommand(t *testing.T) {
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	cfg, err := config.Parse()
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.DataBackend = config.BackendPostgres
	if err := bootstrap.Migrate(context.Background(), cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// a second run has nothing to apply
	if err := bootstrap.Migrate(context.Background(), cfg); err != nil {
		t.Fatalf("migrate again: %v", err)
	}
}
