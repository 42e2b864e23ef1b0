package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"wagerbot/internal/api"
	"wagerbot/internal/database"
	"wagerbot/internal/wager"
	"wagerbot/pkg/config"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestEnv(t *testing.T) (*wager.Manager, *database.Store, http.Handler) {
	t.Helper()
	st, err := database.Open(context.Background(), config.DatabaseConfig{
		Type:       "sqlite",
		ConnString: filepath.Join(t.TempDir(), "wagers.db"),
	}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	m := wager.NewManager(st, nil)
	return m, st, api.NewServer(m, st, nil).Router()
}

func seedWager(t *testing.T, m *wager.Manager) *wager.Wager {
	t.Helper()
	w, err := m.Create(context.Background(), wager.CreateParams{
		CreatorID:   "alice",
		Category:    wager.CategoryProp,
		BaseAmount:  d("20"),
		Description: "It rains tomorrow",
		OddsA:       "3.0",
		OddsB:       "1.5",
	})
	if err != nil {
		t.Fatalf("seed wager: %v", err)
	}
	return w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	_, _, router := newTestEnv(t)
	rec := get(t, router, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	down := api.NewServer(nil, downPinger{}, nil).Router()
	if rec := get(t, down, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, expected 503", rec.Code)
	}
}

func TestGetWager(t *testing.T) {
	m, _, router := newTestEnv(t)
	w := seedWager(t, m)

	rec := get(t, router, "/api/v1/wagers/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var got wager.Wager
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ID != w.ID || got.Status != wager.StatusPending {
		t.Errorf("unexpected wager %+v", got)
	}
	if !got.SideB.Stake.Equal(d("40")) || !got.SideA.ToWin.Equal(d("40")) {
		t.Errorf("stakes not balanced: A %+v B %+v", got.SideA, got.SideB)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/wagers/99", http.StatusNotFound},
		{"/api/v1/wagers/abc", http.StatusBadRequest},
		{"/api/v1/wagers/0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := get(t, router, tt.path); rec.Code != tt.status {
			t.Errorf("%s: status = %d, expected %d", tt.path, rec.Code, tt.status)
		}
	}
}

func TestListWagers(t *testing.T) {
	m, _, router := newTestEnv(t)

	rec := get(t, router, "/api/v1/wagers")
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Errorf("empty list: %d %q", rec.Code, rec.Body)
	}

	seedWager(t, m)
	seedWager(t, m)
	rec = get(t, router, "/api/v1/wagers?limit=1")
	var list []wager.Wager
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != 2 {
		t.Errorf("expected newest wager only, got %+v", list)
	}

	for _, bad := range []string{"0", "-1", "500", "x"} {
		if rec := get(t, router, "/api/v1/wagers?limit="+bad); rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d", bad, rec.Code)
		}
	}
}

func TestStatsHistoryLeaderboard(t *testing.T) {
	m, st, router := newTestEnv(t)
	ctx := context.Background()
	w := seedWager(t, m)
	m.JoinSide(ctx, w.ID, "alice", "Alice", wager.SideA)
	m.JoinSide(ctx, w.ID, "bob", "Bob", wager.SideB)
	err := st.WithTx(ctx, func(tx wager.Tx) error {
		_, err := m.Resolve(ctx, tx, w.ID, wager.SideA)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := get(t, router, "/api/v1/users/alice/stats")
	var stats struct {
		UserID    string          `json:"userId"`
		Wins      int             `json:"wins"`
		NetProfit decimal.Decimal `json:"netProfit"`
		WinRate   string          `json:"winRate"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.UserID != "alice" || stats.Wins != 1 || !stats.NetProfit.Equal(d("40")) || stats.WinRate != "100.0" {
		t.Errorf("unexpected stats %+v", stats)
	}

	rec = get(t, router, "/api/v1/users/nobody/stats")
	if rec.Code != http.StatusOK {
		t.Errorf("unknown user: status = %d", rec.Code)
	}

	rec = get(t, router, "/api/v1/users/bob/history")
	var hist []wager.Wager
	json.NewDecoder(rec.Body).Decode(&hist)
	if len(hist) != 1 || hist[0].WinningSide != wager.SideA {
		t.Errorf("unexpected history %+v", hist)
	}

	rec = get(t, router, "/api/v1/leaderboard")
	var board []wager.UserStats
	json.NewDecoder(rec.Body).Decode(&board)
	if len(board) != 2 || board[0].UserID != "alice" || board[1].UserID != "bob" {
		t.Errorf("unexpected leaderboard %+v", board)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, router := newTestEnv(t)
	get(t, router, "/healthz")
	rec := get(t, router, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
