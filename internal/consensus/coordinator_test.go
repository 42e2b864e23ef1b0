package consensus_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wagerbot/internal/consensus"
	"wagerbot/internal/database"
	"wagerbot/internal/events"
	"wagerbot/internal/notify"
	"wagerbot/internal/wager"
	"wagerbot/pkg/config"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(dur time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(dur)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Notify(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) last(kind events.Kind) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}

type fixture struct {
	coord   *consensus.Coordinator
	manager *wager.Manager
	clock   *clock
	rec     *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := database.Open(context.Background(), config.DatabaseConfig{
		Type:       "sqlite",
		ConnString: filepath.Join(t.TempDir(), "wagers.db"),
	}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	clk := &clock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	m := wager.NewManager(st, nil, wager.WithClock(clk.Now), wager.WithNotifier(rec))
	c := consensus.New(st, m, nil,
		consensus.WithRequestTTL(24*time.Hour),
		consensus.WithNotifier(rec),
	)
	return &fixture{coord: c, manager: m, clock: clk, rec: rec}
}

// pending creates a wager with alice on the +150 side and bob on -200 still
// to join.
func (f *fixture) pending(t *testing.T) *wager.Wager {
	t.Helper()
	ctx := context.Background()
	w, err := f.manager.Create(ctx, wager.CreateParams{
		CreatorID:  "alice",
		Category:   wager.CategoryGame,
		BaseAmount: d("100"),
		OddsA:      "+150",
		OddsB:      "-200",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.manager.JoinSide(ctx, w.ID, "alice", "Alice", wager.SideA); err != nil {
		t.Fatal(err)
	}
	return w
}

// active returns a wager with alice on side A and bob on side B.
func (f *fixture) active(t *testing.T) *wager.Wager {
	t.Helper()
	w := f.pending(t)
	res, err := f.manager.JoinSide(context.Background(), w.ID, "bob", "Bob", wager.SideB)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Activated {
		t.Fatal("wager did not activate")
	}
	return res.Wager
}

func (f *fixture) status(t *testing.T, id int64) *wager.Wager {
	t.Helper()
	w, err := f.manager.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestCastVote_SingleVoteNeverCommits(t *testing.T) {
	f := newFixture(t)
	w := f.active(t)

	res, err := f.coord.CastVote(context.Background(), w.ID, "alice", wager.ChoiceA)
	if err != nil {
		t.Fatal(err)
	}
	if res.Committed {
		t.Error("one vote must not commit")
	}
	if len(res.PendingFrom) != 1 || res.PendingFrom[0] != "bob" {
		t.Errorf("pending from = %v, expected [bob]", res.PendingFrom)
	}
	if got := f.status(t, w.ID); got.Status != wager.StatusActive {
		t.Errorf("wager should stay active, got %s", got.Status)
	}
}

func TestCastVote_AgreementResolves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.active(t)

	if _, err := f.coord.CastVote(ctx, w.ID, "alice", wager.ChoiceB); err != nil {
		t.Fatal(err)
	}
	res, err := f.coord.CastVote(ctx, w.ID, "bob", wager.ChoiceB)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Committed || res.Outcome != wager.ChoiceB {
		t.Fatalf("expected commit on B, got %+v", res)
	}
	if res.Wager.Status != wager.StatusResolved || res.Wager.WinningSide != wager.SideB {
		t.Errorf("unexpected wager %s / %s", res.Wager.Status, res.Wager.WinningSide)
	}

	bob, _ := f.manager.Stats(ctx, "bob")
	alice, _ := f.manager.Stats(ctx, "alice")
	if !bob.NetProfit.Equal(d("100")) || bob.Wins != 1 {
		t.Errorf("bob stats %+v", bob)
	}
	if !alice.NetProfit.Equal(d("-100")) || alice.Losses != 1 {
		t.Errorf("alice stats %+v", alice)
	}

	e, ok := f.rec.last(events.WagerResolved)
	if !ok || !e.Committed || e.Outcome != "B" {
		t.Errorf("expected a committed wager_resolved event, got %+v", e)
	}

	if _, err := f.coord.CastVote(ctx, w.ID, "alice", wager.ChoiceA); !errors.Is(err, wager.ErrNotActive) {
		t.Errorf("late vote: expected ErrNotActive, got %v", err)
	}
}

func TestCastVote_SwitchingVoteReachesAgreement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.active(t)

	f.coord.CastVote(ctx, w.ID, "alice", wager.ChoiceA)
	res, err := f.coord.CastVote(ctx, w.ID, "bob", wager.ChoiceB)
	if err != nil {
		t.Fatal(err)
	}
	if res.Committed {
		t.Fatal("disagreeing votes must not commit")
	}
	if len(res.PendingFrom) != 1 || res.PendingFrom[0] != "alice" {
		t.Errorf("pending from = %v, expected [alice]", res.PendingFrom)
	}

	res, err = f.coord.CastVote(ctx, w.ID, "alice", wager.ChoiceB)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Committed || res.Wager.WinningSide != wager.SideB {
		t.Errorf("switched vote should commit B, got %+v", res)
	}
}

func TestCastVote_CancelAgreementLeavesStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.active(t)

	f.coord.CastVote(ctx, w.ID, "bob", wager.ChoiceCancel)
	res, err := f.coord.CastVote(ctx, w.ID, "alice", wager.ChoiceCancel)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Committed || res.Wager.Status != wager.StatusCancelled {
		t.Fatalf("expected cancellation, got %+v", res)
	}
	for _, user := range []string{"alice", "bob"} {
		s, _ := f.manager.Stats(ctx, user)
		if s.TotalWagers != 0 {
			t.Errorf("%s stats changed on cancel: %+v", user, s)
		}
	}
	if _, ok := f.rec.last(events.WagerCancelled); !ok {
		t.Error("expected a wager_cancelled event")
	}
}

func TestCastVote_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	active := f.active(t)
	pending := f.pending(t)

	tests := []struct {
		name     string
		wagerID  int64
		user     string
		choice   wager.Choice
		expected error
	}{
		{"outsider", active.ID, "carol", wager.ChoiceA, wager.ErrUnauthorized},
		{"pending wager", pending.ID, "alice", wager.ChoiceA, wager.ErrNotActive},
		{"bad choice", active.ID, "alice", "draw", wager.ErrInvalidChoice},
		{"missing wager", 424242, "alice", wager.ChoiceA, wager.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.coord.CastVote(ctx, tt.wagerID, tt.user, tt.choice)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestProposeResolution_ConfirmCommits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.active(t)

	req, err := f.coord.ProposeResolution(ctx, w.ID, "alice", wager.SideB)
	if err != nil {
		t.Fatal(err)
	}
	if !req.SideAConfirmed || req.SideBConfirmed {
		t.Errorf("proposer's side should be pre-confirmed, got %+v", req)
	}
	if !req.ExpiresAt.Equal(req.CreatedAt.Add(24 * time.Hour)) {
		t.Errorf("expires_at = %s", req.ExpiresAt)
	}

	own, err := f.coord.Confirm(ctx, req.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if own.Committed {
		t.Error("proposer confirming again must not commit")
	}

	res, err := f.coord.Confirm(ctx, req.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Committed || res.Wager.Status != wager.StatusResolved || res.Wager.WinningSide != wager.SideB {
		t.Errorf("expected resolution for B, got %+v", res)
	}

	if _, err := f.coord.Confirm(ctx, req.ID, "bob"); !errors.Is(err, wager.ErrNotFound) {
		t.Errorf("confirming a settled request: expected ErrNotFound, got %v", err)
	}
}

func TestPropose_DuplicateAndRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.active(t)
	pending := f.pending(t)

	if _, err := f.coord.ProposeResolution(ctx, w.ID, "alice", wager.SideA); err != nil {
		t.Fatal(err)
	}
	if _, err := f.coord.ProposeResolution(ctx, w.ID, "bob", wager.SideB); !errors.Is(err, wager.ErrDuplicateRequest) {
		t.Errorf("second proposal: expected ErrDuplicateRequest, got %v", err)
	}
	if _, err := f.coord.ProposeCancellation(ctx, w.ID, "bob"); !errors.Is(err, wager.ErrDuplicateRequest) {
		t.Errorf("cancel while a request is open: expected ErrDuplicateRequest, got %v", err)
	}
	if _, err := f.coord.ProposeResolution(ctx, w.ID, "carol", wager.SideA); !errors.Is(err, wager.ErrUnauthorized) {
		t.Errorf("outsider: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.coord.ProposeResolution(ctx, pending.ID, "alice", wager.SideA); !errors.Is(err, wager.ErrNotActive) {
		t.Errorf("pending wager: expected ErrNotActive, got %v", err)
	}
	if _, err := f.coord.ProposeResolution(ctx, w.ID, "alice", "C"); !errors.Is(err, wager.ErrInvalidSide) {
		t.Errorf("bad side: expected ErrInvalidSide, got %v", err)
	}
}

func TestConfirm_ExpiredRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.active(t)

	req, err := f.coord.ProposeResolution(ctx, w.ID, "alice", wager.SideA)
	if err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(25 * time.Hour)

	if _, err := f.coord.Confirm(ctx, req.ID, "bob"); !errors.Is(err, wager.ErrNotFound) {
		t.Errorf("expired request: expected ErrNotFound, got %v", err)
	}
	if got := f.status(t, w.ID); got.Status != wager.StatusActive {
		t.Errorf("expired confirm must not settle, got %s", got.Status)
	}

	// An expired request no longer blocks a fresh one.
	if _, err := f.coord.ProposeResolution(ctx, w.ID, "bob", wager.SideB); err != nil {
		t.Errorf("proposal after expiry: %v", err)
	}
}

func TestConfirm_Outsider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.active(t)

	req, _ := f.coord.ProposeResolution(ctx, w.ID, "bob", wager.SideB)
	if _, err := f.coord.Confirm(ctx, req.ID, "carol"); !errors.Is(err, wager.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.coord.Confirm(ctx, "no-such-request", "alice"); !errors.Is(err, wager.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProposeCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("pending wager cancels immediately", func(t *testing.T) {
		w := f.pending(t)
		if _, err := f.coord.ProposeCancellation(ctx, w.ID, "carol"); !errors.Is(err, wager.ErrUnauthorized) {
			t.Errorf("outsider: expected ErrUnauthorized, got %v", err)
		}
		res, err := f.coord.ProposeCancellation(ctx, w.ID, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Cancelled || res.Request != nil || res.Wager.Status != wager.StatusCancelled {
			t.Errorf("unexpected proposal %+v", res)
		}
	})

	t.Run("active wager needs the other side", func(t *testing.T) {
		w := f.active(t)
		res, err := f.coord.ProposeCancellation(ctx, w.ID, "bob")
		if err != nil {
			t.Fatal(err)
		}
		if res.Cancelled || res.Request == nil || res.Request.Kind != wager.RequestCancel {
			t.Fatalf("expected a cancel request, got %+v", res)
		}
		if e, ok := f.rec.last(events.CancellationProposed); !ok || len(e.PendingFrom) != 1 || e.PendingFrom[0] != "alice" {
			t.Errorf("unexpected proposal event %+v", e)
		}

		conf, err := f.coord.Confirm(ctx, res.Request.ID, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if !conf.Committed || conf.Wager.Status != wager.StatusCancelled {
			t.Errorf("expected cancellation, got %+v", conf)
		}
	})

	t.Run("settled wager", func(t *testing.T) {
		w := f.pending(t)
		f.coord.ProposeCancellation(ctx, w.ID, "alice")
		if _, err := f.coord.ProposeCancellation(ctx, w.ID, "alice"); !errors.Is(err, wager.ErrNotActive) {
			t.Errorf("expected ErrNotActive, got %v", err)
		}
	})
}

func TestCommitClearsOtherPaths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.active(t)

	req, err := f.coord.ProposeResolution(ctx, w.ID, "alice", wager.SideA)
	if err != nil {
		t.Fatal(err)
	}
	f.coord.CastVote(ctx, w.ID, "bob", wager.ChoiceA)
	res, err := f.coord.CastVote(ctx, w.ID, "alice", wager.ChoiceA)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Committed {
		t.Fatal("matching votes should commit")
	}

	if _, err := f.coord.Confirm(ctx, req.ID, "bob"); !errors.Is(err, wager.ErrNotFound) {
		t.Errorf("request should be cleared after commit, got %v", err)
	}

	alice, _ := f.manager.Stats(ctx, "alice")
	if alice.TotalWagers != 1 || !alice.NetProfit.Equal(d("150")) {
		t.Errorf("stats must be applied exactly once, got %+v", alice)
	}
}

func TestConcurrentConfirmsCommitOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.active(t)

	req, err := f.coord.ProposeResolution(ctx, w.ID, "alice", wager.SideA)
	if err != nil {
		t.Fatal(err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		commits int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.coord.Confirm(ctx, req.ID, "bob")
			if err != nil {
				if !errors.Is(err, wager.ErrNotFound) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if res.Committed {
				mu.Lock()
				commits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if commits != 1 {
		t.Errorf("expected exactly one commit, got %d", commits)
	}
	alice, _ := f.manager.Stats(ctx, "alice")
	if alice.TotalWagers != 1 {
		t.Errorf("stats applied %d times", alice.TotalWagers)
	}
}

func TestRequestExternalRef(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.active(t)

	req, _ := f.coord.ProposeResolution(ctx, w.ID, "alice", wager.SideA)
	if err := f.coord.AttachRequestRef(ctx, req.ID, "msg-9"); err != nil {
		t.Fatal(err)
	}
	got, err := f.coord.RequestByExternalRef(ctx, "msg-9")
	if err != nil || got.ID != req.ID {
		t.Errorf("lookup: %v %+v", err, got)
	}
	if _, err := f.coord.RequestByExternalRef(ctx, ""); !errors.Is(err, wager.ErrNotFound) {
		t.Errorf("empty ref: expected ErrNotFound, got %v", err)
	}
}

func TestCastVote_StalledSinkDoesNotDelay(t *testing.T) {
	rec := &recorder{}
	release := make(chan struct{})
	stalled := events.NotifierFunc(func(context.Context, events.Event) { <-release })
	q := notify.NewQueue("stalled", stalled, 8, nil)
	t.Cleanup(func() {
		close(release)
		q.Close(context.Background())
	})

	st, err := database.Open(context.Background(), config.DatabaseConfig{
		Type:       "sqlite",
		ConnString: filepath.Join(t.TempDir(), "wagers.db"),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	m := wager.NewManager(st, nil, wager.WithNotifier(events.Multi{rec, q}))
	c := consensus.New(st, m, nil, consensus.WithNotifier(events.Multi{rec, q}))

	ctx := context.Background()
	created, err := m.Create(ctx, wager.CreateParams{
		CreatorID:  "alice",
		Category:   wager.CategoryGame,
		BaseAmount: d("100"),
		OddsA:      "+150",
		OddsB:      "-200",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.JoinSide(ctx, created.ID, "alice", "Alice", wager.SideA); err != nil {
		t.Fatal(err)
	}
	if _, err := m.JoinSide(ctx, created.ID, "bob", "Bob", wager.SideB); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if _, err := c.CastVote(ctx, created.ID, "alice", wager.ChoiceA); err != nil {
		t.Fatal(err)
	}
	res, err := c.CastVote(ctx, created.ID, "bob", wager.ChoiceA)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("votes took %v with a stalled sink", elapsed)
	}
	if !res.Committed {
		t.Fatal("agreement did not commit")
	}
	if _, ok := rec.last(events.WagerResolved); !ok {
		t.Fatal("synchronous sink missed the resolution")
	}
}
