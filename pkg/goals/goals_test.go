package goals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finapi/models"
	"finapi/pkg/apperr"
	"finapi/pkg/events"
	"finapi/pkg/store/memstore"
)

var now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T) (*Service, *events.Memory, uint, uint) {
	t.Helper()
	st := memstore.New()
	var ids []uint
	for _, email := range []string{"ana@example.com", "bo@example.com"} {
		u := &models.User{Name: "u", Email: email}
		if err := st.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		ids = append(ids, u.ID)
	}
	pub := &events.Memory{}
	svc := NewService(st, events.NewEmitter(pub, nil), nil)
	svc.SetClock(func() time.Time { return now })
	return svc, pub, ids[0], ids[1]
}

func create(t *testing.T, svc *Service, user uint, target string, days int) *View {
	t.Helper()
	v, err := svc.Create(context.Background(), user, Input{Name: " Trip ", TargetAmount: dec(target), TargetDate: now.AddDate(0, 0, days)})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	return v
}

func TestProgress(t *testing.T) {
	g := &models.Goal{TargetAmount: dec("1000"), CurrentAmount: dec("250")}
	if got := Progress(g); got != 25.0 {
		t.Fatalf("expected 25 got %v", got)
	}
	if got := Progress(&models.Goal{CurrentAmount: dec("5")}); got != 0 {
		t.Fatalf("zero target should give 0, got %v", got)
	}
	if got := Progress(&models.Goal{TargetAmount: dec("3"), CurrentAmount: dec("1")}); got != 33.33 {
		t.Fatalf("expected 33.33 got %v", got)
	}
}

func TestContributeCompletesOnce(t *testing.T) {
	g := &models.Goal{TargetAmount: dec("100"), CurrentAmount: dec("60"), Status: models.GoalActive}
	done, err := Contribute(g, dec("30"))
	if err != nil || done || g.Status != models.GoalActive {
		t.Fatalf("below target: done=%v status=%s err=%v", done, g.Status, err)
	}
	done, err = Contribute(g, dec("10"))
	if err != nil || !done || g.Status != models.GoalCompleted {
		t.Fatalf("at target: done=%v status=%s err=%v", done, g.Status, err)
	}
	if _, err := Contribute(g, dec("1")); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("completed goal must reject contributions, got %v", err)
	}
	if !g.CurrentAmount.Equal(dec("100")) {
		t.Fatalf("rejected contribution changed amount to %s", g.CurrentAmount)
	}
}

func TestContributeRejectsBadAmounts(t *testing.T) {
	for _, amt := range []string{"0", "-1", "0.001"} {
		g := &models.Goal{TargetAmount: dec("100"), Status: models.GoalActive}
		if _, err := Contribute(g, dec(amt)); apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("%s: expected validation error, got %v", amt, err)
		}
	}
	paused := &models.Goal{TargetAmount: dec("100"), Status: models.GoalPaused}
	if _, err := Contribute(paused, dec("5")); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("paused goal must reject contributions, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.GoalStatus
		ok       bool
	}{
		{models.GoalActive, models.GoalPaused, true},
		{models.GoalPaused, models.GoalActive, true},
		{models.GoalActive, models.GoalCancelled, true},
		{models.GoalPaused, models.GoalCancelled, true},
		{models.GoalCompleted, models.GoalActive, false},
		{models.GoalCancelled, models.GoalActive, false},
		{models.GoalActive, models.GoalCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v", tc.from, tc.to, tc.ok)
		}
	}
}

func TestServiceContribute(t *testing.T) {
	svc, pub, user, _ := newService(t)
	ctx := context.Background()
	g := create(t, svc, user, "1000", 90)
	if g.Name != "Trip" || g.Status != models.GoalActive || !g.CurrentAmount.IsZero() {
		t.Fatalf("unexpected new goal %+v", g)
	}

	res, err := svc.Contribute(ctx, user, g.ID, dec("250"))
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if res.Completed || res.Goal.Progress != 25 {
		t.Fatalf("unexpected result %+v", res)
	}
	res, err = svc.Contribute(ctx, user, g.ID, dec("750"))
	if err != nil || !res.Completed || res.Goal.Status != models.GoalCompleted {
		t.Fatalf("expected completion, got %+v err=%v", res, err)
	}
	if _, err := svc.Contribute(ctx, user, g.ID, dec("1")); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	want := []events.Type{events.GoalContributed, events.GoalContributed, events.GoalCompleted}
	got := pub.Types()
	if len(got) != len(want) {
		t.Fatalf("unexpected events %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s got %s", i, want[i], got[i])
		}
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, user, _ := newService(t)
	ctx := context.Background()
	cases := []Input{
		{Name: "", TargetAmount: dec("10"), TargetDate: now.AddDate(0, 1, 0)},
		{Name: "x", TargetAmount: dec("0"), TargetDate: now.AddDate(0, 1, 0)},
		{Name: "x", TargetAmount: dec("10"), TargetDate: now.AddDate(0, 0, -1)},
	}
	for i, in := range cases {
		if _, err := svc.Create(ctx, user, in); apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestUpdateStatusRules(t *testing.T) {
	svc, _, user, _ := newService(t)
	ctx := context.Background()
	g := create(t, svc, user, "500", 30)

	completed := models.GoalCompleted
	if _, err := svc.Update(ctx, user, g.ID, Patch{Status: &completed}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("completing through update must fail, got %v", err)
	}
	paused := models.GoalPaused
	v, err := svc.Update(ctx, user, g.ID, Patch{Status: &paused})
	if err != nil || v.Status != models.GoalPaused {
		t.Fatalf("pause: %v", err)
	}
	cancelled := models.GoalCancelled
	if _, err := svc.Update(ctx, user, g.ID, Patch{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	active := models.GoalActive
	if _, err := svc.Update(ctx, user, g.ID, Patch{Status: &active}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("cancelled goal must stay cancelled, got %v", err)
	}
	bogus := models.GoalStatus("someday")
	if _, err := svc.Update(ctx, user, g.ID, Patch{Status: &bogus}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("unknown status must fail, got %v", err)
	}
}

func TestLoweringTargetCompletesActiveGoal(t *testing.T) {
	svc, pub, user, _ := newService(t)
	ctx := context.Background()
	g := create(t, svc, user, "500", 30)
	if _, err := svc.Contribute(ctx, user, g.ID, dec("200")); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	target := dec("200")
	v, err := svc.Update(ctx, user, g.ID, Patch{TargetAmount: &target})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if v.Status != models.GoalCompleted || v.Progress != 100 {
		t.Fatalf("expected completed goal, got %+v", v)
	}
	types := pub.Types()
	if types[len(types)-1] != events.GoalCompleted {
		t.Fatalf("expected completion event, got %v", types)
	}
}

func TestUpdateKeepsPastTargetDateWhenUntouched(t *testing.T) {
	svc, _, user, _ := newService(t)
	ctx := context.Background()
	g := create(t, svc, user, "500", 10)
	svc.SetClock(func() time.Time { return now.AddDate(0, 0, 20) })
	name := "Renamed"
	if _, err := svc.Update(ctx, user, g.ID, Patch{Name: &name}); err != nil {
		t.Fatalf("rename after target date should succeed: %v", err)
	}
}

func TestListStatisticsAndOwnership(t *testing.T) {
	svc, _, user, other := newService(t)
	ctx := context.Background()
	a := create(t, svc, user, "1000", 30)
	create(t, svc, user, "1000", 60)
	if _, err := svc.Contribute(ctx, user, a.ID, dec("1000")); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	list, err := svc.List(ctx, user, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	st := list.Statistics
	if st.TotalGoals != 2 || st.ActiveGoals != 1 || st.CompletedGoals != 1 || st.OverallProgress != 50 {
		t.Fatalf("unexpected statistics %+v", st)
	}
	if !st.TotalTargetAmount.Equal(dec("2000")) || !st.TotalCurrentAmount.Equal(dec("1000")) {
		t.Fatalf("unexpected totals %+v", st)
	}
	active, _ := svc.List(ctx, user, models.GoalActive)
	if len(active.Goals) != 1 {
		t.Fatalf("status filter failed: %d", len(active.Goals))
	}

	if _, err := svc.Get(ctx, other, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Contribute(ctx, other, a.ID, dec("1")); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(ctx, other, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(ctx, user, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestUpcoming(t *testing.T) {
	svc, _, user, _ := newService(t)
	ctx := context.Background()
	late := create(t, svc, user, "10", 25)
	soon := create(t, svc, user, "10", 3)
	create(t, svc, user, "10", 45)

	goals, err := svc.Upcoming(ctx, user, DefaultUpcomingDays)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(goals) != 2 || goals[0].ID != soon.ID || goals[1].ID != late.ID {
		t.Fatalf("unexpected upcoming goals %+v", goals)
	}
	if _, err := svc.Upcoming(ctx, user, -1); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("negative days must fail")
	}
}
