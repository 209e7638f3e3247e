package submission

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/intake/intake/internal/domain/formschema"
)

var dashNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func at(daysAgo, hour int) time.Time {
	return startOfDay(dashNow).AddDate(0, 0, -daysAgo).Add(time.Duration(hour) * time.Hour)
}

func tp(t time.Time) *time.Time { return &t }

func TestSummarize(t *testing.T) {
	activity := []Activity{
		{Status: StatusCompleted, SubmittedAt: at(0, 9), CompletedAt: tp(at(0, 9))},
		{Status: StatusCompleted, SubmittedAt: at(20, 9), CompletedAt: tp(at(0, 1))},
		{Status: StatusPending, SubmittedAt: at(3, 9)},
		{Status: StatusCompleted, SubmittedAt: at(6, 9), CompletedAt: tp(at(1, 9))},
		{Status: StatusPending, SubmittedAt: at(7, 9)},
		{Status: StatusPending, SubmittedAt: at(13, 9)},
	}
	completedToday, trend := summarize(startOfDay(dashNow), activity)
	if completedToday != 2 {
		t.Errorf("expected 2 completed today, got %d", completedToday)
	}
	// Three this week against two the week before.
	if trend != 50 {
		t.Errorf("expected +50%% trend, got %d", trend)
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		prev, cur, want int
	}{
		{0, 0, 0},
		{0, 5, 100},
		{4, 2, -50},
		{3, 4, 33},
		{2, 2, 0},
	}
	for _, tt := range tests {
		if got := percentChange(tt.prev, tt.cur); got != tt.want {
			t.Errorf("percentChange(%d, %d): expected %d, got %d", tt.prev, tt.cur, tt.want, got)
		}
	}
}

func TestCompletionRate(t *testing.T) {
	if got := completionRate(map[string]int{}); got != 0 {
		t.Errorf("empty: expected 0, got %d", got)
	}
	got := completionRate(map[string]int{StatusPending: 1, StatusCompleted: 1, StatusArchived: 1})
	if got != 67 {
		t.Errorf("expected 67, got %d", got)
	}
}

func TestChart(t *testing.T) {
	activity := []Activity{
		{SubmittedAt: at(0, 9), CompletedAt: tp(at(0, 10))},
		{SubmittedAt: at(0, 11)},
		{SubmittedAt: at(2, 9), CompletedAt: tp(at(1, 9))},
		{SubmittedAt: at(9, 9), CompletedAt: tp(at(6, 9))},
	}
	points := chart(startOfDay(dashNow), activity)
	if len(points) != ChartDays {
		t.Fatalf("expected %d points, got %d", ChartDays, len(points))
	}
	if points[0].Date != "2026-03-04" || points[6].Date != "2026-03-10" {
		t.Errorf("unexpected range %s..%s", points[0].Date, points[6].Date)
	}
	want := map[string][2]int{
		"2026-03-10": {2, 1},
		"2026-03-09": {0, 1},
		"2026-03-08": {1, 0},
		"2026-03-04": {0, 1},
	}
	for _, p := range points {
		w := want[p.Date]
		if p.Submissions != w[0] || p.Completed != w[1] {
			t.Errorf("%s: expected %v, got %d/%d", p.Date, w, p.Submissions, p.Completed)
		}
	}
}

func TestService_Stats(t *testing.T) {
	fx := newFixture(t, nil)
	fx.svc.now = func() time.Time { return dashNow }
	ctx := context.Background()

	signed, err := fx.submit(formschema.Answers{"name": "A", "sig": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fx.submit(formschema.Answers{"name": "B"}); err != nil {
		t.Fatal(err)
	}
	// The mock stamps wall-clock submission times; pin them to the fixed day.
	for _, s := range fx.repo.store {
		s.SubmittedAt = at(0, 8)
	}
	if fx.repo.store[signed.ID].CompletedAt == nil {
		t.Fatal("expected signed submission completed")
	}

	st, err := fx.svc.Stats(ctx, fx.clinicID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{TotalPatients: 1, TotalForms: 1, CompletedToday: 1, PendingSubmissions: 1, WeeklyTrend: 100, CompletionRate: 50}
	if *st != want {
		t.Errorf("expected %+v, got %+v", want, *st)
	}

	points, err := fx.svc.Chart(ctx, fx.clinicID)
	if err != nil {
		t.Fatalf("Chart: %v", err)
	}
	if last := points[len(points)-1]; last.Submissions != 2 || last.Completed != 1 {
		t.Errorf("unexpected today point %+v", last)
	}

	empty, err := fx.svc.Stats(ctx, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if *empty != (Stats{}) {
		t.Errorf("expected zero stats for an empty clinic, got %+v", *empty)
	}
}
