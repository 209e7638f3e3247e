package submission

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// ChartDays is the width of the dashboard activity chart.
const ChartDays = 7

const chartDateLayout = "2006-01-02"

// Stats are the dashboard headline numbers. WeeklyTrend is the percentage
// change in submissions over the last seven days against the seven before;
// CompletionRate is the share of submissions that reached completed or
// archived. Both are whole percentages.
type Stats struct {
	TotalPatients      int `json:"totalPatients"`
	TotalForms         int `json:"totalForms"`
	CompletedToday     int `json:"completedToday"`
	PendingSubmissions int `json:"pendingSubmissions"`
	WeeklyTrend        int `json:"weeklyTrend"`
	CompletionRate     int `json:"completionRate"`
}

// ChartPoint is one day of dashboard activity.
type ChartPoint struct {
	Date        string `json:"date"`
	Submissions int    `json:"submissions"`
	Completed   int    `json:"completed"`
}

// startOfDay truncates t to midnight UTC.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Service) Stats(ctx context.Context, clinicID uuid.UUID) (*Stats, error) {
	var st Stats
	var err error
	if st.TotalPatients, err = s.patients.CountPatients(ctx, clinicID); err != nil {
		return nil, err
	}
	if st.TotalForms, err = s.forms.CountActiveForms(ctx, clinicID); err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByStatus(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	today := startOfDay(s.now())
	activity, err := s.repo.ActivitySince(ctx, clinicID, today.AddDate(0, 0, -2*ChartDays+1))
	if err != nil {
		return nil, err
	}

	st.PendingSubmissions = counts[StatusPending]
	st.CompletionRate = completionRate(counts)
	st.CompletedToday, st.WeeklyTrend = summarize(today, activity)
	return &st, nil
}

func completionRate(counts map[string]int) int {
	total := counts[StatusPending] + counts[StatusCompleted] + counts[StatusArchived]
	if total == 0 {
		return 0
	}
	done := counts[StatusCompleted] + counts[StatusArchived]
	return int(math.Round(float64(done) * 100 / float64(total)))
}

// summarize counts today's completions and the week-over-week submission
// trend.
func summarize(today time.Time, activity []Activity) (completedToday, trend int) {
	weekStart := today.AddDate(0, 0, -ChartDays+1)
	prevStart := weekStart.AddDate(0, 0, -ChartDays)
	var thisWeek, lastWeek int
	for _, a := range activity {
		if a.CompletedAt != nil && !a.CompletedAt.Before(today) {
			completedToday++
		}
		switch {
		case !a.SubmittedAt.Before(weekStart):
			thisWeek++
		case !a.SubmittedAt.Before(prevStart):
			lastWeek++
		}
	}
	return completedToday, percentChange(lastWeek, thisWeek)
}

func percentChange(prev, cur int) int {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return 100
	}
	return int(math.Round(float64(cur-prev) * 100 / float64(prev)))
}

// Chart returns one point per day for the last ChartDays days, oldest first.
func (s *Service) Chart(ctx context.Context, clinicID uuid.UUID) ([]ChartPoint, error) {
	today := startOfDay(s.now())
	activity, err := s.repo.ActivitySince(ctx, clinicID, today.AddDate(0, 0, -ChartDays+1))
	if err != nil {
		return nil, err
	}
	return chart(today, activity), nil
}

func chart(today time.Time, activity []Activity) []ChartPoint {
	points := make([]ChartPoint, ChartDays)
	index := make(map[string]int, ChartDays)
	for i := range points {
		day := today.AddDate(0, 0, i-ChartDays+1).Format(chartDateLayout)
		points[i].Date = day
		index[day] = i
	}
	for _, a := range activity {
		if i, ok := index[a.SubmittedAt.UTC().Format(chartDateLayout)]; ok {
			points[i].Submissions++
		}
		if a.CompletedAt == nil {
			continue
		}
		if i, ok := index[a.CompletedAt.UTC().Format(chartDateLayout)]; ok {
			points[i].Completed++
		}
	}
	return points
}
