package quiz

import (
	"context"
	"math"
	"time"

	"course-platform/internal/models"
)

// Summarize computes dashboard figures. "Today" is the UTC calendar day of now.
func Summarize(views []models.ResponseView, now time.Time) models.ResponseSummary {
	summary := models.ResponseSummary{
		Count:        len(views),
		PassingScore: models.PassingScore,
	}
	if len(views) == 0 {
		return summary
	}

	y, m, d := now.UTC().Date()
	total, passed := 0, 0
	for _, v := range views {
		total += v.Score
		if v.Score >= models.PassingScore {
			passed++
		}
		vy, vm, vd := v.CompletedAt.UTC().Date()
		if vy == y && vm == m && vd == d {
			summary.CompletionsToday++
		}
	}

	n := float64(len(views))
	summary.AverageScore = roundTenth(float64(total) / n)
	summary.PassRate = roundTenth(float64(passed) / n * 100)
	return summary
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// Summary aggregates the same responses ListResponses would return.
func (s *Service) Summary(ctx context.Context, filter ListFilter, requester Requester) (*models.ResponseSummary, error) {
	views, err := s.ListResponses(ctx, filter, requester)
	if err != nil {
		return nil, err
	}
	summary := Summarize(views, s.now())
	return &summary, nil
}
