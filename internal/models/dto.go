// backend/internal/models/dto.go
package models

import "time"

// ResponseView is a QuizResponse joined with learner identity and the quiz's
// course title, shaped for reporting clients.
type ResponseView struct {
	ID          string      `json:"id"`
	User        UserSummary `json:"user"`
	Quiz        QuizSummary `json:"quiz"`
	Answers     []Answer    `json:"answers"`
	Score       int         `json:"score"`
	CompletedAt time.Time   `json:"completedAt"`
}

type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type QuizSummary struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Course CourseSummary `json:"course"`
}

type CourseSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ToView flattens the preloaded associations. Missing associations leave the
// summary fields empty instead of failing.
func (r QuizResponse) ToView() ResponseView {
	view := ResponseView{
		ID:          r.ID,
		User:        UserSummary{ID: r.UserID},
		Quiz:        QuizSummary{ID: r.QuizID},
		Answers:     append([]Answer{}, r.Answers...),
		Score:       r.Score,
		CompletedAt: r.CompletedAt,
	}
	if r.User != nil {
		view.User.Name = r.User.Name
		view.User.Email = r.User.Email
	}
	if r.Quiz != nil {
		view.Quiz.Title = r.Quiz.Title
		view.Quiz.Course.ID = r.Quiz.CourseID
		if r.Quiz.Course != nil {
			view.Quiz.Course.Title = r.Quiz.Course.Title
		}
	}
	return view
}

func ToViews(responses []QuizResponse) []ResponseView {
	views := make([]ResponseView, 0, len(responses))
	for _, r := range responses {
		views = append(views, r.ToView())
	}
	return views
}

// PassingScore is the lowest score counted as a pass.
const PassingScore = 70

// ResponseSummary aggregates a list of responses for the admin dashboard.
// AverageScore and PassRate are percentages rounded to one decimal.
type ResponseSummary struct {
	Count            int     `json:"count"`
	AverageScore     float64 `json:"averageScore"`
	CompletionsToday int     `json:"completionsToday"`
	PassRate         float64 `json:"passRate"`
	PassingScore     int     `json:"passingScore"`
}
