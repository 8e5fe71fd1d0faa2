package quiz

import (
	"fmt"

	"course-platform/internal/apperr"
	"course-platform/internal/models"
)

// Grade checks each submitted answer against the question at the same
// position. The submission must cover every question exactly once, and each
// selection must name an existing option. A question without options cannot
// be answered.
func Grade(questions []models.Question, answers []AnswerInput) ([]models.Answer, int, error) {
	if len(answers) != len(questions) {
		return nil, 0, apperr.Validation(fmt.Sprintf(
			"expected %d answers, got %d", len(questions), len(answers)))
	}

	graded := make([]models.Answer, len(answers))
	correct := 0
	for i, answer := range answers {
		question := questions[i]

		if answer.Question != "" && answer.Question != question.ID {
			return nil, 0, apperr.Validation(fmt.Sprintf(
				"answer %d does not match question %s", i, question.ID))
		}
		if answer.SelectedAnswer == nil {
			return nil, 0, apperr.Validation(fmt.Sprintf("answer %d has no selection", i))
		}

		selected := *answer.SelectedAnswer
		if selected < 0 || selected >= len(question.Options) {
			return nil, 0, apperr.Validation(fmt.Sprintf(
				"answer %d selects option %d which does not exist", i, selected))
		}

		isCorrect := selected == question.CorrectAnswer
		if isCorrect {
			correct++
		}
		graded[i] = models.Answer{
			Question:       question.ID,
			SelectedAnswer: selected,
			IsCorrect:      isCorrect,
		}
	}

	return graded, Score(correct, len(questions)), nil
}

// Score is the rounded percentage of correct answers, halves rounded up.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}
