package quiz

import (
	"fmt"

	"portfolio-quiz-service/internal/domain"
)

// EventType tags engine events pushed to the connected player.
type EventType string

const (
	EventState        EventType = "state"
	EventQuestion     EventType = "question"
	EventAnswerResult EventType = "answerResult"
	EventCountdown    EventType = "countdown"
	EventNotice       EventType = "notice"
	EventSessionEnded EventType = "sessionEnded"
)

// QuestionView is the client-facing shape of a question. The correct index is
// withheld until the answer is locked in.
type QuestionView struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// Score is the running tally, displayed as "X/Y".
type Score struct {
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
	Display string `json:"display"`
	Percent int    `json:"percent"`
}

func newScore(correct, total int) Score {
	return Score{
		Correct: correct,
		Total:   total,
		Display: fmt.Sprintf("%d/%d", correct, total),
		Percent: domain.Accuracy(correct, total),
	}
}

// Event is a single engine notification. Fields are populated per type.
type Event struct {
	Type      EventType            `json:"type"`
	State     State                `json:"state,omitempty"`
	Question  *QuestionView        `json:"question,omitempty"`
	Answer    *domain.AnswerRecord `json:"answer,omitempty"`
	Score     *Score               `json:"score,omitempty"`
	Countdown int                  `json:"countdown,omitempty"`
	Message   string               `json:"message,omitempty"`
}
