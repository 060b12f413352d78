// models/question.go
package models

import (
	"math/rand/v2"
)

type Question struct {
	Index         int      `json:"index"`
	Prompt        string   `json:"prompt"`
	CorrectAnswer string   `json:"-"`
	WrongAnswers  []string `json:"-"`
	Clarification string   `json:"-"`

	// Choice is nil until the player answers. Once set it never changes;
	// the gateway enforces that with a conditional write.
	Choice *string `json:"choice,omitempty"`
}

// QuestionFeedback is what the player sees right after answering.
type QuestionFeedback struct {
	Result        bool   `json:"result"`
	CorrectAnswer string `json:"correct_answer"`
	Clarification string `json:"clarification"`
}

// QuestionPrompt is the posed form of a question: the prompt plus the
// correct and wrong answers shuffled together.
type QuestionPrompt struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// QuestionSummary describes a question in a game listing without leaking
// the solution of unanswered questions.
type QuestionSummary struct {
	Prompt        string `json:"prompt"`
	IsAnswered    bool   `json:"is_answered"`
	Result        *bool  `json:"result,omitempty"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

// CreateQuestion builds a validated question. The correct answer must not
// also appear among the wrong answers.
func CreateQuestion(index int, prompt, correctAnswer string, wrongAnswers []string, clarification string) (*Question, error) {
	for _, wrong := range wrongAnswers {
		if wrong == correctAnswer {
			return nil, ErrInvalidQuestion
		}
	}

	return &Question{
		Index:         index,
		Prompt:        prompt,
		CorrectAnswer: correctAnswer,
		WrongAnswers:  wrongAnswers,
		Clarification: clarification,
	}, nil
}

func (q *Question) IsAnswered() bool {
	return q.Choice != nil
}

// Pose returns the prompt with all options in a uniformly random order.
// Because the option order differs on every call, answers are validated by
// value, never by position.
func (q *Question) Pose() QuestionPrompt {
	options := make([]string, 0, len(q.WrongAnswers)+1)
	options = append(options, q.CorrectAnswer)
	options = append(options, q.WrongAnswers...)
	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return QuestionPrompt{
		Prompt:  q.Prompt,
		Options: options,
	}
}

// Describe summarizes the question for listings: answered questions reveal
// their solution and whether the player got it right.
func (q *Question) Describe() QuestionSummary {
	summary := QuestionSummary{
		Prompt:     q.Prompt,
		IsAnswered: q.IsAnswered(),
	}
	if q.IsAnswered() {
		result := *q.Choice == q.CorrectAnswer
		summary.Result = &result
		summary.CorrectAnswer = q.CorrectAnswer
	}
	return summary
}

// Answer records the player's choice and returns the feedback. The choice
// must be one of the posed options; anything else is ErrInvalidAnswer.
// Idempotence against a previously stored choice is not checked here; only
// the gateway can see persisted state, and its conditional write rejects a
// second answer.
func (q *Question) Answer(choice string) (QuestionFeedback, error) {
	valid := choice == q.CorrectAnswer
	for _, wrong := range q.WrongAnswers {
		if choice == wrong {
			valid = true
			break
		}
	}
	if !valid {
		return QuestionFeedback{}, ErrInvalidAnswer
	}

	q.Choice = &choice
	return QuestionFeedback{
		Result:        choice == q.CorrectAnswer,
		CorrectAnswer: q.CorrectAnswer,
		Clarification: q.Clarification,
	}, nil
}
