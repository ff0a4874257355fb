package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// DefaultPassingScore is used when a quiz does not set its own.
const DefaultPassingScore = 60.0

// QuizQuestion is a single multiple-choice question. Answer is the index of
// the correct option and is hidden from students.
type QuizQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  *int     `json:"answer,omitempty"`
}

// QuizContent is the content payload of a quiz module.
type QuizContent struct {
	Questions    []QuizQuestion `json:"questions"`
	PassingScore float64        `json:"passing_score,omitempty"`
}

// ParseQuizContent decodes a quiz module's content.
func ParseQuizContent(raw datatypes.JSON) (QuizContent, error) {
	var content QuizContent
	if len(raw) == 0 {
		return content, nil
	}
	if err := json.Unmarshal(raw, &content); err != nil {
		return QuizContent{}, fmt.Errorf("decode quiz content: %w", err)
	}
	return content, nil
}

// EffectivePassingScore returns the quiz passing score or the default.
func (q QuizContent) EffectivePassingScore() float64 {
	if q.PassingScore <= 0 {
		return DefaultPassingScore
	}
	return q.PassingScore
}

// WithoutAnswers returns a copy safe to show to students.
func (q QuizContent) WithoutAnswers() QuizContent {
	out := QuizContent{PassingScore: q.PassingScore, Questions: make([]QuizQuestion, 0, len(q.Questions))}
	for _, question := range q.Questions {
		out.Questions = append(out.Questions, QuizQuestion{
			Prompt:  question.Prompt,
			Options: append([]string(nil), question.Options...),
		})
	}
	return out
}
