package domain

import "math/rand"

const (
	DefaultRevisionSize             = 10
	DefaultRevisionTimeLimitMinutes = 15
	DefaultRevisionPassingScore     = 70
)

// PublicOption is an option with its correctness hidden.
type PublicOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PublicQuestion is a question as shown to a user before correction.
type PublicQuestion struct {
	ID      string         `json:"id"`
	QuizID  string         `json:"quizId"`
	Prompt  string         `json:"prompt"`
	Type    QuestionType   `json:"type"`
	Options []PublicOption `json:"options"`
}

// RevisionQuiz is an ephemeral quiz drawn from the whole question pool. It is never persisted.
type RevisionQuiz struct {
	Title            string           `json:"title"`
	TimeLimitMinutes int              `json:"timeLimitMinutes"`
	PassingScore     int              `json:"passingScore"`
	Questions        []PublicQuestion `json:"questions"`
}

// QuestionCorrection tells the user how one question was graded.
type QuestionCorrection struct {
	QuestionID        string            `json:"questionId"`
	Prompt            string            `json:"prompt"`
	Correct           bool              `json:"correct"`
	SelectedOptionIDs []string          `json:"selectedOptionIds"`
	CorrectOptionIDs  []string          `json:"correctOptionIds"`
	Explanations      map[string]string `json:"explanations,omitempty"`
}

// RevisionResult is returned for every revision submission.
type RevisionResult struct {
	Score          int                  `json:"score"`
	CorrectCount   int                  `json:"correctCount"`
	TotalQuestions int                  `json:"totalQuestions"`
	Passed         bool                 `json:"passed"`
	Corrections    []QuestionCorrection `json:"perQuestionCorrection"`
}

// Public strips correctness and explanations from q.
func (q Question) Public() PublicQuestion {
	opts := make([]PublicOption, len(q.Options))
	for i, o := range q.Options {
		opts[i] = PublicOption{ID: o.ID, Text: o.Text}
	}
	return PublicQuestion{ID: q.ID, QuizID: q.QuizID, Prompt: q.Prompt, Type: q.Type, Options: opts}
}

// Correction builds the correction view of q for the given selection.
func (q Question) Correction(selected []string) QuestionCorrection {
	c := QuestionCorrection{
		QuestionID:        q.ID,
		Prompt:            q.Prompt,
		Correct:           GradeQuestion(q, selected),
		SelectedOptionIDs: selected,
		CorrectOptionIDs:  q.CorrectOptionIDs(),
	}
	if c.SelectedOptionIDs == nil {
		c.SelectedOptionIDs = []string{}
	}
	for _, o := range q.Options {
		if o.Explanation == "" {
			continue
		}
		if c.Explanations == nil {
			c.Explanations = make(map[string]string)
		}
		c.Explanations[o.ID] = o.Explanation
	}
	return c
}

// SampleRevision shuffles a copy of pool and returns the first size questions.
func SampleRevision(pool []Question, size int, rnd *rand.Rand) ([]Question, error) {
	if size <= 0 || len(pool) < size {
		return nil, NewError(ErrInvalidState, "not enough questions for a revision quiz", map[string]any{
			"available": len(pool),
			"required":  size,
		})
	}
	shuffled := make([]Question, len(pool))
	copy(shuffled, pool)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:size], nil
}

// GradeRevision grades every question and returns the full correction.
func GradeRevision(questions []Question, answers Answers, passingScore int) RevisionResult {
	score, correct := Grade(questions, answers)
	res := RevisionResult{
		Score:          score,
		CorrectCount:   correct,
		TotalQuestions: len(questions),
		Passed:         score >= passingScore,
		Corrections:    make([]QuestionCorrection, 0, len(questions)),
	}
	for _, q := range questions {
		res.Corrections = append(res.Corrections, q.Correction(answers[q.ID]))
	}
	return res
}
