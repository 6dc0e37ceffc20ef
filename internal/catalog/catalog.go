// Package catalog reads the YAML seed file describing themes, quizzes and users.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quiz-mastery-service/internal/domain"
)

// Catalog is the authored content plus the starting accounts.
type Catalog struct {
	Themes  []domain.Theme
	Quizzes []domain.Quiz
	Users   []domain.User
}

type fileOption struct {
	ID          string `yaml:"id"`
	Text        string `yaml:"text"`
	Correct     bool   `yaml:"correct"`
	Explanation string `yaml:"explanation"`
}

type fileQuestion struct {
	ID      string       `yaml:"id"`
	Prompt  string       `yaml:"prompt"`
	Type    string       `yaml:"type"`
	Options []fileOption `yaml:"options"`
}

type fileQuiz struct {
	ID               string         `yaml:"id"`
	Title            string         `yaml:"title"`
	PassingScore     *int           `yaml:"passingScore"`
	TimeLimitMinutes int            `yaml:"timeLimitMinutes"`
	Difficulty       string         `yaml:"difficulty"`
	RequiredStars    int            `yaml:"requiredStars"`
	Free             bool           `yaml:"free"`
	Inactive         bool           `yaml:"inactive"`
	Questions        []fileQuestion `yaml:"questions"`
}

type fileTheme struct {
	ID      string     `yaml:"id"`
	Name    string     `yaml:"name"`
	Quizzes []fileQuiz `yaml:"quizzes"`
}

type fileUser struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Stars int    `yaml:"stars"`
}

type file struct {
	Themes []fileTheme `yaml:"themes"`
	Users  []fileUser  `yaml:"users"`
}

// Load reads a catalog from a YAML file.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog. Positions follow document order.
func Parse(data []byte) (Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}

	var c Catalog
	for ti, t := range f.Themes {
		if t.ID == "" {
			return Catalog{}, fmt.Errorf("theme %d: missing id", ti)
		}
		c.Themes = append(c.Themes, domain.Theme{ID: t.ID, Name: t.Name, Position: ti})
		for qi, fq := range t.Quizzes {
			quiz, err := fq.toDomain(t.ID, qi)
			if err != nil {
				return Catalog{}, err
			}
			c.Quizzes = append(c.Quizzes, quiz)
		}
	}
	for _, u := range f.Users {
		if u.ID == "" || u.Stars < 0 {
			return Catalog{}, fmt.Errorf("user %q: invalid id or star balance", u.ID)
		}
		c.Users = append(c.Users, domain.User{ID: u.ID, Name: u.Name, StarBalance: u.Stars})
	}
	return c, nil
}

func (fq fileQuiz) toDomain(themeID string, position int) (domain.Quiz, error) {
	if fq.ID == "" {
		return domain.Quiz{}, fmt.Errorf("theme %s quiz %d: missing id", themeID, position)
	}
	quiz := domain.Quiz{
		ID:               fq.ID,
		ThemeID:          themeID,
		Title:            fq.Title,
		Position:         position,
		PassingScore:     70,
		TimeLimitMinutes: fq.TimeLimitMinutes,
		Difficulty:       domain.Difficulty(fq.Difficulty),
		RequiredStars:    fq.RequiredStars,
		IsFree:           fq.Free,
		IsActive:         !fq.Inactive,
	}
	if fq.PassingScore != nil {
		quiz.PassingScore = *fq.PassingScore
	}
	if quiz.Difficulty == "" {
		quiz.Difficulty = domain.DifficultyEasy
	}
	if !quiz.Difficulty.Valid() {
		return domain.Quiz{}, fmt.Errorf("quiz %s: unknown difficulty %q", fq.ID, fq.Difficulty)
	}
	if quiz.PassingScore < 0 || quiz.PassingScore > 100 || quiz.RequiredStars < 0 {
		return domain.Quiz{}, fmt.Errorf("quiz %s: passing score or required stars out of range", fq.ID)
	}

	for i, q := range fq.Questions {
		typ := domain.QuestionType(q.Type)
		if typ == "" {
			typ = domain.SingleChoice
		}
		if !typ.Valid() {
			return domain.Quiz{}, fmt.Errorf("quiz %s question %s: unknown type %q", fq.ID, q.ID, q.Type)
		}
		question := domain.Question{ID: q.ID, QuizID: fq.ID, Prompt: q.Prompt, Type: typ, Position: i}
		for _, o := range q.Options {
			question.Options = append(question.Options, domain.Option{ID: o.ID, Text: o.Text, Correct: o.Correct, Explanation: o.Explanation})
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz, nil
}

// Sample is the built-in demo catalog used when no file is configured.
func Sample() Catalog {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		panic(err)
	}
	return c
}

const sampleYAML = `
themes:
  - id: arithmetic
    name: Arithmetic
    quizzes:
      - id: addition
        title: Addition
        difficulty: EASY
        timeLimitMinutes: 5
        free: true
        questions:
          - id: add-1
            prompt: What is 2 + 2?
            options:
              - {id: add-1-a, text: "3"}
              - {id: add-1-b, text: "4", correct: true, explanation: Two pairs make four.}
              - {id: add-1-c, text: "5"}
          - id: add-2
            prompt: What is 7 + 5?
            options:
              - {id: add-2-a, text: "12", correct: true}
              - {id: add-2-b, text: "13"}
          - id: add-3
            prompt: Which sums equal 10?
            type: MULTI_CHOICE
            options:
              - {id: add-3-a, text: 6 + 4, correct: true}
              - {id: add-3-b, text: 5 + 5, correct: true}
              - {id: add-3-c, text: 3 + 8}
      - id: multiplication
        title: Multiplication
        difficulty: MEDIUM
        timeLimitMinutes: 10
        requiredStars: 5
        questions:
          - id: mul-1
            prompt: What is 6 x 7?
            options:
              - {id: mul-1-a, text: "42", correct: true}
              - {id: mul-1-b, text: "36"}
          - id: mul-2
            prompt: What is 9 x 9?
            options:
              - {id: mul-2-a, text: "81", correct: true}
              - {id: mul-2-b, text: "72"}
  - id: geography
    name: Geography
    quizzes:
      - id: capitals
        title: Capitals
        difficulty: HARD
        timeLimitMinutes: 10
        requiredStars: 10
        questions:
          - id: cap-1
            prompt: Capital of France?
            options:
              - {id: cap-1-a, text: Paris, correct: true}
              - {id: cap-1-b, text: Lyon}
          - id: cap-2
            prompt: Capital of Japan?
            options:
              - {id: cap-2-a, text: Kyoto}
              - {id: cap-2-b, text: Tokyo, correct: true}
          - id: cap-3
            prompt: Capital of Canada?
            options:
              - {id: cap-3-a, text: Ottawa, correct: true}
              - {id: cap-3-b, text: Toronto}
          - id: cap-4
            prompt: Capital of Australia?
            options:
              - {id: cap-4-a, text: Canberra, correct: true}
              - {id: cap-4-b, text: Sydney}
          - id: cap-5
            prompt: Capital of Kenya?
            options:
              - {id: cap-5-a, text: Nairobi, correct: true}
              - {id: cap-5-b, text: Mombasa}
users:
  - {id: demo, name: Demo, stars: 0}
`
