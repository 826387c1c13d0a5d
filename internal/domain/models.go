package domain

import (
	"strings"
	"time"
)

// OptionCount is the fixed number of answer options every question carries.
const OptionCount = 4

// Question is a single-correct multiple-choice question with exactly four options.
type Question struct {
	ID           int64               `json:"id" yaml:"id"`
	Subject      string              `json:"subject" yaml:"subject"`
	Prompt       string              `json:"prompt" yaml:"prompt"`
	Options      [OptionCount]string `json:"options" yaml:"options"`
	CorrectIndex int                 `json:"correctIndex" yaml:"correctIndex"`
	ImageRef     string              `json:"imageRef,omitempty" yaml:"imageRef,omitempty"`
	CreatedBy    int64               `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt    time.Time           `json:"createdAt" yaml:"createdAt"`
}

// NewQuestion validates the option slice and the zero-based correct index.
func NewQuestion(subject, prompt string, options []string, correctIndex int) (Question, error) {
	if len(options) != OptionCount {
		return Question{}, ErrInvalidOptions
	}
	if correctIndex < 0 || correctIndex >= OptionCount {
		return Question{}, ErrInvalidCorrectOption
	}
	q := Question{
		Subject:      strings.ToLower(strings.TrimSpace(subject)),
		Prompt:       prompt,
		CorrectIndex: correctIndex,
	}
	copy(q.Options[:], options)
	return q, nil
}

// CorrectIndexFromOrdinal converts the 1-based option number people type into the
// stored 0-based index. Every entry point that accepts external input goes through here.
func CorrectIndexFromOrdinal(ordinal int) (int, error) {
	if ordinal < 1 || ordinal > OptionCount {
		return 0, ErrInvalidCorrectOption
	}
	return ordinal - 1, nil
}

// imageOnlyPrompts are stored prompts that mean "the question is the picture".
var imageOnlyPrompts = map[string]struct{}{
	"[image]":        {},
	"image question": {},
	"❓image question": {},
}

// ImageOnlyPrompt is written as the prompt of questions that consist of an image alone.
const ImageOnlyPrompt = "❓Image question"

// ImageFallbackPrompt replaces empty or image-only prompts when a question is published.
const ImageFallbackPrompt = "What is shown in the image?"

// DisplayPrompt returns the text to publish for the question.
func (q Question) DisplayPrompt() string {
	trimmed := strings.TrimSpace(q.Prompt)
	if trimmed == "" {
		return ImageFallbackPrompt
	}
	if _, ok := imageOnlyPrompts[strings.ToLower(trimmed)]; ok {
		return ImageFallbackPrompt
	}
	return q.Prompt
}

// User is a chat participant and their running totals.
type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	TotalScore int    `json:"totalScore"`
	Coins      int    `json:"coins"`
}

// DisplayName prefers @username, then first name, then the numeric id.
func DisplayName(userID int64, username, firstName string) string {
	if username != "" {
		return "@" + username
	}
	if firstName != "" {
		return firstName
	}
	return formatID(userID)
}

// Poll is what the engine asks a transport to publish for one question.
type Poll struct {
	Question     string
	Options      [OptionCount]string
	CorrectIndex int
	OpenPeriod   time.Duration
}

// PollAnswer is an inbound answer event reported by a transport.
// Option is nil when the transport reports an empty choice set.
type PollAnswer struct {
	PollID string
	User   User
	Option *int
}

// AnswerRecord is one participant's current answer to one question of a session.
type AnswerRecord struct {
	SessionID     int64
	UserID        int64
	QuestionIndex int
	Correct       bool
}

// Score is 1 for a correct answer and 0 otherwise.
func (a AnswerRecord) Score() int {
	if a.Correct {
		return 1
	}
	return 0
}

// Standing is one row of a ranking.
type Standing struct {
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// UserStats summarizes a participant's answer history.
type UserStats struct {
	Total     int `json:"total"`
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Rank      int `json:"rank"`
}

// WithdrawalStatus is the lifecycle state of a coin withdrawal.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Withdrawal is a request to exchange coins for money.
type Withdrawal struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	Username  string           `json:"username,omitempty"`
	Coins     int              `json:"coins"`
	Money     float64          `json:"money"`
	Status    WithdrawalStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
}
