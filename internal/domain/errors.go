package domain

import "errors"

var (
	// ErrAlreadyRunning is returned when a chat already has an active quiz.
	ErrAlreadyRunning = errors.New("quiz already running in this chat")
	// ErrNoQuestions is returned when the question pool for a start request is empty.
	ErrNoQuestions = errors.New("no questions available")
	// ErrNotRunning is returned when cancelling a chat without an active quiz.
	ErrNotRunning = errors.New("no active quiz in this chat")
	// ErrUnknownSubject indicates a quiz command named a subject that does not exist.
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrInvalidOptions indicates a question does not carry exactly four options.
	ErrInvalidOptions = errors.New("question must have exactly 4 options")
	// ErrInvalidCorrectOption indicates the correct option is outside 1-4 (or 0-3 internally).
	ErrInvalidCorrectOption = errors.New("correct option must be between 1 and 4")
	// ErrInsufficientCoins is returned when a withdrawal exceeds the user's balance.
	ErrInsufficientCoins = errors.New("not enough coins")
	// ErrWithdrawalNotFound is returned for unknown or already decided withdrawals.
	ErrWithdrawalNotFound = errors.New("pending withdrawal not found")
	// ErrShuttingDown is returned when a quiz is started after shutdown began.
	ErrShuttingDown = errors.New("quiz service is shutting down")
	// ErrNoTransport is returned when no transport serves a chat.
	ErrNoTransport = errors.New("no transport for chat")
)
