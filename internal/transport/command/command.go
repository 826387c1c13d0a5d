// Package command parses chat commands such as "/quizmath 10 20" or "/cancel@QuizBot".
package command

import (
	"strconv"
	"strings"
)

// Names of the commands the bot understands.
const (
	Start       = "start"
	Info        = "info"
	Quiz        = "quiz"
	Cancel      = "cancel"
	Subjects    = "subjects"
	Rating      = "rating"
	GroupRating = "grouprating"
	WeekRating  = "weekrating"
	Stats       = "stats"
	Withdraw    = "withdraw"
	SetRate     = "setrate"
	Withdrawals = "withdrawals"
	Approve     = "approve"
	Reject      = "reject"
)

// aliases are older command names kept working.
var aliases = map[string]string{
	"globalrating": Rating,
	"haftarating":  WeekRating,
}

// Command is a parsed chat command.
type Command struct {
	Name string
	// Subject is the raw suffix of a "/quiz<subject>" command, lowercased.
	Subject string
	// ID is the numeric suffix of "/approve_<id>" and "/reject_<id>".
	ID   int64
	Args []string
}

// Int returns the i-th argument as an integer, or def when it is absent or not a number.
func (c Command) Int(i, def int) int {
	if i >= len(c.Args) {
		return def
	}
	n, err := strconv.Atoi(c.Args[i])
	if err != nil {
		return def
	}
	return n
}

// Float returns the i-th argument as a float.
func (c Command) Float(i int) (float64, bool) {
	if i >= len(c.Args) {
		return 0, false
	}
	f, err := strconv.ParseFloat(c.Args[i], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Parse reads text as a command. Messages that are not commands report false.
func Parse(text string) (Command, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}

	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return Command{}, false
	}

	if canonical, ok := aliases[name]; ok {
		name = canonical
	}

	cmd := Command{Name: name, Args: fields[1:]}
	switch {
	case strings.HasPrefix(name, Quiz) && name != Quiz:
		cmd.Name = Quiz
		cmd.Subject = strings.TrimPrefix(name, Quiz)
	case strings.HasPrefix(name, Approve+"_"), strings.HasPrefix(name, Reject+"_"):
		verb, raw, _ := strings.Cut(name, "_")
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Command{}, false
		}
		cmd.Name, cmd.ID = verb, id
	}
	return cmd, true
}
