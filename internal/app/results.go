package app

import (
	"fmt"
	"strings"
	"time"

	"chat-quiz-service/internal/domain"
)

// NoAnswersMessage is published when a finished quiz has no participants.
const NoAnswersMessage = "❌ Quiz finished, nobody answered."

var medals = []string{"🥇", "🥈", "🥉"}

func medal(rank int) string {
	if rank >= 1 && rank <= len(medals) {
		return medals[rank-1]
	}
	return "▫️"
}

// FormatResults renders final standings, best first.
func FormatResults(standings []domain.Standing) string {
	return formatStandings("🏆 Results:", standings, "🪙")
}

func formatStandings(header string, standings []domain.Standing, unit string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	for i, st := range standings {
		fmt.Fprintf(&b, "%s %d. %s — %d %s\n", medal(i+1), i+1, st.DisplayName, st.Score, unit)
	}
	return strings.TrimRight(b.String(), "\n")
}

func subjectLabel(subject string) string {
	if subject == "" {
		return "All subjects"
	}
	return subject
}

// StartAnnouncement tells the chat what is about to be asked.
func StartAnnouncement(subject string, count int, seconds time.Duration) string {
	return fmt.Sprintf("🎯 Quiz started!\nSubject: %s\nQuestions: %d\n⏱ %d seconds each",
		subjectLabel(subject), count, int(seconds/time.Second))
}

const noRatings = "No ratings yet."

func formatRating(header string, standings []domain.Standing) string {
	if len(standings) == 0 {
		return noRatings
	}
	return formatStandings(header, standings, "pts")
}

func formatOwnRank(rank int) string {
	if rank == 0 {
		return "📍 You are not ranked yet."
	}
	return fmt.Sprintf("📍 Your place: #%d", rank)
}

func formatStats(user domain.User, stats domain.UserStats) string {
	rank := "-"
	if stats.Rank > 0 {
		rank = fmt.Sprintf("%d", stats.Rank)
	}
	return fmt.Sprintf("📊 %s\nAnswers: %d\n✅ Correct: %d\n❌ Incorrect: %d\n🏅 Rank: %s",
		domain.DisplayName(user.ID, user.Username, user.FirstName), stats.Total, stats.Correct, stats.Incorrect, rank)
}

func formatPending(pending []domain.Withdrawal) string {
	if len(pending) == 0 {
		return "✅ No pending withdrawals."
	}
	var b strings.Builder
	b.WriteString("📋 Pending withdrawals:\n")
	for _, w := range pending {
		who := "@" + w.Username
		if w.Username == "" {
			who = fmt.Sprintf("%d", w.UserID)
		}
		fmt.Fprintf(&b, "\n🆔 #%d | 👤 %s\n💰 %d coins -> 💵 %.2f\n📅 %s\nApprove: /approve_%d\nReject: /reject_%d\n",
			w.ID, who, w.Coins, w.Money, w.CreatedAt.Format("2006-01-02 15:04"), w.ID, w.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}
