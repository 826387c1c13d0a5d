package cli

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"chat-quiz-service/internal/domain"
	"chat-quiz-service/internal/infra/sqlstore"
	"go.uber.org/zap/zaptest"
)

const importFile = `
- subject: Math
  question: "2 + 2 = ?"
  options: ["3", "4", "5", "6"]
  answer: 2
- subject: history
  image: s3://quiz/castle.png
  options: ["Rome", "Paris", "Prague", "Vienna"]
  answer: 3
`

func newTestStore(t *testing.T) *sqlstore.QuestionStore {
	t.Helper()
	ctx := context.Background()
	gw, err := sqlstore.Open(ctx, sqlstore.Options{SQLitePath: filepath.Join(t.TempDir(), "quiz.db")}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { gw.Close() })
	if err := gw.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlstore.NewQuestionStore(gw)
}

func TestImportQuestions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	added, skipped, err := importQuestions(ctx, store, strings.NewReader(importFile), false)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if added != 2 || len(skipped) != 0 {
		t.Fatalf("expected 2 added, got %d (skipped %v)", added, skipped)
	}

	math := store.Questions(ctx, "math", 5)
	if len(math) != 1 || math[0].CorrectIndex != 1 || math[0].Options[1] != "4" {
		t.Fatalf("unexpected math questions %+v", math)
	}
	history := store.Questions(ctx, "history", 5)
	if len(history) != 1 || history[0].ImageRef != "s3://quiz/castle.png" || history[0].DisplayPrompt() != domain.ImageFallbackPrompt {
		t.Fatalf("unexpected history questions %+v", history)
	}
	if custom := store.CustomSubjects(ctx); len(custom) != 1 || custom[0] != "history" {
		t.Fatalf("expected history as custom subject, got %v", custom)
	}

	added, skipped, err = importQuestions(ctx, store, strings.NewReader(importFile), false)
	if err != nil || added != 0 || len(skipped) != 2 {
		t.Fatalf("expected populated subjects to be skipped, got %d %v %v", added, skipped, err)
	}
	added, _, err = importQuestions(ctx, store, strings.NewReader(importFile), true)
	if err != nil || added != 2 || store.Count(ctx, "") != 4 {
		t.Fatalf("expected forced import, got %d %v", added, err)
	}
}

func TestImportRejectsInvalidAnswer(t *testing.T) {
	store := newTestStore(t)
	bad := `
- subject: math
  question: "?"
  options: ["a", "b", "c", "d"]
  answer: 0
`
	_, _, err := importQuestions(context.Background(), store, strings.NewReader(bad), false)
	if !errors.Is(err, domain.ErrInvalidCorrectOption) {
		t.Fatalf("expected invalid correct option, got %v", err)
	}
	if n := store.Count(context.Background(), ""); n != 0 {
		t.Fatalf("nothing should be written, got %d", n)
	}
}
