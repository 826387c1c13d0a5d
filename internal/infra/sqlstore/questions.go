package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chat-quiz-service/internal/domain"
)

const questionColumns = `id, subject, question, option1, option2, option3, option4, correct_option_id, image_url, created_by, created_at`

type questionRow struct {
	ID        int64     `bun:"id"`
	Subject   string    `bun:"subject"`
	Question  string    `bun:"question"`
	Option1   string    `bun:"option1"`
	Option2   string    `bun:"option2"`
	Option3   string    `bun:"option3"`
	Option4   string    `bun:"option4"`
	Correct   int       `bun:"correct_option_id"`
	ImageURL  string    `bun:"image_url"`
	CreatedBy int64     `bun:"created_by"`
	CreatedAt time.Time `bun:"created_at"`
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:           r.ID,
		Subject:      r.Subject,
		Prompt:       r.Question,
		Options:      [domain.OptionCount]string{r.Option1, r.Option2, r.Option3, r.Option4},
		CorrectIndex: r.Correct,
		ImageRef:     r.ImageURL,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
	}
}

func toQuestions(rows []questionRow) []domain.Question {
	out := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

// QuestionStore is the question bank and the custom subject list.
type QuestionStore struct {
	gw *Gateway
}

func NewQuestionStore(gw *Gateway) *QuestionStore {
	return &QuestionStore{gw: gw}
}

// Questions returns up to limit random questions, from subject when it is non-empty.
// The sample is drawn by the database; an empty pool or a failed read yields an empty slice.
func (s *QuestionStore) Questions(ctx context.Context, subject string, limit int) []domain.Question {
	if limit <= 0 {
		return []domain.Question{}
	}
	var rows []questionRow
	if subject != "" {
		s.gw.FetchAll(ctx, &rows, `SELECT `+questionColumns+` FROM questions WHERE subject = ? ORDER BY RANDOM() LIMIT ?`, subject, limit)
	} else {
		s.gw.FetchAll(ctx, &rows, `SELECT `+questionColumns+` FROM questions ORDER BY RANDOM() LIMIT ?`, limit)
	}
	return toQuestions(rows)
}

// Count returns the number of questions in subject, or in the whole pool.
func (s *QuestionStore) Count(ctx context.Context, subject string) int {
	var (
		n  int
		ok bool
	)
	if subject != "" {
		n, ok = FetchScalar[int](ctx, s.gw, `SELECT COUNT(*) FROM questions WHERE subject = ?`, subject)
	} else {
		n, ok = FetchScalar[int](ctx, s.gw, `SELECT COUNT(*) FROM questions`)
	}
	if !ok {
		return 0
	}
	return n
}

// Add stores a validated question and returns its id.
func (s *QuestionStore) Add(ctx context.Context, q domain.Question) (int64, error) {
	if q.CorrectIndex < 0 || q.CorrectIndex >= domain.OptionCount {
		return 0, domain.ErrInvalidCorrectOption
	}
	var imageRef, createdBy any
	if q.ImageRef != "" {
		imageRef = q.ImageRef
	}
	if q.CreatedBy != 0 {
		createdBy = q.CreatedBy
	}
	id, err := s.gw.InsertReturningID(ctx, `INSERT INTO questions
		(subject, question, option1, option2, option3, option4, correct_option_id, image_url, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, "id",
		q.Subject, q.Prompt, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.CorrectIndex, imageRef, createdBy)
	if err != nil {
		return 0, fmt.Errorf("add question: %w", err)
	}
	return id, nil
}

// Get returns a single question by id.
func (s *QuestionStore) Get(ctx context.Context, id int64) (domain.Question, bool) {
	var row questionRow
	if !s.gw.FetchOne(ctx, &row, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id) {
		return domain.Question{}, false
	}
	return row.toDomain(), true
}

// Search finds questions whose prompt contains text, case-insensitively, optionally
// restricted to one subject.
func (s *QuestionStore) Search(ctx context.Context, text, subject string) []domain.Question {
	var (
		where []string
		args  []any
	)
	if subject != "" {
		where = append(where, "subject = ?")
		args = append(args, subject)
	}
	if text != "" {
		where = append(where, s.gw.Dialect().ILike("question"))
		args = append(args, "%"+text+"%")
	}
	query := `SELECT ` + questionColumns + ` FROM questions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	var rows []questionRow
	s.gw.FetchAll(ctx, &rows, query, args...)
	return toQuestions(rows)
}

// Delete removes a question.
func (s *QuestionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.gw.Exec(ctx, `DELETE FROM questions WHERE id = ?`, id)
	return err
}

// CustomSubjects lists subjects registered beyond the built-in ones.
func (s *QuestionStore) CustomSubjects(ctx context.Context) []string {
	var names []string
	s.gw.FetchAll(ctx, &names, `SELECT name FROM subjects ORDER BY name`)
	return names
}

// AddSubject registers a custom subject; adding an existing one is a no-op.
func (s *QuestionStore) AddSubject(ctx context.Context, name string) error {
	query := `INSERT INTO subjects (name) VALUES (?) ON CONFLICT DO NOTHING`
	if s.gw.Backend() == BackendSQLite {
		query = `INSERT OR IGNORE INTO subjects (name) VALUES (?)`
	}
	_, err := s.gw.Exec(ctx, query, strings.ToLower(strings.TrimSpace(name)))
	return err
}
