package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"chat-quiz-service/internal/app"
	"chat-quiz-service/internal/domain"
	"chat-quiz-service/internal/infra/sqlstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// questionFile is one entry of an import file. Answer is the 1-based number of the
// correct option, the way question authors count.
type questionFile struct {
	Subject  string   `yaml:"subject"`
	Question string   `yaml:"question"`
	Options  []string `yaml:"options"`
	Answer   int      `yaml:"answer"`
	Image    string   `yaml:"image"`
}

// NewQuestionsCmd groups the question bank maintenance commands.
func NewQuestionsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Manage the question bank",
	}

	var force bool
	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import questions from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), *configPath, func(ctx context.Context, store *sqlstore.QuestionStore, logger *zap.Logger) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				added, skipped, err := importQuestions(ctx, store, f, force)
				if err != nil {
					return err
				}
				logger.Info("questions imported", zap.Int("added", added), zap.Strings("skipped_subjects", skipped))
				fmt.Fprintf(cmd.OutOrStdout(), "added %d questions\n", added)
				return nil
			})
		},
	}
	importCmd.Flags().BoolVar(&force, "force", false, "import into subjects that already have questions")

	var subject string
	searchCmd := &cobra.Command{
		Use:   "search TEXT",
		Short: "Find questions by text (case-insensitive)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			return withStore(cmd.Context(), *configPath, func(ctx context.Context, store *sqlstore.QuestionStore, _ *zap.Logger) error {
				for _, q := range store.Search(ctx, text, subject) {
					fmt.Fprintf(cmd.OutOrStdout(), "#%d [%s] %s (answer %d: %s)\n", q.ID, q.Subject, q.DisplayPrompt(), q.CorrectIndex+1, q.Options[q.CorrectIndex])
				}
				return nil
			})
		},
	}
	searchCmd.Flags().StringVar(&subject, "subject", "", "restrict to one subject")

	countCmd := &cobra.Command{
		Use:   "count [SUBJECT]",
		Short: "Count questions, overall or for one subject",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = strings.ToLower(args[0])
			}
			return withStore(cmd.Context(), *configPath, func(ctx context.Context, store *sqlstore.QuestionStore, _ *zap.Logger) error {
				fmt.Fprintln(cmd.OutOrStdout(), store.Count(ctx, name))
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid question id %q", args[0])
			}
			return withStore(cmd.Context(), *configPath, func(ctx context.Context, store *sqlstore.QuestionStore, _ *zap.Logger) error {
				if _, ok := store.Get(ctx, id); !ok {
					return fmt.Errorf("question %d not found", id)
				}
				return store.Delete(ctx, id)
			})
		},
	}

	cmd.AddCommand(importCmd, searchCmd, countCmd, deleteCmd)
	return cmd
}

func withStore(ctx context.Context, configPath string, fn func(context.Context, *sqlstore.QuestionStore, *zap.Logger) error) error {
	cfg, logger, err := loadEnv(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	gw, err := openGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer gw.Close()
	return fn(ctx, sqlstore.NewQuestionStore(gw), logger)
}

// importQuestions validates every entry before writing any, then adds them. Subjects
// that already hold questions are skipped unless force is set.
func importQuestions(ctx context.Context, store *sqlstore.QuestionStore, r io.Reader, force bool) (int, []string, error) {
	var entries []questionFile
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
		return 0, nil, fmt.Errorf("decode questions: %w", err)
	}

	parsed := make([]domain.Question, 0, len(entries))
	for i, e := range entries {
		correct, err := domain.CorrectIndexFromOrdinal(e.Answer)
		if err != nil {
			return 0, nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		prompt := e.Question
		if strings.TrimSpace(prompt) == "" && e.Image != "" {
			prompt = domain.ImageOnlyPrompt
		}
		q, err := domain.NewQuestion(e.Subject, prompt, e.Options, correct)
		if err != nil {
			return 0, nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		if q.Subject == "" {
			return 0, nil, fmt.Errorf("question %d: subject is required", i+1)
		}
		q.ImageRef = e.Image
		parsed = append(parsed, q)
	}

	allowed := map[string]bool{}
	var skipped []string
	added := 0
	for _, q := range parsed {
		ok, seen := allowed[q.Subject]
		if !seen {
			ok = force || store.Count(ctx, q.Subject) == 0
			allowed[q.Subject] = ok
			if !ok {
				skipped = append(skipped, q.Subject)
			}
			if ok && !app.IsBuiltinSubject(q.Subject) {
				if err := store.AddSubject(ctx, q.Subject); err != nil {
					return added, skipped, err
				}
			}
		}
		if !ok {
			continue
		}
		if _, err := store.Add(ctx, q); err != nil {
			return added, skipped, err
		}
		added++
	}
	return added, skipped, nil
}
