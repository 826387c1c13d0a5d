package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chat-quiz-service/internal/app"
	"chat-quiz-service/internal/config"
	"chat-quiz-service/internal/infra/memory"
	redisstore "chat-quiz-service/internal/infra/redis"
	"chat-quiz-service/internal/infra/s3images"
	"chat-quiz-service/internal/infra/sqlstore"
	transport "chat-quiz-service/internal/transport/http"
	"chat-quiz-service/internal/transport/telegram"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, logger, err := loadEnv(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := openGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	defaults := app.DefaultTiming()
	timing := app.Timing{
		Grace:      config.TTLDuration(cfg.Quiz.Grace, defaults.Grace),
		ImagePause: config.TTLDuration(cfg.Quiz.ImagePause, defaults.ImagePause),
		RetryPause: config.TTLDuration(cfg.Quiz.RetryPause, defaults.RetryPause),
	}
	base := app.DefaultLimits()
	limits := app.Limits{
		DefaultLimit:   config.OrDefault(cfg.Quiz.DefaultLimit, base.DefaultLimit),
		MaxLimit:       config.OrDefault(cfg.Quiz.MaxLimit, base.MaxLimit),
		DefaultSeconds: config.OrDefault(cfg.Quiz.DefaultSeconds, base.DefaultSeconds),
		MinSeconds:     config.OrDefault(cfg.Quiz.MinSeconds, base.MinSeconds),
		MaxSeconds:     config.OrDefault(cfg.Quiz.MaxSeconds, base.MaxSeconds),
	}
	// the mirror key must outlive the longest quiz limits allow
	redisTTL := config.TTLDuration(cfg.Redis.TTL, timing.Longest(limits)+10*time.Minute)
	countTTL := config.TTLDuration(cfg.Quiz.CountTTL, 10*time.Minute)

	questions := sqlstore.NewQuestionStore(gw)
	var (
		subjects app.SubjectCatalog
		sessions app.SessionRepository
	)
	if redisClient != nil {
		subjects = redisstore.NewCountCache(redisClient, questions, countTTL)
		sessions = redisstore.NewSessionStore(redisClient, redisTTL, logger.Named("sessions"))
	} else {
		subjects = memory.NewCountCache(questions, countTTL)
		sessions = memory.NewSessionStore()
	}

	var opts []app.Option
	if s3cfg := cfg.Images.S3; s3cfg.Region != "" {
		resolver, err := s3images.New(ctx, s3images.Config{
			Region:          s3cfg.Region,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			Endpoint:        s3cfg.Endpoint,
			PresignTTL:      config.TTLDuration(s3cfg.PresignTTL, 0),
		}, logger)
		if err != nil {
			return err
		}
		opts = append(opts, app.WithImageResolver(resolver))
	}

	wsHandler := transport.NewWSHandler(nil, logger.Named("ws"))

	var (
		bot      *telegram.Bot
		fallback app.Transport
	)
	if cfg.Telegram.Token != "" {
		bot, err = telegram.New(cfg.Telegram.Token, cfg.Telegram.Debug, logger.Named("telegram"))
		if err != nil {
			return err
		}
		fallback = bot
	} else {
		logger.Warn("telegram token not configured, serving websocket rooms only")
	}
	outbound := app.NewTransportMux(fallback, wsHandler)

	users := sqlstore.NewUsers(gw)
	engine := app.NewEngine(app.Deps{
		Sessions:  sessions,
		Questions: questions,
		Records:   sqlstore.NewSessions(gw),
		Scores:    sqlstore.NewScores(gw),
		Users:     users,
		Transport: outbound,
	}, timing, logger.Named("engine"), opts...)

	commander := app.NewCommander(app.CommanderDeps{
		Engine:    engine,
		Transport: outbound,
		Users:     users,
		Subjects:  subjects,
		Boards:    sqlstore.NewRankings(gw),
		Ledger:    sqlstore.NewLedger(gw),
	}, limits, cfg.Telegram.Admins, logger.Named("commands"))

	inbound := app.Inbound{Commander: commander, Engine: engine}
	wsHandler.SetHandler(inbound)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(wsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if bot != nil {
		g.Go(func() error {
			return bot.Run(gctx, inbound)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down, publishing results of running quizzes")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// stop accepting commands before the engine drains
		serverErr := server.Shutdown(shutdownCtx)
		if err := engine.Shutdown(shutdownCtx); err != nil {
			logger.Warn("quiz sessions did not finish in time", zap.Error(err))
		}
		return serverErr
	})
	return g.Wait()
}
