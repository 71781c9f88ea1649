package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aiquiz-service/internal/app"
	"aiquiz-service/internal/channel"
	"aiquiz-service/internal/config"
	"aiquiz-service/internal/domain"
	"aiquiz-service/internal/extract"
	"aiquiz-service/internal/generate"
	"aiquiz-service/internal/infra/memory"
	"aiquiz-service/internal/infra/pdf"
	pgstore "aiquiz-service/internal/infra/postgres"
	redisinfra "aiquiz-service/internal/infra/redis"
	"aiquiz-service/internal/ingest"
	"aiquiz-service/internal/logger"
	transport "aiquiz-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

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
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.DeckLoader = memory.NewStaticDeckStore(sampleDecks())
	if pool != nil {
		loader = pgstore.NewDeckStore(pool)
	}

	deckTTL := config.TTLDuration(cfg.Deck.TTL, 10*time.Minute)
	var decks app.DeckRepository
	if redisClient != nil {
		decks = redisinfra.NewDeckRepository(redisClient, loader, deckTTL)
	} else {
		decks = memory.NewDeckRepository(loader, deckTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		store := redisinfra.NewSessionStore(redisClient, redisTTL)
		go store.KeepAlive(ctx)
		sessions = store
	} else {
		sessions = memory.NewSessionStore()
	}

	buffer := config.IntOr(cfg.Session.ChannelBuffer, channel.DefaultBuffer)
	var bus channel.Bus = channel.NewHub(buffer, log)
	if cfg.RedisBus() {
		if redisClient == nil {
			return errors.New("session.bus is redis but redis.addr is empty")
		}
		bus = redisinfra.NewBus(redisClient, buffer, log)
	}

	live := app.NewLiveService(sessions, decks, bus, app.LiveOptions{
		TickInterval: config.TTLDuration(cfg.Session.Tick, app.DefaultTickInterval),
		Logger:       log,
	})

	var (
		questionGen transport.QuestionGenerator
		artifacts   app.ArtifactGenerator
	)
	if cfg.GenAI.APIKey != "" {
		client, err := generate.NewClient(ctx, cfg.GenAI.APIKey)
		if err != nil {
			return fmt.Errorf("genai client: %w", err)
		}
		gen := generate.New(client.Models, generate.Options{
			TextModel:            cfg.GenAI.TextModel,
			ImageModel:           cfg.GenAI.ImageModel,
			Timeout:              config.TTLDuration(cfg.GenAI.Timeout, generate.DefaultTimeout),
			VariationConcurrency: cfg.GenAI.VariationConcurrency,
			Logger:               log,
		})
		questionGen, artifacts = gen, gen
	} else {
		log.Warn().Msg("genai api key not set; generation endpoints are disabled")
	}

	renderer, err := pdf.NewWriter(cfg.Export.FontPath)
	if err != nil {
		return err
	}
	if cfg.Export.FontPath == "" {
		log.Warn().Msg("export font not set; pdf export is disabled")
	}

	router := transport.NewRouter(transport.Handlers{
		Authoring: transport.NewAuthoringHandler(transport.AuthoringOptions{
			Ingester:       ingest.NewIngester(ingest.Pdftoppm{Path: cfg.Ingest.Pdftoppm, DPI: cfg.Ingest.DPI}, log),
			Extractor:      newExtractor(cfg, log),
			Generator:      questionGen,
			Decks:          app.NewDeckService(decks),
			MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
			Logger:         log,
		}),
		Sessions: transport.NewSessionHandler(live, app.NewFinalsService(live, artifacts, renderer, log), log),
		WS:       transport.NewWSHandler(live, cfg.Server.AllowedOrigins, log),
	}, transport.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Bool("redis_bus", cfg.RedisBus()).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newExtractor(cfg config.Config, log zerolog.Logger) *extract.Extractor {
	return extract.New(extract.Options{
		UserAgent: cfg.Extract.UserAgent,
		MaxChars:  cfg.Extract.MaxChars,
		Timeout:   config.TTLDuration(cfg.Extract.Timeout, extract.DefaultTimeout),
		Logger:    log,
	})
}

// sampleDecks seeds the database-less mode with one playable deck.
func sampleDecks() map[string]domain.Deck {
	return map[string]domain.Deck{
		"demo": {
			ID:    "demo",
			Title: "Demo Quiz",
			Questions: []domain.Question{
				{
					ID:               "demo-q1",
					Kind:             domain.KindMultipleChoice,
					Prompt:           "What is 2 + 2?",
					Options:          []string{"3", "4", "5", "6"},
					CorrectAnswer:    "4",
					Explanation:      "2 + 2 = 4.",
					TimeLimitSeconds: domain.DefaultTimeLimitSeconds,
				},
				{
					ID:               "demo-q2",
					Kind:             domain.KindShortAnswer,
					Prompt:           "Which gas do plants absorb for photosynthesis?",
					Options:          []string{},
					CorrectAnswer:    "CO2",
					Explanation:      "Plants take in carbon dioxide.",
					TimeLimitSeconds: 20,
				},
			},
		},
	}
}
