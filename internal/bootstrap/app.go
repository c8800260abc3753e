// Package bootstrap wires configuration into a runnable application: storage,
// queue, pipeline collaborators, services, handlers and the HTTP router.
// Both cmd/api and cmd/worker build the same App so behavior cannot drift
// between the two entrypoints.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-optimizer/internal/analysis"
	"resume-optimizer/internal/documents"
	"resume-optimizer/internal/llm"
	"resume-optimizer/internal/llm/anthropic"
	"resume-optimizer/internal/llm/gemini"
	"resume-optimizer/internal/llm/openai"
	"resume-optimizer/internal/llm/placeholder"
	"resume-optimizer/internal/optimizations"
	"resume-optimizer/internal/pipeline"
	"resume-optimizer/internal/queue"
	"resume-optimizer/internal/resilience"
	"resume-optimizer/internal/sessions"
	"resume-optimizer/internal/shared/config"
	"resume-optimizer/internal/shared/server"
	"resume-optimizer/internal/shared/storage/db"
	"resume-optimizer/internal/shared/storage/object"
	localstore "resume-optimizer/internal/shared/storage/object/local"
	s3store "resume-optimizer/internal/shared/storage/object/s3"
	"resume-optimizer/internal/shared/telemetry"
)

// App holds the shared dependency graph.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client

	DocumentsRepo     documents.Repo
	OptimizationsRepo optimizations.Repo

	Sessions *sessions.Manager

	DocumentsService     *documents.Service
	SessionsService      *sessions.Service
	OptimizationsService *optimizations.Service

	DocumentsHandler     *documents.Handler
	SessionsHandler      *sessions.Handler
	OptimizationsHandler *optimizations.Handler
}

// Build prepares the full dependency graph and router for the API server.
func Build(cfg config.Config) (*App, error) {
	return build(cfg, db.DefaultServerOptions())
}

// BuildWorker prepares the same graph with a connection pool sized for
// queue consumption instead of request serving.
func BuildWorker(cfg config.Config) (*App, error) {
	return build(cfg, db.DefaultWorkerOptions())
}

func build(cfg config.Config, dbOpts db.Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	telemetry.Configure(cfg.Env)

	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg, dbOpts)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	collab, err := buildCollaborators(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}
	buildServices(app, collab)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:               app.Config,
		DocumentsHandler:     app.DocumentsHandler,
		SessionsHandler:      app.SessionsHandler,
		OptimizationsHandler: app.OptimizationsHandler,
	})

	return app, nil
}

// Close releases the resources Build acquired, in reverse order.
func (a *App) Close() {
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if closer, ok := a.Queue.(interface{ Close() }); ok {
		closer.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	telemetry.Sync()
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.no_database", map[string]any{"mode": "in-memory"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required outside dev")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(opts))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{
				"error": err.Error(),
				"mode":  "in-memory",
			})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	switch cfg.QueueKind {
	case "sqs":
		if strings.TrimSpace(cfg.SQSQueueURL) == "" {
			return nil, errors.New("QUEUE=sqs requires SQS_QUEUE_URL")
		}
		return queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
	case "nats":
		if strings.TrimSpace(cfg.NATSURL) == "" {
			return nil, errors.New("QUEUE=nats requires NATS_URL")
		}
		return queue.NewNATSClient(cfg.NATSURL, "")
	default:
		return nil, nil
	}
}

// buildCollaborators selects the pipeline's parser, scorer, project analyzer,
// generator and embedder by provider. The placeholder provider is fully
// deterministic and needs no keys; the hosted providers share one resilience
// executor so retry and breaker state is per operation, not per component.
func buildCollaborators(ctx context.Context, cfg config.Config) (pipeline.Collaborators, error) {
	switch cfg.LLMProvider {
	case "", "placeholder":
		return pipeline.Collaborators{
			Parser:    analysis.NewHeuristicParser(),
			Scorer:    analysis.NewHeuristicScorer(),
			Projects:  analysis.NewHeuristicProjectAnalyzer(),
			Generator: analysis.NewHeuristicGenerator(),
			Embedder:  placeholder.NewEmbedder(),
		}, nil
	case "openai":
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.EmbeddingModel)
		if err != nil {
			return pipeline.Collaborators{}, err
		}
		exec := resilience.NewExecutor(resilience.DefaultConfig())
		return collaboratorsFromLLM(
			llm.WithResilience("openai", client, exec),
			llm.WithEmbedderResilience("openai", client, exec),
		), nil
	case "anthropic":
		client, err := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.LLMModel)
		if err != nil {
			return pipeline.Collaborators{}, err
		}
		exec := resilience.NewExecutor(resilience.DefaultConfig())
		// Anthropic has no embeddings endpoint; the deterministic embedder
		// keeps similarity scoring self-contained.
		return collaboratorsFromLLM(
			llm.WithResilience("anthropic", client, exec),
			placeholder.NewEmbedder(),
		), nil
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return pipeline.Collaborators{}, err
		}
		exec := resilience.NewExecutor(resilience.DefaultConfig())
		return collaboratorsFromLLM(
			llm.WithResilience("gemini", client, exec),
			placeholder.NewEmbedder(),
		), nil
	default:
		return pipeline.Collaborators{}, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

func collaboratorsFromLLM(client llm.Client, embedder llm.Embedder) pipeline.Collaborators {
	return pipeline.Collaborators{
		Parser:    analysis.NewParser(client),
		Scorer:    analysis.NewScorer(client),
		Projects:  analysis.NewProjectAnalyzer(client),
		Generator: analysis.NewGenerator(client),
		Embedder:  embedder,
	}
}

func buildServices(app *App, collab pipeline.Collaborators) {
	var docRepo documents.Repo
	var optRepo optimizations.Repo
	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		optRepo = &optimizations.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		optRepo = optimizations.NewMemoryRepo()
	}

	docSvc := &documents.Service{
		Store:           app.Store,
		Repo:            docRepo,
		StorageProvider: app.Config.ObjectStoreType,
	}

	manager := sessions.NewManager(app.Config.SessionTTL)
	sessionSvc := &sessions.Service{
		Manager: manager,
		Collab:  collab,
		Docs:    docSvc,
	}

	optSvc := &optimizations.Service{
		Repo:   optRepo,
		Docs:   docSvc,
		Store:  app.Store,
		Queue:  app.Queue,
		Collab: collab,
	}

	app.DocumentsRepo = docRepo
	app.OptimizationsRepo = optRepo
	app.Sessions = manager
	app.DocumentsService = docSvc
	app.SessionsService = sessionSvc
	app.OptimizationsService = optSvc
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.SessionsHandler = sessions.NewHandler(sessionSvc)
	app.OptimizationsHandler = optimizations.NewHandler(optSvc)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
