package bootstrap

import (
	"strings"
	"testing"

	"resume-optimizer/internal/shared/config"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		LLMProvider:     "placeholder",
	}
}

func TestBuildDevDefaultsToMemoryRepos(t *testing.T) {
	app, err := Build(devConfig(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app.Close()

	if app.Router == nil {
		t.Fatalf("expected router")
	}
	if app.DB != nil {
		t.Fatalf("expected no database in dev without DATABASE_URL")
	}
	if app.DocumentsRepo == nil || app.OptimizationsRepo == nil {
		t.Fatalf("expected in-memory repos")
	}
	if app.OptimizationsService == nil || app.OptimizationsService.Queue != nil {
		t.Fatalf("expected inline processing without a queue")
	}
}

func TestBuildRejectsMissingDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "prod"
	if _, err := Build(cfg); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestBuildRejectsUnknownProvider(t *testing.T) {
	cfg := devConfig(t)
	cfg.LLMProvider = "delphi"
	if _, err := Build(cfg); err == nil || !strings.Contains(err.Error(), "unknown LLM provider") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestBuildRequiresQueueURLWhenKindSet(t *testing.T) {
	cfg := devConfig(t)
	cfg.QueueKind = "sqs"
	if _, err := Build(cfg); err == nil || !strings.Contains(err.Error(), "SQS_QUEUE_URL") {
		t.Fatalf("expected queue url error, got %v", err)
	}
}

func TestBuildRequiresS3BucketForS3Store(t *testing.T) {
	cfg := devConfig(t)
	cfg.ObjectStoreType = "s3"
	if _, err := Build(cfg); err == nil || !strings.Contains(err.Error(), "S3_BUCKET") {
		t.Fatalf("expected bucket error, got %v", err)
	}
}
