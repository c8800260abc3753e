package optimizations_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"resume-optimizer/internal/bootstrap"
	"resume-optimizer/internal/shared/config"
)

const resumeFixture = `John Doe
john.doe@example.com

Summary
Backend engineer focused on Go services.

Skills
Go, PostgreSQL, Docker

Experience
Acme Corp, Senior Engineer, 2019 - 2023
- Built payment processing in Go serving 2M requests per day

Education
State University, BSc Computer Science
`

func buildTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		ObjectStoreType: "local",
		LLMProvider:     "placeholder",
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app.Router
}

func doAs(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func uploadResume(t *testing.T, router *gin.Engine) string {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", "resume.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write([]byte(resumeFixture)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-Id", "user-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var uploaded struct {
		DocumentID string `json:"documentId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if uploaded.DocumentID == "" {
		t.Fatalf("expected documentId in upload response")
	}
	return uploaded.DocumentID
}

func TestOptimizationLifecycleOverHTTP(t *testing.T) {
	router := buildTestRouter(t)
	documentID := uploadResume(t, router)

	resp := doAs(t, router, http.MethodPost, "/api/v1/optimizations", map[string]any{
		"documentId":   documentID,
		"requirements": "Go, Docker, Kubernetes",
		"targetRole":   "Backend Engineer",
	})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("create: expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		OptimizationID string `json:"optimizationId"`
		Status         string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.OptimizationID == "" {
		t.Fatalf("expected optimizationId")
	}
	if created.Status != "queued" {
		t.Fatalf("expected queued, got %s", created.Status)
	}
	base := "/api/v1/optimizations/" + created.OptimizationID

	// Immediate re-poll trips the per-run limiter.
	first := doAs(t, router, http.MethodGet, base, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("poll: expected 200, got %d: %s", first.Code, first.Body.String())
	}
	limited := doAs(t, router, http.MethodGet, base, nil)
	if limited.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on rapid re-poll, got %d", limited.Code)
	}
	if limited.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header on 429")
	}

	type pollResponse struct {
		Status        string `json:"status"`
		ErrorMessage  string `json:"errorMessage"`
		ArtifactReady bool   `json:"artifactReady"`
	}

	var run pollResponse
	deadline := time.Now().Add(15 * time.Second)
	for {
		time.Sleep(1100 * time.Millisecond)
		resp := doAs(t, router, http.MethodGet, base, nil)
		if resp.Code == http.StatusTooManyRequests {
			continue
		}
		if resp.Code != http.StatusOK {
			t.Fatalf("poll: expected 200, got %d: %s", resp.Code, resp.Body.String())
		}
		if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
			t.Fatalf("decode poll response: %v", err)
		}
		if run.Status == "completed" || run.Status == "failed" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run did not reach a terminal status, still %s", run.Status)
		}
	}
	if run.Status != "completed" {
		t.Fatalf("run failed: %s", run.ErrorMessage)
	}
	if !run.ArtifactReady {
		t.Fatalf("expected artifactReady on a completed run")
	}

	download := doAs(t, router, http.MethodGet, base+"/download", nil)
	if download.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d: %s", download.Code, download.Body.String())
	}
	if ct := download.Header().Get("Content-Type"); !strings.Contains(ct, "wordprocessingml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if disp := download.Header().Get("Content-Disposition"); !strings.Contains(disp, ".docx") {
		t.Fatalf("unexpected content disposition %q", disp)
	}
	if !bytes.HasPrefix(download.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip container in the download body")
	}

	list := doAs(t, router, http.MethodGet, "/api/v1/optimizations", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d: %s", list.Code, list.Body.String())
	}
	var items []pollResponse
	if err := json.NewDecoder(list.Body).Decode(&items); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one run in the list, got %d", len(items))
	}
}

func TestOptimizationCreateValidatesInput(t *testing.T) {
	router := buildTestRouter(t)

	resp := doAs(t, router, http.MethodPost, "/api/v1/optimizations", map[string]any{
		"requirements": "Go",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a document, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doAs(t, router, http.MethodPost, "/api/v1/optimizations", map[string]any{
		"documentId":   "does-not-exist",
		"requirements": "Go",
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown document, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestOptimizationDownloadBeforeCompletionConflicts(t *testing.T) {
	router := buildTestRouter(t)

	resp := doAs(t, router, http.MethodGet, "/api/v1/optimizations/nope/download", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown run, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestOptimizationListBlocksGuests(t *testing.T) {
	router := buildTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/optimizations", nil)
	req.Header.Set("X-Guest-Id", "guest-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for guests, got %d: %s", resp.Code, resp.Body.String())
	}
}
