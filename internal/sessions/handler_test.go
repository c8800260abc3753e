package sessions_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"resume-optimizer/internal/bootstrap"
	"resume-optimizer/internal/shared/config"
)

const resumeFixture = `Jane Smith
jane@example.com

Skills
Go, Docker, PostgreSQL

Experience
Beta LLC, Engineer, 2020 - 2024
- Shipped internal tooling used by 30 teams
- Cut deploy time by 60%

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

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
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
	req.Header.Set("X-Guest-Id", "test-guest")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	router := buildTestRouter(t)

	// Create a session from raw text. The fixture has no summary, so the
	// missing-sections stage will ask for one.
	resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions", map[string]any{
		"text":         resumeFixture,
		"requirements": "Go, Docker, Kubernetes",
		"targetRole":   "Backend Engineer",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		SessionID    string `json:"sessionId"`
		CurrentStage string `json:"currentStage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.SessionID == "" {
		t.Fatalf("expected sessionId")
	}
	if created.CurrentStage != "parse_resume" {
		t.Fatalf("expected parse_resume, got %s", created.CurrentStage)
	}
	base := "/api/v1/sessions/" + created.SessionID

	type stepResponse struct {
		Success           bool   `json:"success"`
		Stage             string `json:"stage"`
		UserInputRequired bool   `json:"userInputRequired"`
		InputRequest      *struct {
			Stage           string   `json:"stage"`
			Kind            string   `json:"kind"`
			MissingSections []string `json:"missingSections"`
		} `json:"inputRequest"`
		Progress *struct {
			PercentageComplete int  `json:"percentageComplete"`
			Complete           bool `json:"complete"`
		} `json:"progressUpdate"`
	}

	paused := false
	complete := false
	for i := 0; i < 12 && !complete; i++ {
		stepResp := doJSON(t, router, http.MethodPost, base+"/steps", map[string]any{})
		if stepResp.Code != http.StatusOK {
			t.Fatalf("execute step: expected 200, got %d: %s", stepResp.Code, stepResp.Body.String())
		}
		var step stepResponse
		if err := json.NewDecoder(stepResp.Body).Decode(&step); err != nil {
			t.Fatalf("decode step response: %v", err)
		}
		if !step.Success {
			t.Fatalf("step %s failed: %s", step.Stage, stepResp.Body.String())
		}

		if step.UserInputRequired {
			paused = true
			if step.InputRequest == nil || step.InputRequest.Stage != "missing_sections_input" {
				t.Fatalf("expected input request at missing_sections_input, got %+v", step.InputRequest)
			}
			inputResp := doJSON(t, router, http.MethodPost, base+"/input", map[string]any{
				"sections": map[string]any{
					"summary": []string{"Engineer building Go services and platform tooling."},
				},
			})
			if inputResp.Code != http.StatusOK {
				t.Fatalf("record input: expected 200, got %d: %s", inputResp.Code, inputResp.Body.String())
			}
		}
		if step.Progress != nil && step.Progress.Complete {
			complete = true
		}
	}

	if !paused {
		t.Fatalf("expected the fixture to trigger a missing-sections pause")
	}
	if !complete {
		t.Fatalf("expected the session to complete")
	}

	// State reflects completion.
	stateResp := doJSON(t, router, http.MethodGet, base, nil)
	if stateResp.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d", stateResp.Code)
	}
	var state struct {
		Complete     bool `json:"complete"`
		VersionCount int  `json:"versionCount"`
	}
	if err := json.NewDecoder(stateResp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if !state.Complete {
		t.Fatalf("expected complete state")
	}
	if state.VersionCount < 2 {
		t.Fatalf("expected at least 2 versions (parse + sections), got %d", state.VersionCount)
	}

	// Progress is pinned at 100.
	progressResp := doJSON(t, router, http.MethodGet, base+"/progress", nil)
	if progressResp.Code != http.StatusOK {
		t.Fatalf("progress: expected 200, got %d", progressResp.Code)
	}
	var progress struct {
		PercentageComplete int `json:"percentageComplete"`
	}
	if err := json.NewDecoder(progressResp.Body).Decode(&progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if progress.PercentageComplete != 100 {
		t.Fatalf("expected 100%%, got %d", progress.PercentageComplete)
	}

	// Version 1 is the parsed original.
	versionResp := doJSON(t, router, http.MethodGet, base+"/versions/1", nil)
	if versionResp.Code != http.StatusOK {
		t.Fatalf("version: expected 200, got %d: %s", versionResp.Code, versionResp.Body.String())
	}
	var version struct {
		VersionNumber  int    `json:"versionNumber"`
		ProducingStage string `json:"producingStage"`
	}
	if err := json.NewDecoder(versionResp.Body).Decode(&version); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if version.VersionNumber != 1 || version.ProducingStage != "parse_resume" {
		t.Fatalf("expected version 1 from parse_resume, got %+v", version)
	}

	// Download renders a DOCX container.
	downloadResp := doJSON(t, router, http.MethodGet, base+"/download", nil)
	if downloadResp.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", downloadResp.Code)
	}
	if cd := downloadResp.Header().Get("Content-Disposition"); !strings.Contains(cd, ".docx") {
		t.Fatalf("expected docx attachment, got %q", cd)
	}
	if !bytes.HasPrefix(downloadResp.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected zip magic in download body")
	}

	// Delete removes the session.
	deleteResp := doJSON(t, router, http.MethodDelete, base, nil)
	if deleteResp.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", deleteResp.Code)
	}
	goneResp := doJSON(t, router, http.MethodGet, base, nil)
	if goneResp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", goneResp.Code)
	}
}

func TestSessionUnknownIDReturns404(t *testing.T) {
	router := buildTestRouter(t)

	resp := doJSON(t, router, http.MethodGet, "/api/v1/sessions/does-not-exist", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestSessionCreateRejectsMissingRequirements(t *testing.T) {
	router := buildTestRouter(t)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/sessions", map[string]any{
		"text": resumeFixture,
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
}
