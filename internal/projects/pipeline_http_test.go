package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacf-ai/hacf-backend/internal/llm"
	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

type fakeRunner struct {
	output string
	err    error
	calls  []domain.StageType
}

func (f *fakeRunner) RunStage(ctx context.Context, userDBID, publicID string, stageType domain.StageType, inputOverride string) (string, error) {
	f.calls = append(f.calls, stageType)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func newPipelineRouter(runner StageRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	RegisterPipeline(api, nil, runner, nil)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	}
	return w, parsed
}

func TestProcessLayer_Success(t *testing.T) {
	runner := &fakeRunner{output: "stage output"}
	r := newPipelineRouter(runner)

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/process_layer/hacf-11111-2222/1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "stage output", resp["output"])
	assert.Equal(t, []domain.StageType{domain.StageTaskDefinition}, runner.calls)
}

func TestProcessLayer_AcceptsStageTypeName(t *testing.T) {
	runner := &fakeRunner{output: "out"}
	r := newPipelineRouter(runner)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/process_layer/hacf-11111-2222/refinement", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []domain.StageType{domain.StageRefinement}, runner.calls)
}

func TestProcessLayer_UnknownLayer(t *testing.T) {
	runner := &fakeRunner{output: "out"}
	r := newPipelineRouter(runner)

	w, resp := doJSON(t, r, http.MethodPost, "/api/v1/process_layer/hacf-11111-2222/9", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", resp["status"])
	assert.Empty(t, runner.calls)
}

func TestProcessLayer_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"project not found", domain.ErrProjectNotFound, http.StatusNotFound},
		{"sequence violation", fmt.Errorf("%w: run task_definition first", domain.ErrStageSequence), http.StatusConflict},
		{"remote failure", fmt.Errorf("%w: connection refused", llm.ErrRemote), http.StatusBadGateway},
		{"auth canceled", fmt.Errorf("%w (status 401)", llm.ErrAuthCanceled), http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newPipelineRouter(&fakeRunner{err: tc.err})

			w, resp := doJSON(t, r, http.MethodPost, "/api/v1/process_layer/hacf-11111-2222/2", "")

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, "error", resp["status"])
			assert.NotEmpty(t, resp["message"])
		})
	}
}

func TestProcessLayer_AuthCanceledMessageIsFriendly(t *testing.T) {
	r := newPipelineRouter(&fakeRunner{err: fmt.Errorf("%w (status 401)", llm.ErrAuthCanceled)})

	_, resp := doJSON(t, r, http.MethodPost, "/api/v1/process_layer/hacf-11111-2222/2", "")

	msg, _ := resp["message"].(string)
	assert.Contains(t, msg, "sign-in was canceled")
}

func TestProcessLayer_PassesExplicitInput(t *testing.T) {
	runner := &fakeRunner{output: "out"}
	r := newPipelineRouter(runner)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/process_layer/hacf-11111-2222/1", `{"input":"custom brief"}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseStage(t *testing.T) {
	assert.Equal(t, domain.StageTaskDefinition, parseStage("1"))
	assert.Equal(t, domain.StageFinalOutput, parseStage("5"))
	assert.Equal(t, domain.StageDevelopment, parseStage("development"))
	assert.Equal(t, domain.StageType(""), parseStage("0"))
	assert.Equal(t, domain.StageType(""), parseStage("nope"))
}
