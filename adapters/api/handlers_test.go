package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonbs/adapters/memory"
	"gonbs/app"
	"gonbs/domain/nbs"
)

func newTestServer(t *testing.T) (*Server, *memory.RunRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := memory.NewRunRepository()
	svc := app.NewService(repo, nil, app.DefaultSettings())
	return NewServer(svc, nil, Config{MaxBodyBytes: 1 << 20}), repo
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decodeBody(t, rec, &body)
	return body.Error.Code
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestIDIsPropagated(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := app.NewService(nil, nil, app.DefaultSettings())
	s := NewServer(svc, nil, Config{MaxBodyBytes: 16})
	rec := do(t, s, http.MethodPost, "/v1/tfce/dense", map[string]interface{}{
		"matrix": [][]float64{{0, 1, 2, 3}, {1, 0, 4, 5}, {2, 4, 0, 6}, {3, 5, 6, 0}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
}

func TestEnhanceDense(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/tfce/dense", map[string]interface{}{
		"matrix": [][]float64{{0, 0.2, 0}, {0.2, 0, 0.1}, {0, 0.1, 0}},
		"dh":     0.1,
		"h":      1,
		"e":      1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res matrixResponse
	decodeBody(t, rec, &res)
	assert.Equal(t, "dense", string(res.Method))
	assert.InDelta(t, 0.04, res.Matrix[0][1], 1e-12)
	assert.InDelta(t, 0.02, res.Matrix[2][1], 1e-12)
	_, err := uuid.Parse(res.RunID)
	assert.NoError(t, err)
}

func TestEnhanceUnknownMethod(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/tfce/fancy", map[string]interface{}{
		"matrix": [][]float64{{0, 1}, {1, 0}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, rec))
}

func TestSparseTFCEConvertsIndices(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/tfce/sparse", map[string]interface{}{
		"i":         []int{1, 2},
		"j":         []int{2, 3},
		"v":         []float64{0.2, 0.1},
		"num_nodes": 4,
		"dh":        0.1,
		"h":         1,
		"e":         1,
		"extent":    "nodes",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res app.NodeScores
	decodeBody(t, rec, &res)
	require.Len(t, res.Scores, 4)
	assert.InDelta(t, 0.07, res.Scores[0], 1e-12)
	assert.InDelta(t, 0.07, res.Scores[1], 1e-12)
	assert.InDelta(t, 0.03, res.Scores[2], 1e-12)
	assert.Zero(t, res.Scores[3])
}

func TestSparseTFCERejectsZeroIndex(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/tfce/sparse", map[string]interface{}{
		"i": []int{0}, "j": []int{1}, "v": []float64{1}, "num_nodes": 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, rec))
}

func TestReferenceAdjacency(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/tfce/reference-adjacency", map[string]interface{}{
		"values":    []float64{0.3, 0.3, 0, 0.2},
		"neighbors": [][]int{{2}, {1, 3}, {2, 4}, {3}},
		"dh":        0.1, "h": 1, "e": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res app.NodeScores
	decodeBody(t, rec, &res)
	assert.InDelta(t, 0.12, res.Scores[0], 1e-12)
	assert.Zero(t, res.Scores[2])
	assert.InDelta(t, 0.03, res.Scores[3], 1e-12)
}

func TestSparseClusters(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/clusters/sparse", map[string]interface{}{
		"i": []int{1, 2, 4}, "j": []int{2, 3, 5}, "num_nodes": 5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res app.ClusterSizes
	decodeBody(t, rec, &res)
	assert.Equal(t, []int{3, 3, 3, 2, 2}, res.Sizes)
}

func TestGLMAndSingularDesign(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/glm", map[string]interface{}{
		"x":        [][]float64{{1}, {1}, {1}},
		"y":        [][]float64{{1}, {2}, {3}},
		"contrast": []float64{1},
		"test":     "onesample",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res app.GLMResult
	decodeBody(t, rec, &res)
	assert.InDelta(t, 3.4641016151377544, res.Statistic[0], 1e-9)
	assert.Equal(t, 2, res.DF2)

	rec = do(t, s, http.MethodPost, "/v1/glm", map[string]interface{}{
		"x":        [][]float64{{1, 2}, {1, 2}, {1, 2}},
		"y":        [][]float64{{1}, {2}, {3}},
		"contrast": []float64{1, 0},
		"test":     "ttest",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "SINGULAR_DESIGN", errorCode(t, rec))
}

func TestNetworkPValues(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/pvalues/network", map[string]interface{}{
		"stats":        []float64{1, 2, 3, 4},
		"labels":       []int{1, 1, 2, 0},
		"permutations": [][]float64{{0, 0, 10, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res app.NetworkResult
	decodeBody(t, rec, &res)
	assert.Equal(t, []int{1, 2}, res.Labels)
	assert.Equal(t, []float64{0, 0.25}, res.Uncorrected)
	assert.Equal(t, []float64{0, 0.5}, res.FWER)
}

func TestMaxComponent(t *testing.T) {
	s, _ := newTestServer(t)
	path := [][]float64{{0, 1, 0}, {1, 0, 1}, {0, 1, 0}}
	empty := [][]float64{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}
	rec := do(t, s, http.MethodPost, "/v1/pvalues/max-component", map[string]interface{}{
		"observed":     path,
		"permutations": [][][]float64{path, empty},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res maxComponentResponse
	decodeBody(t, rec, &res)
	assert.Equal(t, []float64{2, 1}, res.Null)
	assert.Equal(t, 0.5, res.PValues[0][1])
	assert.Equal(t, 1.0, res.PValues[0][2])
	assert.Equal(t, 2.0, res.Statistic[2][1])
}

func TestPipeline(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/pipeline", map[string]interface{}{
		"statistic": []float64{3, 0, -1, 1, 0, 2},
		"permutations": [][]float64{
			{3, 0, 0, 1, 0, 2},
			{0, 0, 0, 0, 0, 0},
			{0, 0, 0, 0, 0, 0},
			{0, 0, 0, 0, 0, 0},
		},
		"method": "none",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res app.PipelineResult
	decodeBody(t, rec, &res)
	assert.Equal(t, 4, res.NumNodes)
	assert.Equal(t, []float64{0.25, 1, 1, 0.25, 1, 0.25}, res.PValues)
	assert.Nil(t, res.Network)
}

func TestRejectsMalformedBodies(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/glm", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))

	rec = do(t, s, http.MethodPost, "/v1/clusters/sparse", map[string]interface{}{"num_nodes": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))

	rec = do(t, s, http.MethodPost, "/v1/tfce/dense", map[string]interface{}{
		"matrix": [][]float64{{0, 1}, {1, 0}},
		"extent": "voxels",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuns(t *testing.T) {
	s, repo := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/clusters/sparse", map[string]interface{}{
		"i": []int{1}, "j": []int{2}, "num_nodes": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created app.ClusterSizes
	decodeBody(t, rec, &created)

	rec = do(t, s, http.MethodGet, "/v1/runs/"+created.RunID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run nbs.Run
	decodeBody(t, rec, &run)
	assert.Equal(t, nbs.RunClusters, run.Kind)
	assert.JSONEq(t, `[2,2]`, string(mustField(t, run.Result, "sizes")))

	rec = do(t, s, http.MethodGet, "/v1/runs?kind=clusters&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []nbs.Run `json:"runs"`
	}
	decodeBody(t, rec, &list)
	assert.Len(t, list.Runs, 1)

	rec = do(t, s, http.MethodGet, "/v1/runs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/runs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runs, err := repo.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func mustField(t *testing.T, raw json.RawMessage, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return m[key]
}

func TestEnhanceRejectsUnboundedSchedule(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/tfce/dense", map[string]interface{}{
		"matrix": [][]float64{{0, 1}, {1, 0}},
		"dh":     1e-300,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PARAMETER", errorCode(t, rec))
}

func TestGLMFWithoutNumeratorDF(t *testing.T) {
	s, repo := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/v1/glm", map[string]interface{}{
		"x":        [][]float64{{1}, {2}, {3}},
		"y":        [][]float64{{1}, {2}, {4}},
		"contrast": []float64{1},
		"test":     "ftest",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res app.GLMResult
	decodeBody(t, rec, &res)
	assert.Equal(t, []float64{0}, res.Statistic)
	assert.Equal(t, 0, res.DF1)

	runs, err := repo.ListRuns(context.Background(), nbs.RunGLM, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestUnencodableResultIsAnError(t *testing.T) {
	s, _ := newTestServer(t)
	// 2^10000 overflows, so the enhanced weight is +Inf.
	rec := do(t, s, http.MethodPost, "/v1/tfce/dense", map[string]interface{}{
		"matrix": [][]float64{{0, 2}, {2, 0}},
		"dh":     0.1,
		"h":      10000,
		"e":      1,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}
