package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suduli/AI-ASIL-Analyser/internal/catalog"
	"github.com/suduli/AI-ASIL-Analyser/internal/core"
	"github.com/suduli/AI-ASIL-Analyser/internal/llm/tasks"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

const testToken = "s3cret-admin"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router  *gin.Engine
	catalog *catalog.Catalog
	exec    *core.MockTaskExecutor
	cookies []*http.Cookie
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	cat := catalog.New(nil)
	require.NoError(t, cat.Replace([]schema.ComponentRecord{
		{
			ID: "brake_system", Name: "Brake System", Category: "Braking Systems",
			Description: "Hydraulic service brakes", Rating: schema.MustRating(3, 4, 3),
			Source: schema.SourceSeed,
		},
		{
			ID: "abs", Name: "ABS", Category: "Braking Systems",
			Rating: schema.MustRating(2, 4, 2), Source: schema.SourceSeed,
		},
		{
			ID: "radio", Name: "Radio", Category: "Infotainment",
			Rating: schema.MustRating(0, 4, 1), Source: schema.SourceSeed,
		},
	}))

	exec := core.NewMockTaskExecutor()
	analyzer := core.NewAnalyzer(cat, exec, core.WithLogger(core.NopLogger()))
	srv, err := New(analyzer, Options{
		SessionSecret: "test-session-secret",
		AdminToken:    token,
		Logger:        core.NopLogger(),
	})
	require.NoError(t, err)
	return &testServer{router: srv.Router(), catalog: cat, exec: exec}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for _, c := range ts.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		ts.cookies = cookies
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

func TestHealth_AssignsRequestID(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["components"])

	rec = ts.do(t, http.MethodGet, "/api/health", nil, requestIDHeader, "req-42")
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestMatrix(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/api/matrix", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Cells []struct {
			Severity        int         `json:"severity"`
			Exposure        int         `json:"exposure"`
			Controllability int         `json:"controllability"`
			ASIL            schema.ASIL `json:"asil"`
		} `json:"cells"`
	}](t, rec)
	assert.Len(t, body.Cells, 80)
	last := body.Cells[len(body.Cells)-1]
	assert.Equal(t, 3, last.Severity)
	assert.Equal(t, schema.ASILD, last.ASIL)
}

func TestListComponents_Filters(t *testing.T) {
	ts := newTestServer(t, "")

	type listBody struct {
		Components []schema.ComponentRecord `json:"components"`
		Count      int                      `json:"count"`
	}

	body := decode[listBody](t, ts.do(t, http.MethodGet, "/api/components", nil))
	assert.Equal(t, 3, body.Count)

	body = decode[listBody](t, ts.do(t, http.MethodGet, "/api/components?category=braking+systems", nil))
	assert.Equal(t, 2, body.Count)

	body = decode[listBody](t, ts.do(t, http.MethodGet, "/api/components?asil=D", nil))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "brake_system", body.Components[0].ID)

	body = decode[listBody](t, ts.do(t, http.MethodGet, "/api/components?q=nothing-matches", nil))
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Components)

	rec := ts.do(t, http.MethodGet, "/api/components?asil=Z", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "asil", decode[errorResponse](t, rec).Field)
}

func TestGetComponent(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/api/components/abs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"asil":"C"`)

	rec = ts.do(t, http.MethodGet, "/api/components/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode[errorResponse](t, rec).RequestID)
}

func TestMutations_RequireAdminToken(t *testing.T) {
	ts := newTestServer(t, testToken)
	body := schema.ComponentRecord{Name: "Rear Wiper Motor", Rating: schema.MustRating(1, 3, 1)}

	rec := ts.do(t, http.MethodPost, "/api/components", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/components", body, bearer("wrong")...)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/components", body, bearer(testToken)...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Component schema.ComponentRecord `json:"component"`
	}](t, rec).Component
	assert.Equal(t, "rear_wiper_motor", created.ID)
	assert.Equal(t, schema.DefaultCategory, created.Category)

	_, err := ts.catalog.Get("rear_wiper_motor")
	assert.NoError(t, err)
}

func TestComponentLifecycle(t *testing.T) {
	ts := newTestServer(t, "")

	dup := schema.ComponentRecord{ID: "abs", Name: "ABS", Category: "Braking Systems", Rating: schema.MustRating(2, 4, 2)}
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodPost, "/api/components", dup).Code)

	invalid := map[string]any{"name": "Steering Rack", "rating": map[string]int{"severity": 7, "exposure": 4, "controllability": 3}}
	rec := ts.do(t, http.MethodPost, "/api/components", invalid)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "severity")

	update := schema.ComponentRecord{Name: "ABS", Category: "Braking Systems", Rating: schema.MustRating(3, 4, 2)}
	rec = ts.do(t, http.MethodPut, "/api/components/abs", update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got, err := ts.catalog.Get("abs")
	require.NoError(t, err)
	assert.Equal(t, schema.MustRating(3, 4, 2), got.Rating)
	assert.Equal(t, schema.SourceSeed, got.Source)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/api/components/missing", update).Code)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/components/radio", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/components/radio", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/components/radio", nil).Code)
}

func TestAnalyze_CatalogComponent(t *testing.T) {
	ts := newTestServer(t, "")
	ts.exec.RatingOutput.Assessment.Rating = schema.MustRating(3, 4, 2)

	rec := ts.do(t, http.MethodPost, "/api/analyze?wait=true", core.AnalysisRequest{Query: "Brake System"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, ts.cookies)

	report := decode[schema.AnalysisReport](t, rec)
	assert.Equal(t, schema.ModeCatalog, report.Mode)
	assert.Equal(t, "brake_system", report.ComponentID)
	assert.Equal(t, schema.CandidateAvailable, report.CandidateStatus)
	require.NotNil(t, report.Comparison)
	assert.Equal(t, schema.ASILD, report.Comparison.ReferenceASIL)
	assert.Equal(t, schema.ASILC, report.Comparison.CandidateASIL)
	assert.NotEmpty(t, report.SessionID)

	rec = ts.do(t, http.MethodGet, "/api/analyses/"+report.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ID, decode[schema.AnalysisReport](t, rec).ID)

	again := decode[schema.AnalysisReport](t, ts.do(t, http.MethodPost, "/api/analyze?wait=true", core.AnalysisRequest{ComponentID: "abs"}))
	assert.Equal(t, report.SessionID, again.SessionID)
}

func TestAnalyze_Errors(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, "/api/analyze", core.AnalysisRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.exec.AutomotiveOutput = tasks.AutomotiveVerdict{Automotive: false, Reason: "kitchen appliance"}
	rec = ts.do(t, http.MethodPost, "/api/analyze", core.AnalysisRequest{Query: "Coffee Maker"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "kitchen appliance")

	rec = ts.do(t, http.MethodGet, "/api/analyses/ANL-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalysis_ScopedToSession(t *testing.T) {
	ts := newTestServer(t, "")
	report := decode[schema.AnalysisReport](t, ts.do(t, http.MethodPost, "/api/analyze?wait=true", core.AnalysisRequest{ComponentID: "abs"}))

	other := &testServer{router: ts.router, catalog: ts.catalog, exec: ts.exec}
	// A different browser gets its own session cookie.
	other.do(t, http.MethodPost, "/api/analyze?wait=true", core.AnalysisRequest{ComponentID: "radio"})
	require.NotEmpty(t, other.cookies)

	for _, req := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/api/analyses/" + report.ID, nil},
		{http.MethodPut, "/api/analyses/" + report.ID + "/overrides", map[string]int{"severity": 1}},
		{http.MethodGet, "/api/analyses/" + report.ID + "/export?format=md", nil},
		{http.MethodPost, "/api/analyses/" + report.ID + "/save", nil},
	} {
		rec := other.do(t, req.method, req.path, req.body)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", req.method, req.path)
	}

	rec := ts.do(t, http.MethodGet, "/api/analyses/"+report.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[schema.AnalysisReport](t, rec).Overrides.Severity)
}

func TestAnalysisOverrides(t *testing.T) {
	ts := newTestServer(t, "")
	ts.exec.RatingOutput.Assessment.Rating = schema.MustRating(3, 4, 2)

	report := decode[schema.AnalysisReport](t, ts.do(t, http.MethodPost, "/api/analyze?wait=true", core.AnalysisRequest{ComponentID: "brake_system"}))

	rec := ts.do(t, http.MethodPut, "/api/analyses/"+report.ID+"/overrides", map[string]int{"controllability": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[schema.AnalysisReport](t, rec)
	require.NotNil(t, updated.Comparison)
	assert.True(t, updated.Comparison.FullMatch())

	rec = ts.do(t, http.MethodPut, "/api/analyses/"+report.ID+"/overrides", map[string]int{"exposure": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdoptRating(t *testing.T) {
	ts := newTestServer(t, testToken)
	ts.exec.RatingOutput.Assessment.Rating = schema.MustRating(2, 3, 2)

	report := decode[schema.AnalysisReport](t, ts.do(t, http.MethodPost, "/api/analyze?wait=true", core.AnalysisRequest{ComponentID: "abs"}))
	require.Equal(t, schema.CandidateAvailable, report.CandidateStatus)

	rec := ts.do(t, http.MethodPost, "/api/components/brake_system/adopt", adoptRequest{AnalysisID: report.ID}, bearer(testToken)...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/components/abs/adopt", adoptRequest{AnalysisID: report.ID}, bearer(testToken)...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := ts.catalog.Get("abs")
	require.NoError(t, err)
	assert.Equal(t, schema.MustRating(2, 3, 2), got.Rating)
	assert.Equal(t, schema.ASILB, got.RecordedASIL)

	rec = ts.do(t, http.MethodPost, "/api/components/abs/adopt", adoptRequest{AnalysisID: "ANL-unknown"}, bearer(testToken)...)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveAnalysis(t *testing.T) {
	ts := newTestServer(t, "")

	report := decode[schema.AnalysisReport](t, ts.do(t, http.MethodPost, "/api/analyze?wait=true", core.AnalysisRequest{Query: "Rear Wiper Motor"}))
	require.Equal(t, schema.ModeManual, report.Mode)

	rec := ts.do(t, http.MethodPost, "/api/analyses/"+report.ID+"/save", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/analyses/"+report.ID+"/save", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":false`)

	_, err := ts.catalog.Get("rear_wiper_motor")
	assert.NoError(t, err)
}

func TestExportAnalysis(t *testing.T) {
	ts := newTestServer(t, "")
	report := decode[schema.AnalysisReport](t, ts.do(t, http.MethodPost, "/api/analyze?wait=true", core.AnalysisRequest{ComponentID: "brake_system"}))

	rec := ts.do(t, http.MethodGet, "/api/analyses/"+report.ID+"/export?format=md", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".md")
	assert.Contains(t, rec.Body.String(), "# ASIL Analysis: Brake System")

	rec = ts.do(t, http.MethodGet, "/api/analyses/"+report.ID+"/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ID, decode[schema.AnalysisReport](t, rec).ID)

	rec = ts.do(t, http.MethodGet, "/api/analyses/"+report.ID+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportCatalogCSV(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/api/components/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "id,name,category"))
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[catalog.Stats](t, rec)
	assert.Equal(t, 3, st.Total)
	require.NotNil(t, st.HighestRisk)
	assert.Equal(t, "brake_system", st.HighestRisk.ID)
}
