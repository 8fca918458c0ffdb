package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
	"github.com/mombo-site/mombo-api/internal/domain/failures"
	"github.com/mombo-site/mombo-api/internal/domain/ingredient"
	"github.com/mombo-site/mombo-api/internal/domain/user"
	"github.com/mombo-site/mombo-api/internal/middleware"
)

var pngHead = []byte("\x89PNG\r\n\x1a\nfake-png-body")

type stubAnalysis struct {
	err        error
	gotUser    int64
	gotData    []byte
	deletedID  int64
	historyArg [2]int
}

func (s *stubAnalysis) Analyze(_ context.Context, uid int64, data []byte) (analysis.Report, error) {
	s.gotUser, s.gotData = uid, data
	if s.err != nil {
		return analysis.Report{}, s.err
	}
	return analysis.Report{
		AnalysisID:          9,
		RiskLevel:           analysis.RiskMiddle,
		User:                user.Summary{UserNo: uid, Email: "u@mombo.site"},
		AnalysisImage:       "http://blob/analysis/9/x.png",
		RiskIngredientCount: analysis.RiskCount{"total": 1, "1등급": 0, "2등급": 1},
		IngredientAnalysis:  []analysis.Match{{ID: 1, Name: "아세클로페낙", Level: "2등급", Reason: "위장 장애"}},
	}, nil
}

func (s *stubAnalysis) History(_ context.Context, _ int64, page, size int) (analysis.PaginatedResults, error) {
	s.historyArg = [2]int{page, size}
	return analysis.PaginatedResults{Data: []*analysis.Result{}, Page: page, PageSize: size}, s.err
}

func (s *stubAnalysis) Get(_ context.Context, _, id int64) (*analysis.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &analysis.Result{ID: id}, nil
}

func (s *stubAnalysis) Delete(_ context.Context, _, id int64) error {
	s.deletedID = id
	return s.err
}

func (s *stubAnalysis) RecentFailures(context.Context, int64, int) ([]*failures.Failure, error) {
	return []*failures.Failure{{Phase: failures.PhaseOCR}}, s.err
}

type stubIngredients struct {
	err      error
	filename string
	keyword  string
	limit    int
}

func (s *stubIngredients) Import(_ context.Context, filename string, r io.Reader) (ingredient.ImportSummary, error) {
	s.filename = filename
	_, _ = io.ReadAll(r)
	if s.err != nil {
		return ingredient.ImportSummary{}, s.err
	}
	return ingredient.ImportSummary{Inserted: 2, Skipped: 1}, nil
}

func (s *stubIngredients) Search(_ context.Context, keyword string, limit int) ([]ingredient.Ingredient, error) {
	s.keyword, s.limit = keyword, limit
	return []ingredient.Ingredient{{ID: 1, NameKr: "향료"}}, s.err
}

func newTestRouter(a *stubAnalysis, i *stubIngredients) http.Handler {
	return NewRouter(Options{
		Analysis:       a,
		Ingredients:    i,
		Metrics:        middleware.NewMetrics(prometheus.NewRegistry()),
		Limiter:        middleware.NewRateLimiter(100, 10),
		APIKeys:        map[string]int64{"key-7": 7, "key-8": 8},
		AdminKeys:      []string{"key-7"},
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: 1 << 20,
	})
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	return doAs(t, h, req, "key-7")
}

func doAs(t *testing.T, h http.Handler, req *http.Request, key string) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+key)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func importRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, "file", filename, data)
	req := httptest.NewRequest(http.MethodPost, "/v1/ingredients/import", body)
	req.Header.Set("Content-Type", ct)
	return req
}

func TestAnalyze_Success(t *testing.T) {
	a := &stubAnalysis{}
	h := newTestRouter(a, &stubIngredients{})

	body, ct := multipartBody(t, "image", "label.png", pngHead)
	req := httptest.NewRequest(http.MethodPost, "/v1/ingredients/analysis", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, h, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 7, a.gotUser)
	assert.Equal(t, pngHead, a.gotData)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "middle", got["riskLevel"])
	assert.Equal(t, map[string]any{"total": 1.0, "1등급": 0.0, "2등급": 1.0}, got["riskIngredientCount"])
	assert.Equal(t, map[string]any{"userNo": 7.0, "email": "u@mombo.site"}, got["user"])
	assert.Len(t, got["ingredientAnalysis"], 1)
}

func TestAnalyze_MissingImage(t *testing.T) {
	a := &stubAnalysis{}
	h := newTestRouter(a, &stubIngredients{})

	body, ct := multipartBody(t, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/ingredients/analysis", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, h, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "image is required")
	assert.Nil(t, a.gotData)
}

func TestAnalyze_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("decode: %w", analysis.ErrInvalidImage), http.StatusBadRequest},
		{fmt.Errorf("%w: timeout", analysis.ErrOCRService), http.StatusBadGateway},
		{fmt.Errorf("%w: 500", analysis.ErrNormalizationService), http.StatusBadGateway},
		{fmt.Errorf("%w: conn refused", analysis.ErrDictionary), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: upload", analysis.ErrPersistence), http.StatusInternalServerError},
		{fmt.Errorf("load user: %w", user.ErrNotFound), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := newTestRouter(&stubAnalysis{err: tt.err}, &stubIngredients{})
			body, ct := multipartBody(t, "image", "label.png", pngHead)
			req := httptest.NewRequest(http.MethodPost, "/v1/ingredients/analysis", body)
			req.Header.Set("Content-Type", ct)
			rec := do(t, h, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.NotContains(t, rec.Body.String(), "conn refused", "causes are not echoed")
		})
	}
}

func TestRequiresAPIKey(t *testing.T) {
	h := newTestRouter(&stubAnalysis{}, &stubIngredients{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/analyses", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearch(t *testing.T) {
	i := &stubIngredients{}
	h := newTestRouter(&stubAnalysis{}, i)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/ingredients/search?keyword=%ED%96%A5&limit=500", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "향", i.keyword)
	assert.Equal(t, 100, i.limit)
	assert.Contains(t, rec.Body.String(), "향료")

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/ingredients/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImport(t *testing.T) {
	i := &stubIngredients{}
	h := newTestRouter(&stubAnalysis{}, i)

	rec := do(t, h, importRequest(t, "dict.csv", []byte("a,b\n")))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"inserted":2,"skipped":1}`, rec.Body.String())
	assert.Equal(t, "dict.csv", i.filename)

	rec = do(t, h, importRequest(t, "dict.pdf", []byte("%PDF")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImport_CorruptFileIsBadRequest(t *testing.T) {
	i := &stubIngredients{err: fmt.Errorf("%w: open xlsx: zip: not a valid zip file", ingredient.ErrInvalidFile)}
	h := newTestRouter(&stubAnalysis{}, i)

	rec := do(t, h, importRequest(t, "dict.xlsx", []byte("not a zip")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"dictionary file could not be read"}`, rec.Body.String())

	i.err = fmt.Errorf("insert ingredients: %w", ingredient.ErrDuplicate)
	rec = do(t, h, importRequest(t, "dict.csv", []byte("a,b\n")))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestImport_RequiresAdminKey(t *testing.T) {
	i := &stubIngredients{}
	h := newTestRouter(&stubAnalysis{}, i)

	rec := doAs(t, h, importRequest(t, "dict.csv", []byte("a,b\n")), "key-8")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, i.filename, "service is not reached")

	rec = doAs(t, h, httptest.NewRequest(http.MethodGet, "/v1/ingredients/search?keyword=a", nil), "key-8")
	assert.Equal(t, http.StatusOK, rec.Code, "non-admin keys keep read access")
}

func TestHistoryGetDelete(t *testing.T) {
	a := &stubAnalysis{}
	h := newTestRouter(a, &stubIngredients{})

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/analyses?page=2&page_size=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]int{2, 5}, a.historyArg)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/analyses/3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":3`)

	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/v1/analyses/3", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 3, a.deletedID)

	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/v1/analyses/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/analyses/failures", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"ocr"`)

	a.err = analysis.ErrNotFound
	rec = do(t, h, httptest.NewRequest(http.MethodDelete, "/v1/analyses/4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(&stubAnalysis{}, &stubIngredients{})
	do(t, h, httptest.NewRequest(http.MethodGet, "/v1/analyses", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mombo_http_requests_total{method="GET",route="/v1/analyses",status="200"} 1`)
}
