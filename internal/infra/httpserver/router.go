package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mombo-site/mombo-api/internal/domain/analysis"
	"github.com/mombo-site/mombo-api/internal/domain/failures"
	"github.com/mombo-site/mombo-api/internal/domain/ingredient"
	"github.com/mombo-site/mombo-api/internal/domain/user"
	"github.com/mombo-site/mombo-api/internal/middleware"
)

// AnalysisService is the analysis use-case surface the router needs.
type AnalysisService interface {
	Analyze(ctx context.Context, userID int64, data []byte) (analysis.Report, error)
	History(ctx context.Context, userID int64, page, pageSize int) (analysis.PaginatedResults, error)
	Get(ctx context.Context, userID, id int64) (*analysis.Result, error)
	Delete(ctx context.Context, userID, id int64) error
	RecentFailures(ctx context.Context, userID int64, limit int) ([]*failures.Failure, error)
}

// IngredientService is the dictionary use-case surface the router needs.
type IngredientService interface {
	Import(ctx context.Context, filename string, r io.Reader) (ingredient.ImportSummary, error)
	Search(ctx context.Context, keyword string, limit int) ([]ingredient.Ingredient, error)
}

type Options struct {
	Analysis    AnalysisService
	Ingredients IngredientService
	Logger      *slog.Logger
	Metrics     *middleware.Metrics
	Limiter     *middleware.RateLimiter
	Checkers    map[string]middleware.HealthChecker
	APIKeys     map[string]int64
	// AdminKeys may write to the dictionary. Empty disables HTTP import.
	AdminKeys      []string
	AllowedOrigins []string
	MaxUploadBytes int64
}

type Router struct {
	analysis    AnalysisService
	ingredients IngredientService
	logger      *slog.Logger
	maxUpload   int64
}

func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	r := &Router{
		analysis:    opts.Analysis,
		ingredients: opts.Ingredients,
		logger:      opts.Logger,
		maxUpload:   opts.MaxUploadBytes,
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(opts.Logger))
	if opts.Metrics != nil {
		mux.Use(opts.Metrics.Middleware)
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/ready", middleware.ReadinessHandler(opts.Checkers))
	mux.Get("/live", middleware.LivenessHandler)
	if opts.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(opts.APIKeys))
		if opts.Limiter != nil {
			rt.Use(middleware.RateLimit(opts.Limiter, opts.Metrics))
		}
		rt.Post("/ingredients/analysis", r.wrap(r.handleAnalyze))
		rt.Get("/ingredients/search", r.wrap(r.handleSearch))
		rt.With(middleware.RequireAdminKey(opts.AdminKeys)).
			Post("/ingredients/import", r.wrap(r.handleImport))
		rt.Get("/analyses", r.wrap(r.handleHistory))
		rt.Get("/analyses/failures", r.wrap(r.handleFailures))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Delete("/analyses/{id}", r.wrap(r.handleDelete))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks request validation failures.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return badRequest{msg: fmt.Sprintf(format, args...)}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, msg := classify(err)
		if status >= 500 {
			r.logger.Error("http.handler_error", "path", req.URL.Path, "status", status, "err", err)
		}
		writeJSON(w, status, map[string]string{"error": msg})
	}
}

// classify maps an error to a status and a client-safe message. Upstream and
// storage causes are never echoed.
func classify(err error) (int, string) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, br.msg
	case errors.Is(err, analysis.ErrInvalidImage):
		return http.StatusBadRequest, "image could not be decoded"
	case errors.Is(err, ingredient.ErrUnsupportedFile):
		return http.StatusBadRequest, "only .xlsx and .csv files can be imported"
	case errors.Is(err, ingredient.ErrInvalidFile):
		return http.StatusBadRequest, "dictionary file could not be read"
	case errors.Is(err, ingredient.ErrDuplicate):
		return http.StatusConflict, "ingredient already exists"
	case errors.Is(err, ingredient.ErrEmptyKeyword):
		return http.StatusBadRequest, "keyword is required"
	case errors.Is(err, analysis.ErrNotFound):
		return http.StatusNotFound, "analysis not found"
	case errors.Is(err, user.ErrNotFound):
		return http.StatusUnauthorized, "unknown user"
	case errors.Is(err, analysis.ErrOCRService):
		return http.StatusBadGateway, "text recognition service unavailable"
	case errors.Is(err, analysis.ErrNormalizationService):
		return http.StatusBadGateway, "ingredient correction service unavailable"
	case errors.Is(err, analysis.ErrDictionary):
		return http.StatusServiceUnavailable, "ingredient dictionary unavailable"
	case errors.Is(err, analysis.ErrPersistence):
		return http.StatusInternalServerError, "analysis could not be saved"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func userID(req *http.Request) (int64, error) {
	id, ok := middleware.UserIDFromContext(req.Context())
	if !ok {
		return 0, user.ErrNotFound
	}
	return id, nil
}

// readUpload reads one multipart file field fully, enforcing the size limit.
func (r *Router) readUpload(w http.ResponseWriter, req *http.Request, field string) ([]byte, *multipart.FileHeader, error) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+1<<20)
	if err := req.ParseMultipartForm(r.maxUpload); err != nil {
		return nil, nil, badRequestf("multipart form expected: %v", err)
	}
	f, fh, err := req.FormFile(field)
	if err != nil {
		return nil, nil, badRequestf("%s is required", field)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, r.maxUpload+1))
	if err != nil {
		return nil, nil, badRequestf("reading %s: %v", field, err)
	}
	return data, fh, nil
}

// POST /v1/ingredients/analysis (multipart "image")
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	uid, err := userID(req)
	if err != nil {
		return err
	}
	data, fh, err := r.readUpload(w, req, "image")
	if err != nil {
		return err
	}
	if err := middleware.ValidateImageUpload(fh, data, r.maxUpload); err != nil {
		return badRequest{msg: err.Error()}
	}

	report, err := r.analysis.Analyze(req.Context(), uid, data)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, report)
}

// GET /v1/ingredients/search?keyword=&limit=
func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) error {
	keyword, err := middleware.ValidateKeyword(req.URL.Query().Get("keyword"))
	if err != nil {
		return badRequest{msg: err.Error()}
	}
	limit := middleware.ValidateLimit(middleware.QueryInt(req, "limit", 0))

	items, err := r.ingredients.Search(req.Context(), keyword, limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"keyword": keyword, "ingredients": items})
}

// POST /v1/ingredients/import (multipart "file")
func (r *Router) handleImport(w http.ResponseWriter, req *http.Request) error {
	data, fh, err := r.readUpload(w, req, "file")
	if err != nil {
		return err
	}
	if err := middleware.ValidateImportFilename(fh.Filename); err != nil {
		return fmt.Errorf("%w: %v", ingredient.ErrUnsupportedFile, err)
	}
	sum, err := r.ingredients.Import(req.Context(), fh.Filename, bytes.NewReader(data))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, sum)
}

// GET /v1/analyses?page=&page_size=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	uid, err := userID(req)
	if err != nil {
		return err
	}
	page := middleware.ValidatePage(middleware.QueryInt(req, "page", 1))
	size := middleware.ValidateLimit(middleware.QueryInt(req, "page_size", 20))

	list, err := r.analysis.History(req.Context(), uid, page, size)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/analyses/failures?limit=
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	uid, err := userID(req)
	if err != nil {
		return err
	}
	list, err := r.analysis.RecentFailures(req.Context(), uid, middleware.ValidateLimit(middleware.QueryInt(req, "limit", 20)))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"failures": list})
}

// GET /v1/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	uid, err := userID(req)
	if err != nil {
		return err
	}
	id, err := middleware.ValidateID(chi.URLParam(req, "id"))
	if err != nil {
		return badRequest{msg: err.Error()}
	}
	res, err := r.analysis.Get(req.Context(), uid, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// DELETE /v1/analyses/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	uid, err := userID(req)
	if err != nil {
		return err
	}
	id, err := middleware.ValidateID(chi.URLParam(req, "id"))
	if err != nil {
		return badRequest{msg: err.Error()}
	}
	if err := r.analysis.Delete(req.Context(), uid, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
