package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mombo-site/mombo-api/internal/application"
	domain "github.com/mombo-site/mombo-api/internal/domain/analysis"
	"github.com/mombo-site/mombo-api/internal/domain/failures"
	"github.com/mombo-site/mombo-api/internal/domain/user"
)

// DefaultTargetWidth is the width uploads are scaled to before OCR.
const DefaultTargetWidth = 400

// Recorder receives pipeline measurements. Nil means no metrics.
type Recorder interface {
	ObserveStage(stage string, d time.Duration, err error)
	ObserveVerdict(level domain.RiskLevel, matched int)
}

// Service runs the ingredient-analysis pipeline.
// Safe for concurrent use; it holds no per-request state.
type Service struct {
	Images     domain.ImageProcessor
	OCR        domain.OCRClient
	Normalizer domain.Normalizer
	Dictionary domain.Dictionary
	Results    domain.Repository
	Blobs      domain.BlobStore
	Users      user.Store
	Failures   failures.Repository
	Clock      application.Clock
	Metrics    Recorder
	Logger     *slog.Logger

	TargetWidth int
	Policy      domain.CountPolicy
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

// Analyze runs one upload through the pipeline and persists the outcome.
// Stages run strictly in order; nothing external is called before the image
// decodes.
func (s *Service) Analyze(ctx context.Context, userID int64, data []byte) (domain.Report, error) {
	start := s.now()
	log := s.logger().With("user_id", userID)

	profile, err := s.Users.Get(ctx, userID)
	if err != nil {
		return domain.Report{}, fmt.Errorf("load user %d: %w", userID, err)
	}

	width := s.TargetWidth
	if width <= 0 {
		width = DefaultTargetWidth
	}

	var resized domain.Image
	err = s.stage("preprocess", func() error {
		var err error
		resized, err = s.Images.Resize(data, width)
		return err
	})
	if err != nil {
		s.journal(ctx, userID, 0, failures.PhasePreprocess, err, nil)
		return domain.Report{}, err
	}

	var ocr domain.OCRResult
	err = s.stage("ocr", func() error {
		var err error
		ocr, err = s.OCR.Scan(ctx, resized)
		return err
	})
	if err != nil {
		log.Warn("analysis.ocr_failed", "err", err)
		s.journal(ctx, userID, 0, failures.PhaseOCR, err, nil)
		return domain.Report{}, err
	}

	annotated, tokens, err := s.Images.Annotate(resized, ocr)
	if err != nil {
		s.journal(ctx, userID, 0, failures.PhasePreprocess, err, nil)
		return domain.Report{}, err
	}

	var corrected []string
	err = s.stage("normalize", func() error {
		var err error
		corrected, err = s.Normalizer.Correct(ctx, tokens)
		return err
	})
	if err != nil {
		log.Warn("analysis.normalize_failed", "err", err, "tokens", len(tokens))
		s.journal(ctx, userID, 0, failures.PhaseNormalize, err, map[string]any{"tokens": tokens})
		return domain.Report{}, err
	}

	matcher := domain.Matcher{Dictionary: s.Dictionary, Policy: s.Policy}
	var outcome domain.MatchOutcome
	err = s.stage("match", func() error {
		var err error
		outcome, err = matcher.Match(ctx, corrected)
		return err
	})
	if err != nil {
		log.Error("analysis.match_failed", "err", err)
		s.journal(ctx, userID, 0, failures.PhaseMatch, err, map[string]any{"terms": corrected})
		return domain.Report{}, err
	}
	verdict := domain.Aggregate(outcome)
	elapsed := s.now().Sub(start).Milliseconds()

	result := &domain.Result{UserID: userID, ElapsedMS: elapsed, CreatedAt: s.now()}
	var url string
	err = s.stage("persist", func() error {
		var err error
		url, err = s.persist(ctx, result, annotated, verdict.Matches)
		return err
	})
	if err != nil {
		log.Error("analysis.persist_failed", "result_id", result.ID, "err", err)
		s.journal(ctx, userID, result.ID, failures.PhasePersist, err, nil)
		return domain.Report{}, err
	}

	if s.Metrics != nil {
		s.Metrics.ObserveVerdict(verdict.RiskLevel, len(verdict.Matches))
	}
	log.Info("analysis.completed",
		"result_id", result.ID,
		"risk_level", verdict.RiskLevel,
		"tokens", len(tokens),
		"matched", len(verdict.Matches),
		"elapsed_ms", elapsed,
	)

	return domain.Report{
		AnalysisID:          result.ID,
		RiskLevel:           verdict.RiskLevel,
		User:                profile.Summary(),
		AnalysisImage:       url,
		RiskIngredientCount: verdict.Counts,
		IngredientAnalysis:  verdict.Matches,
		ElapsedMS:           elapsed,
	}, nil
}

// persist creates the result row, uploads the annotated image, sets the URL
// and links matches, in that order. A failure after the row exists leaves it
// as is.
func (s *Service) persist(ctx context.Context, result *domain.Result, img domain.Image, matches []domain.Match) (string, error) {
	if err := s.Results.Create(ctx, result); err != nil {
		return "", fmt.Errorf("%w: create result: %v", domain.ErrPersistence, err)
	}

	key := imageKey(result.ID, img.Ext())
	url, err := s.Blobs.Upload(ctx, key, img.Data, img.ContentType())
	if err != nil {
		return "", fmt.Errorf("%w: upload %s: %v", domain.ErrPersistence, key, err)
	}
	if err := s.Results.SetImage(ctx, result.ID, key, url); err != nil {
		return "", fmt.Errorf("%w: set image: %v", domain.ErrPersistence, err)
	}
	result.ImageKey = key
	result.ImageURL = &url

	for _, m := range matches {
		if err := s.Results.AddMatch(ctx, result.ID, m.ID); err != nil {
			return "", fmt.Errorf("%w: link ingredient %d: %v", domain.ErrPersistence, m.ID, err)
		}
	}
	result.Matches = matches
	return url, nil
}

func (s *Service) stage(name string, fn func() error) error {
	start := s.now()
	err := fn()
	if s.Metrics != nil {
		s.Metrics.ObserveStage(name, s.now().Sub(start), err)
	}
	return err
}

// journal records a failure. Journal errors are only logged.
func (s *Service) journal(ctx context.Context, userID, resultID int64, phase failures.Phase, cause error, details map[string]any) {
	if s.Failures == nil {
		return
	}
	f := &failures.Failure{
		UserID:    userID,
		ResultID:  resultID,
		Phase:     phase,
		Message:   cause.Error(),
		CreatedAt: s.now(),
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			f.DetailsJSON = string(b)
		}
	}
	// request context may already be done
	if err := s.Failures.Save(context.WithoutCancel(ctx), f); err != nil {
		s.logger().Error("analysis.journal_failed", "phase", phase, "err", err)
	}
}

// imageKey returns "analysis/<resultID>/<uuid>.<ext>".
func imageKey(resultID int64, ext string) string {
	key := fmt.Sprintf("analysis/%d/%s", resultID, uuid.NewString())
	if ext != "" {
		key += "." + ext
	}
	return key
}

// History returns one page of the caller's analyses, newest first.
func (s *Service) History(ctx context.Context, userID int64, page, pageSize int) (domain.PaginatedResults, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	items, total, err := s.Results.ListByUser(ctx, userID, page, pageSize)
	if err != nil {
		return domain.PaginatedResults{}, fmt.Errorf("list analyses: %w", err)
	}
	return domain.PaginatedResults{
		Data:       items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Get returns one of the caller's analyses.
func (s *Service) Get(ctx context.Context, userID, id int64) (*domain.Result, error) {
	return s.Results.Get(ctx, userID, id)
}

// RecentFailures lists the caller's most recent pipeline failures.
func (s *Service) RecentFailures(ctx context.Context, userID int64, limit int) ([]*failures.Failure, error) {
	if s.Failures == nil {
		return []*failures.Failure{}, nil
	}
	return s.Failures.ListByUser(ctx, userID, limit)
}

// Delete removes the blob first, then the rows. A blob that cannot be
// removed is logged and does not block the row delete.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	res, err := s.Results.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if res.ImageKey != "" && !s.Blobs.Delete(ctx, res.ImageKey) {
		s.logger().Warn("analysis.blob_delete_failed", "result_id", id, "key", res.ImageKey)
	}
	if err := s.Results.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: delete result: %v", domain.ErrPersistence, err)
	}
	return nil
}
