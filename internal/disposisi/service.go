// Package disposisi implements the disposition creation workflow, including
// the explicit offline degradation path.
package disposisi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sinorat/sinorat/internal/apperr"
	"github.com/sinorat/sinorat/internal/models"
)

// OfflineIDPrefix marks locally-originated disposition ids.
const OfflineIDPrefix = "offline-"

// Backend is the slice of the REST client the workflow needs.
type Backend interface {
	CreateDisposisi(ctx context.Context, p models.DisposisiPayload) (*models.Disposisi, error)
}

// Store is the slice of the local cache the workflow needs.
type Store interface {
	SetLastNumber(n int) error
	AppendOffline(d models.OfflineDisposisi) error
	OfflineList() ([]models.OfflineDisposisi, error)
	DeleteOffline(id string) error
}

// ReplayResult summarizes one replay pass over the offline list.
type ReplayResult struct {
	Replayed  []models.Disposisi `json:"replayed"`
	Remaining int                `json:"remaining"`
}

// Service coordinates validation, submission, and local bookkeeping.
type Service struct {
	backend Backend
	store   Store
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a disposition service.
func NewService(b Backend, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: b, store: store, logger: logger, now: time.Now}
}

// Create validates and submits a disposition. On success the consumed number
// becomes the new local floor so a later offline resolution never reuses it.
// Transport failures are returned as-is; the caller decides whether to offer
// the offline path. Nothing here retries.
func (s *Service) Create(ctx context.Context, p models.DisposisiPayload) (*models.Disposisi, error) {
	if reasons := Validate(p); len(reasons) > 0 {
		return nil, apperr.ValidationErrors(reasons)
	}

	d, err := s.backend.CreateDisposisi(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetLastNumber(p.NoDispo); err != nil {
		// The server accepted the record; a failed floor write only degrades
		// a future offline resolution, so log and carry on.
		s.logger.Warn("failed to advance local floor after create",
			slog.Int("no_dispo", p.NoDispo),
			slog.String("error", err.Error()))
	}

	s.logger.Info("disposition created",
		slog.String("id", d.ID),
		slog.String("letter_id", p.LetterInID),
		slog.Int("no_dispo", p.NoDispo))
	return d, nil
}

// CreateOffline synthesizes a local-only disposition record. This is the
// user-visible degradation path: the record id carries the offline prefix,
// the record goes to the offline list, and the local floor advances so the
// number is not suggested again.
func (s *Service) CreateOffline(_ context.Context, p models.DisposisiPayload) (*models.OfflineDisposisi, error) {
	if reasons := Validate(p); len(reasons) > 0 {
		return nil, apperr.ValidationErrors(reasons)
	}

	rec := models.OfflineDisposisi{
		ID:         OfflineIDPrefix + uuid.NewString(),
		LetterInID: p.LetterInID,
		NoDispo:    p.NoDispo,
		TglDispo:   p.TglDispo,
		DispoKe:    p.DispoKe,
		IsiDispo:   p.IsiDispo,
		CreatedAt:  s.now(),
	}
	if err := s.store.AppendOffline(rec); err != nil {
		return nil, fmt.Errorf("store offline disposition: %w", err)
	}
	if err := s.store.SetLastNumber(p.NoDispo); err != nil {
		return nil, fmt.Errorf("advance local floor: %w", err)
	}

	s.logger.Warn("disposition stored offline, pending backend",
		slog.String("id", rec.ID),
		slog.Int("no_dispo", rec.NoDispo))
	return &rec, nil
}

// Offline returns every locally synthesized disposition, oldest first.
func (s *Service) Offline() ([]models.OfflineDisposisi, error) {
	return s.store.OfflineList()
}

// Replay re-posts queued offline dispositions, oldest first, deleting each
// from the queue once the backend accepts it. A transport failure stops the
// pass; a rejection by the backend (a number already taken, say) leaves that
// record queued for an operator to amend and moves on.
func (s *Service) Replay(ctx context.Context) (*ReplayResult, error) {
	queued, err := s.store.OfflineList()
	if err != nil {
		return nil, err
	}

	res := &ReplayResult{Replayed: []models.Disposisi{}}
	for _, rec := range queued {
		d, createErr := s.backend.CreateDisposisi(ctx, models.DisposisiPayload{
			LetterInID: rec.LetterInID,
			NoDispo:    rec.NoDispo,
			TglDispo:   rec.TglDispo,
			DispoKe:    rec.DispoKe,
			IsiDispo:   rec.IsiDispo,
		})
		if createErr != nil {
			if errors.Is(createErr, apperr.ErrUnavailable) {
				s.logger.Warn("replay stopped, backend unavailable",
					slog.String("id", rec.ID),
					slog.String("error", createErr.Error()))
				break
			}
			s.logger.Warn("replay record rejected, leaving it queued",
				slog.String("id", rec.ID),
				slog.String("error", createErr.Error()))
			continue
		}
		if err := s.store.DeleteOffline(rec.ID); err != nil {
			return nil, fmt.Errorf("dequeue replayed disposition %s: %w", rec.ID, err)
		}
		s.logger.Info("offline disposition replayed",
			slog.String("offline_id", rec.ID),
			slog.String("id", d.ID),
			slog.Int("no_dispo", rec.NoDispo))
		res.Replayed = append(res.Replayed, *d)
	}

	remaining, err := s.store.OfflineList()
	if err != nil {
		return nil, err
	}
	res.Remaining = len(remaining)
	return res, nil
}
