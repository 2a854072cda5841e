// Package letters resolves human-entered agenda keys to backend letter
// records and answers whether a letter already has dispositions.
package letters

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/sinorat/sinorat/internal/apperr"
	"github.com/sinorat/sinorat/internal/backend"
	"github.com/sinorat/sinorat/internal/models"
)

// Backend is the slice of the REST client the lookup needs.
type Backend interface {
	SearchLetter(ctx context.Context, searchKey string) (*models.Letter, error)
	CheckLetter(ctx context.Context, letterID string) (*backend.CheckResult, error)
	ListDisposisi(ctx context.Context, p backend.ListParams) ([]models.Disposisi, error)
}

// DisposisiStatus is the uniform answer to "does this letter already have a
// disposition", whichever path produced it.
type DisposisiStatus struct {
	IsDisposed   bool               `json:"isDisposed"`
	Dispositions []models.Disposisi `json:"disposisi"`
	Letter       *models.Letter     `json:"letter,omitempty"`
}

// Service implements the lookup protocol.
type Service struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a lookup service.
func NewService(b Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: b, logger: logger, now: time.Now}
}

// BuildSearchKey constructs the backend search key for a (tahun, noAgenda)
// pair. The current calendar year's namespace takes the bare agenda number;
// any other year is prefixed as "tahun/noAgenda". Whether the backend scopes
// agenda uniqueness per year is its own contract; tahun is treated as an
// opaque partition key here.
func BuildSearchKey(tahun, noAgenda string, now time.Time) string {
	if tahun == "" || tahun == strconv.Itoa(now.Year()) {
		return noAgenda
	}
	return tahun + "/" + noAgenda
}

// Search resolves a (tahun, noAgenda) pair to a letter, or ErrNotFound.
func (s *Service) Search(ctx context.Context, tahun, noAgenda string) (*models.Letter, error) {
	key := BuildSearchKey(tahun, noAgenda, s.now())
	letter, err := s.backend.SearchLetter(ctx, key)
	if err != nil {
		return nil, err
	}
	return letter, nil
}

// CheckDisposed resolves the letter and reports its disposition status. The
// dedicated check endpoint is tried first; when it is unavailable the status
// degrades to listing dispositions by letter reference and filtering
// client-side. A missing letter is a blocking condition, not a degradation.
func (s *Service) CheckDisposed(ctx context.Context, tahun, noAgenda string) (*DisposisiStatus, error) {
	letter, err := s.Search(ctx, tahun, noAgenda)
	if err != nil {
		return nil, err
	}

	if res, err := s.backend.CheckLetter(ctx, letter.ID); err == nil {
		return &DisposisiStatus{
			IsDisposed:   res.IsDisposed,
			Dispositions: nonNil(res.Dispositions),
			Letter:       letter,
		}, nil
	} else if !errors.Is(err, apperr.ErrUnavailable) && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	} else {
		s.logger.Warn("check endpoint unavailable, filtering client-side",
			slog.String("letter_id", letter.ID),
			slog.String("error", err.Error()))
	}

	list, err := s.backend.ListDisposisi(ctx, backend.ListParams{
		LetterInID: letter.ID,
		Limit:      100,
	})
	if err != nil {
		return nil, err
	}
	matched := make([]models.Disposisi, 0, len(list))
	for _, d := range list {
		if d.LetterInID == letter.ID {
			matched = append(matched, d)
		}
	}
	return &DisposisiStatus{
		IsDisposed:   len(matched) > 0,
		Dispositions: matched,
		Letter:       letter,
	}, nil
}

func nonNil(list []models.Disposisi) []models.Disposisi {
	if list == nil {
		return []models.Disposisi{}
	}
	return list
}
