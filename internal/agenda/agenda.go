// Package agenda handles kegiatan (event/meeting) entries, optionally
// attached to an incoming letter. Entries have no sequencing; the backend
// persists them as submitted.
package agenda

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sinorat/sinorat/internal/apperr"
	"github.com/sinorat/sinorat/internal/models"
)

// Backend is the slice of the REST client the agenda service needs.
type Backend interface {
	CreateAgenda(ctx context.Context, e models.AgendaEntry) (*models.AgendaEntry, error)
	ListAgenda(ctx context.Context, letterInID string) ([]models.AgendaEntry, error)
}

// Service validates and forwards agenda entries.
type Service struct {
	backend Backend
}

// NewService creates an agenda service.
func NewService(b Backend) *Service {
	return &Service{backend: b}
}

var entryFields = []string{"kegiatan", "tempat", "tglMulai", "tglSelesai"}

// Validate checks an agenda entry form, returning every violated rule.
func Validate(e models.AgendaEntry) []string {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.Kegiatan,
			validation.Required.Error("is required")),
		validation.Field(&e.Tempat,
			validation.Required.Error("is required")),
		validation.Field(&e.TglMulai,
			validation.Required.Error("is required"),
			validation.Date("2006-01-02").Error("must be a date in YYYY-MM-DD form")),
		validation.Field(&e.TglSelesai,
			validation.Date("2006-01-02").Error("must be a date in YYYY-MM-DD form"),
			validation.By(notBefore(e.TglMulai))),
	)
	return reasons(err)
}

// notBefore rejects an end date earlier than the start date. Both dates must
// already be well-formed for the rule to apply.
func notBefore(start string) validation.RuleFunc {
	return func(value any) error {
		end, _ := value.(string)
		if start == "" || end == "" {
			return nil
		}
		startT, err1 := time.Parse("2006-01-02", start)
		endT, err2 := time.Parse("2006-01-02", end)
		if err1 != nil || err2 != nil {
			return nil
		}
		if endT.Before(startT) {
			return errors.New("must not be before tglMulai")
		}
		return nil
	}
}

func reasons(err error) []string {
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	for _, f := range entryFields {
		if fieldErr, found := errs[f]; found && fieldErr != nil {
			out = append(out, f+" "+fieldErr.Error())
		}
	}
	return out
}

// Create validates and forwards an agenda entry.
func (s *Service) Create(ctx context.Context, e models.AgendaEntry) (*models.AgendaEntry, error) {
	if r := Validate(e); len(r) > 0 {
		return nil, apperr.ValidationErrors(r)
	}
	return s.backend.CreateAgenda(ctx, e)
}

// List returns agenda entries, optionally filtered by letter reference.
func (s *Service) List(ctx context.Context, letterInID string) ([]models.AgendaEntry, error) {
	return s.backend.ListAgenda(ctx, letterInID)
}
