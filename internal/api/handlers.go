package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sinorat/sinorat/internal/agenda"
	"github.com/sinorat/sinorat/internal/apperr"
	"github.com/sinorat/sinorat/internal/backend"
	"github.com/sinorat/sinorat/internal/disposisi"
	"github.com/sinorat/sinorat/internal/letters"
	"github.com/sinorat/sinorat/internal/models"
	"github.com/sinorat/sinorat/internal/numbering"
	"github.com/sinorat/sinorat/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	letters   *letters.Service
	disposisi *disposisi.Service
	agenda    *agenda.Service
	resolver  *numbering.Resolver
	broker    *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil, in which case no
// events are published.
func NewHandler(ls *letters.Service, ds *disposisi.Service, as *agenda.Service, res *numbering.Resolver, broker *sse.Broker) *Handler {
	return &Handler{letters: ls, disposisi: ds, agenda: as, resolver: res, broker: broker}
}

func (h *Handler) publish(eventType string, data any) {
	if h.broker != nil {
		h.broker.Publish(sse.Event{Type: eventType, Data: data})
	}
}

// nextResolution re-runs the numbering chain after a creation attempt so the
// response can carry the number the form should display next. A floor-read
// failure only costs the companion value, never the creation result.
func (h *Handler) nextResolution(ctx context.Context) *NextNumberResponse {
	n, source, err := h.resolver.Next(ctx)
	if err != nil {
		slog.Warn("post-create number resolution failed", slog.String("error", err.Error()))
		return nil
	}
	return &NextNumberResponse{NextNumber: n, Source: string(source)}
}

// writeError maps a service error to the right HTTP response. Transport
// failures surface as 502 so the client knows the backend is down and can
// offer the offline path; the backend's own rejections keep their status.
func writeError(w http.ResponseWriter, err error) {
	if reasons, ok := apperr.AsValidation(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, validationBody(reasons))
		return
	}
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody("backend rejected credentials"))
	case errors.Is(err, apperr.ErrUnavailable):
		writeJSON(w, http.StatusBadGateway, errorBody("backend unavailable, offline mode available"))
	case errors.As(err, &apiErr):
		writeJSON(w, apiErr.Status, errorBody(apiErr.Message))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// SearchLetter handles GET /api/letters/search.
//
//	@Summary		Find an incoming letter by year and agenda number
//	@Tags			letters
//	@Produce		json
//	@Param			tahun		query		string	false	"Agenda year (defaults to current)"
//	@Param			noAgenda	query		string	true	"Agenda number"
//	@Success		200			{object}	models.Letter
//	@Failure		404			{object}	errResponse
//	@Failure		502			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/letters/search [get]
func (h *Handler) SearchLetter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	noAgenda := q.Get("noAgenda")
	if noAgenda == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'noAgenda' is required"))
		return
	}
	letter, err := h.letters.Search(r.Context(), q.Get("tahun"), noAgenda)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

// DisposisiStatus handles GET /api/letters/disposisi-status.
//
//	@Summary		Report whether a letter already has dispositions
//	@Tags			letters
//	@Produce		json
//	@Param			tahun		query		string	false	"Agenda year (defaults to current)"
//	@Param			noAgenda	query		string	true	"Agenda number"
//	@Success		200			{object}	letters.DisposisiStatus
//	@Failure		404			{object}	errResponse
//	@Failure		502			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/letters/disposisi-status [get]
func (h *Handler) DisposisiStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	noAgenda := q.Get("noAgenda")
	if noAgenda == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'noAgenda' is required"))
		return
	}
	status, err := h.letters.CheckDisposed(r.Context(), q.Get("tahun"), noAgenda)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// NextNumber handles GET /api/disposisi/next-number.
//
//	@Summary		Resolve the next disposition number
//	@Tags			disposisi
//	@Produce		json
//	@Param			manual	query		bool	false	"Use the manual escape hatch (local floor, persisted)"
//	@Success		200		{object}	NextNumberResponse
//	@Security		BearerAuth
//	@Router			/disposisi/next-number [get]
func (h *Handler) NextNumber(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("manual") == "true" {
		n, err := h.resolver.ManualNext()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NextNumberResponse{NextNumber: n, Source: string(numbering.SourceManual)})
		return
	}
	n, source, err := h.resolver.Next(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NextNumberResponse{NextNumber: n, Source: string(source)})
}

// CreateDisposisi handles POST /api/disposisi.
//
//	@Summary		Create a disposition on the backend
//	@Tags			disposisi
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.DisposisiPayload	true	"Disposition to create"
//	@Success		201		{object}	CreateDisposisiResponse
//	@Failure		422		{object}	validationResponse
//	@Failure		502		{object}	offlineHintResponse
//	@Security		BearerAuth
//	@Router			/disposisi [post]
func (h *Handler) CreateDisposisi(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var p models.DisposisiPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	d, err := h.disposisi.Create(r.Context(), p)
	if err != nil {
		// Every attempt that reached the network consumed (or failed to
		// consume) a number, so the failure body carries a fresh resolution
		// too; with the backend down it comes from the local tiers.
		if errors.Is(err, apperr.ErrUnavailable) {
			writeJSON(w, http.StatusBadGateway, offlineHintResponse{
				Error: "backend unavailable, offline mode available",
				Next:  h.nextResolution(r.Context()),
			})
			return
		}
		writeError(w, err)
		return
	}
	h.publish(sse.EventDisposisiCreated, d)
	writeJSON(w, http.StatusCreated, CreateDisposisiResponse{
		Disposisi: *d,
		Next:      h.nextResolution(r.Context()),
	})
}

// CreateOfflineDisposisi handles POST /api/disposisi/offline.
//
//	@Summary		Store a disposition locally while the backend is down
//	@Tags			disposisi
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.DisposisiPayload	true	"Disposition to store"
//	@Success		201		{object}	OfflineCreateResponse
//	@Failure		422		{object}	validationResponse
//	@Security		BearerAuth
//	@Router			/disposisi/offline [post]
func (h *Handler) CreateOfflineDisposisi(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var p models.DisposisiPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	rec, err := h.disposisi.CreateOffline(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publish(sse.EventDisposisiOffline, rec)
	writeJSON(w, http.StatusCreated, OfflineCreateResponse{
		Disposisi: *rec,
		Next:      h.nextResolution(r.Context()),
	})
}

// ReplayOfflineDisposisi handles POST /api/disposisi/offline/replay.
//
//	@Summary		Re-post queued offline dispositions to the backend
//	@Tags			disposisi
//	@Produce		json
//	@Success		200	{object}	disposisi.ReplayResult
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/disposisi/offline/replay [post]
func (h *Handler) ReplayOfflineDisposisi(w http.ResponseWriter, r *http.Request) {
	res, err := h.disposisi.Replay(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range res.Replayed {
		h.publish(sse.EventDisposisiCreated, res.Replayed[i])
	}
	writeJSON(w, http.StatusOK, res)
}

// ListOfflineDisposisi handles GET /api/disposisi/offline.
//
//	@Summary		List dispositions waiting for the backend
//	@Tags			disposisi
//	@Produce		json
//	@Success		200	{object}	OfflineListResponse
//	@Security		BearerAuth
//	@Router			/disposisi/offline [get]
func (h *Handler) ListOfflineDisposisi(w http.ResponseWriter, r *http.Request) {
	list, err := h.disposisi.Offline()
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.OfflineDisposisi{}
	}
	writeJSON(w, http.StatusOK, OfflineListResponse{Disposisi: list, Total: len(list)})
}

// CreateAgenda handles POST /api/agenda.
//
//	@Summary		Record a kegiatan entry
//	@Tags			agenda
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.AgendaEntry	true	"Entry to record"
//	@Success		201		{object}	models.AgendaEntry
//	@Failure		422		{object}	validationResponse
//	@Security		BearerAuth
//	@Router			/agenda [post]
func (h *Handler) CreateAgenda(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var e models.AgendaEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	created, err := h.agenda.Create(r.Context(), e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListAgenda handles GET /api/agenda.
//
//	@Summary		List kegiatan entries
//	@Tags			agenda
//	@Produce		json
//	@Param			letterIn_id	query		string	false	"Filter by letter reference"
//	@Success		200			{object}	AgendaListResponse
//	@Security		BearerAuth
//	@Router			/agenda [get]
func (h *Handler) ListAgenda(w http.ResponseWriter, r *http.Request) {
	list, err := h.agenda.List(r.Context(), r.URL.Query().Get("letterIn_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []models.AgendaEntry{}
	}
	writeJSON(w, http.StatusOK, AgendaListResponse{Agenda: list, Total: len(list)})
}
