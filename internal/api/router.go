package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/sinorat/sinorat/internal/agenda"
	"github.com/sinorat/sinorat/internal/disposisi"
	"github.com/sinorat/sinorat/internal/letters"
	"github.com/sinorat/sinorat/internal/numbering"
	"github.com/sinorat/sinorat/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, receives disposition events and is mounted at
// GET /events inside the auth group.
// dataRoot is used to resolve the attachments directory.
func NewRouter(ls *letters.Service, ds *disposisi.Service, as *agenda.Service, res *numbering.Resolver,
	authEnabled bool, token string, broker *sse.Broker, dataRoot string) chi.Router {
	h := NewHandler(ls, ds, as, res, broker)
	ah := NewAttachmentHandler(dataRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Letter lookup.
	r.Get("/letters/search", h.SearchLetter)
	r.Get("/letters/disposisi-status", h.DisposisiStatus)

	// Disposition workflow.
	r.Get("/disposisi/next-number", h.NextNumber)
	r.Post("/disposisi", h.CreateDisposisi)
	r.Post("/disposisi/offline", h.CreateOfflineDisposisi)
	r.Get("/disposisi/offline", h.ListOfflineDisposisi)
	r.Post("/disposisi/offline/replay", h.ReplayOfflineDisposisi)

	// Agenda entries.
	r.Post("/agenda", h.CreateAgenda)
	r.Get("/agenda", h.ListAgenda)

	// Scan attachments.
	r.Post("/attachments", ah.Upload)
	r.Get("/attachments/{filename}", ah.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}
