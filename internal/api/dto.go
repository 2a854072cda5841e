package api

import "github.com/sinorat/sinorat/internal/models"

// NextNumberResponse is the resolved next disposition number plus the tier
// that produced it ("server", "scan", "local", or "manual").
type NextNumberResponse struct {
	NextNumber int    `json:"nextNumber" example:"42" validate:"required"`
	Source     string `json:"source" example:"server" validate:"required"`
}

// CreateDisposisiResponse pairs the created record with a fresh number
// resolution so the form's displayed next number stays consistent with what
// was just consumed.
type CreateDisposisiResponse struct {
	Disposisi models.Disposisi    `json:"disposisi" validate:"required"`
	Next      *NextNumberResponse `json:"next,omitempty"`
}

// OfflineCreateResponse is the offline-path analog of CreateDisposisiResponse.
type OfflineCreateResponse struct {
	Disposisi models.OfflineDisposisi `json:"disposisi" validate:"required"`
	Next      *NextNumberResponse     `json:"next,omitempty"`
}

// offlineHintResponse is the 502 body for a failed creation: the error plus
// a resolution from whichever tier still answers, so the client can offer
// the offline path with a usable number.
type offlineHintResponse struct {
	Error string              `json:"error" validate:"required"`
	Next  *NextNumberResponse `json:"next,omitempty"`
}

// OfflineListResponse wraps the pending offline dispositions.
type OfflineListResponse struct {
	Disposisi []models.OfflineDisposisi `json:"disposisi" validate:"required"`
	Total     int                       `json:"total" example:"2" validate:"required"`
}

// AgendaListResponse wraps kegiatan entry listings.
type AgendaListResponse struct {
	Agenda []models.AgendaEntry `json:"agenda" validate:"required"`
	Total  int                  `json:"total" example:"3" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful scan upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename" example:"surat-0142.pdf" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/attachments/surat-0142.pdf" validate:"required"`
}
