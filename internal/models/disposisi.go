package models

import "time"

// DisposisiPayload is the creation request for a disposition. The backend
// accepts exactly these five fields; anything else in the POST body is a bug.
type DisposisiPayload struct {
	LetterInID string   `json:"letterIn_id"`
	NoDispo    int      `json:"noDispo"`
	TglDispo   string   `json:"tglDispo"`
	DispoKe    []string `json:"dispoKe"`
	IsiDispo   string   `json:"isiDispo"`
}

// Disposisi is a routing decision attached to exactly one incoming letter.
// Read and create only; the backend exposes no update or delete.
type Disposisi struct {
	ID         string   `json:"id"`
	LetterInID string   `json:"letterIn_id"`
	NoDispo    int      `json:"noDispo"`
	TglDispo   string   `json:"tglDispo"`
	DispoKe    []string `json:"dispoKe"`
	IsiDispo   string   `json:"isiDispo"`
}

// OfflineDisposisi is a disposition synthesized locally when the backend is
// unreachable. Its ID carries the "offline-" prefix so the record is never
// mistaken for server data.
type OfflineDisposisi struct {
	ID         string    `json:"id"`
	LetterInID string    `json:"letterIn_id"`
	NoDispo    int       `json:"noDispo"`
	TglDispo   string    `json:"tglDispo"`
	DispoKe    []string  `json:"dispoKe"`
	IsiDispo   string    `json:"isiDispo"`
	CreatedAt  time.Time `json:"created_at"`
}

// AgendaEntry is an event or meeting record, optionally attached to a letter.
// LetterInID is empty for standalone entries. No sequencing applies.
type AgendaEntry struct {
	ID         string `json:"id,omitempty"`
	LetterInID string `json:"letterIn_id,omitempty"`
	Kegiatan   string `json:"kegiatan"`
	Tempat     string `json:"tempat"`
	TglMulai   string `json:"tglMulai"`
	TglSelesai string `json:"tglSelesai,omitempty"`
	JamMulai   string `json:"jamMulai,omitempty"`
	JamSelesai string `json:"jamSelesai,omitempty"`
	Catatan    string `json:"catatan,omitempty"`
}
