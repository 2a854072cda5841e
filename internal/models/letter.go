// Package models defines the record types exchanged with the SINORAT backend.
package models

import "strconv"

// Letter is an incoming letter (surat masuk) as stored by the backend.
// The human-facing key is the (Tahun, NoAgenda) pair; ID is the backend's
// opaque identifier and the only value used as a foreign key.
type Letter struct {
	ID        string `json:"id"`
	Tahun     string `json:"tahun"`
	NoAgenda  int    `json:"noAgenda"`
	NoSurat   string `json:"noSurat,omitempty"`
	Pengirim  string `json:"pengirim,omitempty"`
	Perihal   string `json:"perihal,omitempty"`
	TglSurat  string `json:"tglSurat,omitempty"`
	TglTerima string `json:"tglTerima,omitempty"`
	Jenis     string `json:"jenis,omitempty"`
}

// NomorAgenda renders the conventional display form of the agenda key.
func (l *Letter) NomorAgenda() string {
	if l.Tahun == "" {
		return strconv.Itoa(l.NoAgenda)
	}
	return l.Tahun + "/" + strconv.Itoa(l.NoAgenda)
}
