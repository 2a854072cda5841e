package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sinorat/sinorat/internal/models"
)

// LastNumber returns the persisted disposition number floor, or 0 when no
// floor has ever been written. Reading never writes.
func (db *DB) LastNumber() (int, error) {
	var v int
	err := db.conn.QueryRow(`SELECT value FROM counters WHERE name = ?`, counterLastDisposisi).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: read counter: %w", err)
	}
	return v, nil
}

// SetLastNumber persists n as the new floor. Writes are last-write-wins;
// monotonicity is the caller's concern.
func (db *DB) SetLastNumber(n int) error {
	_, err := db.conn.Exec(`
		INSERT INTO counters (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, counterLastDisposisi, n)
	if err != nil {
		return fmt.Errorf("cache: write counter: %w", err)
	}
	return nil
}

// AppendOffline stores a locally synthesized disposition record.
func (db *DB) AppendOffline(d models.OfflineDisposisi) error {
	dispoKe, _ := json.Marshal(d.DispoKe)
	_, err := db.conn.Exec(`
		INSERT INTO offline_disposisi (id, letterin_id, no_dispo, tgl_dispo, dispo_ke, isi_dispo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.LetterInID, d.NoDispo, d.TglDispo, string(dispoKe), d.IsiDispo, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("cache: append offline: %w", err)
	}
	return nil
}

// OfflineList returns every offline-created disposition, oldest first.
func (db *DB) OfflineList() ([]models.OfflineDisposisi, error) {
	rows, err := db.conn.Query(`
		SELECT id, letterin_id, no_dispo, tgl_dispo, dispo_ke, isi_dispo, created_at
		FROM offline_disposisi ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("cache: list offline: %w", err)
	}
	defer rows.Close()

	var out []models.OfflineDisposisi
	for rows.Next() {
		var d models.OfflineDisposisi
		var dispoKe string
		if err := rows.Scan(&d.ID, &d.LetterInID, &d.NoDispo, &d.TglDispo, &dispoKe, &d.IsiDispo, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dispoKe), &d.DispoKe); err != nil {
			d.DispoKe = nil
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteOffline removes an offline record, typically after a successful
// replay against the backend.
func (db *DB) DeleteOffline(id string) error {
	res, err := db.conn.Exec(`DELETE FROM offline_disposisi WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("cache: delete offline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cache: offline record %s not found", id)
	}
	return nil
}
