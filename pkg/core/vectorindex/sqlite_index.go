// Package vectorindex implements the semantic-tier merge search: a cosine
// similarity lookup over title/summary/insight embeddings. The SQLite
// backend is grounded on the sqlite-vec + pure-Go-driver combination (no
// cgo, no system SQLite needed); when the vec0 extension fails to load, a
// brute-force in-process fallback keeps search working at reduced scale
// (spec §4.7, "Absence of the backend is not fatal").
package vectorindex

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/y437li/infounit/pkg/core/embedding"
	"github.com/y437li/infounit/pkg/core/store"
)

// Index is the capability set every vector backend implements (spec §9,
// "Vector backend swapability" — upsert, search, clear, stats).
type Index interface {
	Upsert(ctx context.Context, id string, vector []float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]store.SearchHit, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats reports the index's current size.
type Stats struct {
	VectorCount int
	UsingVec0   bool
}

// SQLiteIndex stores embeddings in a SQLite database. If the vec0 virtual
// table extension is available it is used for search; otherwise Search
// falls back to scanning a plain table and computing cosine similarity in
// Go.
type SQLiteIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	usingVec0 bool
}

var _ Index = (*SQLiteIndex)(nil)

// Open opens (creating if needed) a SQLite-backed vector index at path. It
// attempts to create a vec0 virtual table first; if that fails (extension
// unavailable), it transparently falls back to the brute-force table.
func Open(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite vector index: %w", err)
	}

	idx := &SQLiteIndex{db: db}

	_, err = db.Exec(fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_units USING vec0(embedding float[%d])`, embedding.Dimension))
	if err == nil {
		idx.usingVec0 = true
		if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vec_units_map (rowid INTEGER PRIMARY KEY, unit_id TEXT UNIQUE NOT NULL)`); err != nil {
			return nil, fmt.Errorf("create vec_units_map: %w", err)
		}
		return idx, nil
	}

	// vec0 unavailable: fall back to a brute-force table.
	if _, ferr := db.Exec(`CREATE TABLE IF NOT EXISTS vec_units_flat (unit_id TEXT PRIMARY KEY, embedding BLOB NOT NULL)`); ferr != nil {
		return nil, fmt.Errorf("create fallback vector table: %w", ferr)
	}
	return idx, nil
}

// Close closes the underlying database handle.
func (i *SQLiteIndex) Close() error {
	return i.db.Close()
}

// Upsert replaces any prior vector stored for id.
func (i *SQLiteIndex) Upsert(ctx context.Context, id string, vector []float32) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.usingVec0 {
		return i.upsertVec0(ctx, id, vector)
	}
	return i.upsertFlat(ctx, id, vector)
}

func (i *SQLiteIndex) upsertVec0(ctx context.Context, id string, vector []float32) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var rowid int64
	err = tx.QueryRowContext(ctx, `SELECT rowid FROM vec_units_map WHERE unit_id = ?`, id).Scan(&rowid)
	if err == sql.ErrNoRows {
		res, err := tx.ExecContext(ctx, `INSERT INTO vec_units_map (unit_id) VALUES (?)`, id)
		if err != nil {
			return fmt.Errorf("insert vec_units_map: %w", err)
		}
		rowid, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read last insert id: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("lookup vec_units_map: %w", err)
	}

	blob, err := encodeVector(vector)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO vec_units (rowid, embedding) VALUES (?, ?)`, rowid, blob); err != nil {
		return fmt.Errorf("upsert vec_units: %w", err)
	}
	return tx.Commit()
}

func (i *SQLiteIndex) upsertFlat(ctx context.Context, id string, vector []float32) error {
	blob, err := encodeVector(vector)
	if err != nil {
		return err
	}
	_, err = i.db.ExecContext(ctx, `
		INSERT INTO vec_units_flat (unit_id, embedding) VALUES (?, ?)
		ON CONFLICT (unit_id) DO UPDATE SET embedding = excluded.embedding
	`, id, blob)
	if err != nil {
		return fmt.Errorf("upsert vec_units_flat: %w", err)
	}
	return nil
}

// Search returns the topK nearest vectors to vector, scored by cosine
// similarity in [-1, 1].
func (i *SQLiteIndex) Search(ctx context.Context, vector []float32, topK int) ([]store.SearchHit, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.usingVec0 {
		return i.searchVec0(ctx, vector, topK)
	}
	return i.searchFlat(ctx, vector, topK)
}

func (i *SQLiteIndex) searchVec0(ctx context.Context, vector []float32, topK int) ([]store.SearchHit, error) {
	blob, err := encodeVector(vector)
	if err != nil {
		return nil, err
	}
	rows, err := i.db.QueryContext(ctx, `
		SELECT m.unit_id, v.distance
		FROM vec_units v
		JOIN vec_units_map m ON m.rowid = v.rowid
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, blob, topK)
	if err != nil {
		return nil, fmt.Errorf("vec0 search: %w", err)
	}
	defer rows.Close()

	var hits []store.SearchHit
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("scan vec0 hit: %w", err)
		}
		// vec0's default metric is L2 distance over normalized vectors;
		// convert to a cosine-similarity-like score in [-1, 1].
		hits = append(hits, store.SearchHit{ID: id, Score: 1 - distance*distance/2})
	}
	return hits, nil
}

func (i *SQLiteIndex) searchFlat(ctx context.Context, vector []float32, topK int) ([]store.SearchHit, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT unit_id, embedding FROM vec_units_flat`)
	if err != nil {
		return nil, fmt.Errorf("scan fallback vectors: %w", err)
	}
	defer rows.Close()

	var all []store.SearchHit
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan fallback row: %w", err)
		}
		stored, err := decodeVector(blob)
		if err != nil {
			continue
		}
		all = append(all, store.SearchHit{ID: id, Score: embedding.Cosine(vector, stored)})
	}

	sortHitsDescending(all)
	if len(all) > topK {
		all = all[:topK]
	}
	return all, nil
}

// Clear removes every stored vector.
func (i *SQLiteIndex) Clear(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.usingVec0 {
		if _, err := i.db.ExecContext(ctx, `DELETE FROM vec_units`); err != nil {
			return err
		}
		_, err := i.db.ExecContext(ctx, `DELETE FROM vec_units_map`)
		return err
	}
	_, err := i.db.ExecContext(ctx, `DELETE FROM vec_units_flat`)
	return err
}

// Stats reports the index's current vector count and which backend is live.
func (i *SQLiteIndex) Stats(ctx context.Context) (Stats, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	table := "vec_units_flat"
	if i.usingVec0 {
		table = "vec_units_map"
	}
	var count int
	if err := i.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("count vectors: %w", err)
	}
	return Stats{VectorCount: count, UsingVec0: i.usingVec0}, nil
}

func sortHitsDescending(hits []store.SearchHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].Score > hits[j-1].Score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

func encodeVector(vector []float32) ([]byte, error) {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		bits := math.Float32bits(v)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf, nil
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(buf))
	}
	vector := make([]float32, len(buf)/4)
	for i := range vector {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		vector[i] = math.Float32frombits(bits)
	}
	return vector, nil
}
