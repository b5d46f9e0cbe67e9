package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"hsindex/internal/dataset"
	"hsindex/internal/embedding"
)

// ErrArtifactMismatch is returned by Load when the saved index was built
// with a different embedder or format than the one configured.
var ErrArtifactMismatch = errors.New("index artifact does not match configuration")

const artifactVersion = "1"

const artifactSchema = `
CREATE TABLE meta (
    key TEXT PRIMARY KEY,
    value BLOB NOT NULL
);

CREATE TABLE units (
    slot INTEGER PRIMARY KEY,
    text TEXT NOT NULL,
    source TEXT NOT NULL,
    code TEXT NOT NULL DEFAULT '',
    heading TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    file TEXT NOT NULL DEFAULT '',
    vector BLOB
);
`

// Save writes units, vectors and embedder state to a SQLite file at path.
// The file is written beside path and renamed into place.
func (ix *Index) Save(ctx context.Context, path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.built {
		return ErrNotBuilt
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	tmp := path + ".tmp"
	_ = os.Remove(tmp)
	if err := ix.writeArtifact(ctx, tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publishing artifact: %w", err)
	}
	ix.logger.Debug("index artifact saved", zap.String("path", path), zap.Int("units", len(ix.units)))
	return nil
}

func (ix *Index) writeArtifact(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, artifactSchema); err != nil {
		return fmt.Errorf("creating artifact schema: %w", err)
	}

	meta := map[string][]byte{
		"version":   []byte(artifactVersion),
		"embedder":  []byte(ix.embedder.Name()),
		"dimension": []byte(strconv.Itoa(ix.embedder.Dimension())),
		"build_id":  []byte(ix.buildID),
		"built_at":  []byte(ix.builtAt.Format(time.RFC3339Nano)),
	}
	if st, ok := ix.embedder.(embedding.Stateful); ok {
		state, err := st.MarshalState()
		if err != nil {
			return fmt.Errorf("embedder state: %w", err)
		}
		meta["embedder_state"] = state
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("writing meta %s: %w", k, err)
		}
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO units (slot, text, source, code, heading, description, file, vector) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, u := range ix.units {
		var blob []byte
		if v := ix.vectors[i]; v != nil {
			blob = encodeVector(v)
		}
		if _, err := stmt.ExecContext(ctx, u.Slot, u.Text, string(u.Source), u.Code, u.Heading, u.Description, u.File, blob); err != nil {
			return fmt.Errorf("writing unit %d: %w", u.Slot, err)
		}
	}
	return tx.Commit()
}

// Load restores an index saved by Save and refills the store without
// re-embedding. A missing file yields an error wrapping os.ErrNotExist.
func (ix *Index) Load(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening artifact: %w", err)
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return err
	}
	if v := string(meta["version"]); v != artifactVersion {
		return fmt.Errorf("%w: version %q", ErrArtifactMismatch, v)
	}
	if name := string(meta["embedder"]); name != ix.embedder.Name() {
		return fmt.Errorf("%w: built with %q, configured %q", ErrArtifactMismatch, name, ix.embedder.Name())
	}
	dim, err := strconv.Atoi(string(meta["dimension"]))
	if err != nil {
		return fmt.Errorf("%w: bad dimension", ErrArtifactMismatch)
	}
	if st, ok := ix.embedder.(embedding.Stateful); ok {
		if err := st.UnmarshalState(meta["embedder_state"]); err != nil {
			return fmt.Errorf("restoring embedder state: %w", err)
		}
	}
	if d := ix.embedder.Dimension(); d != 0 && d != dim {
		return fmt.Errorf("%w: dimension %d, embedder has %d", ErrArtifactMismatch, dim, d)
	}

	units, vectors, err := readUnits(ctx, db, dim)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.fill(ctx, dim, units, vectors); err != nil {
		return err
	}
	ix.buildID = string(meta["build_id"])
	ix.builtAt, _ = time.Parse(time.RFC3339Nano, string(meta["built_at"]))
	ix.logger.Info("index loaded",
		zap.String("path", path),
		zap.String("build_id", ix.buildID),
		zap.Int("units", len(units)),
	)
	return nil
}

func readMeta(ctx context.Context, db *sql.DB) (map[string][]byte, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactMismatch, err)
	}
	defer rows.Close()
	meta := make(map[string][]byte)
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func readUnits(ctx context.Context, db *sql.DB, dim int) ([]Unit, [][]float32, error) {
	rows, err := db.QueryContext(ctx, `SELECT slot, text, source, code, heading, description, file, vector FROM units ORDER BY slot`)
	if err != nil {
		return nil, nil, fmt.Errorf("reading units: %w", err)
	}
	defer rows.Close()
	var (
		units   []Unit
		vectors [][]float32
	)
	for rows.Next() {
		var (
			u    Unit
			src  string
			blob []byte
		)
		if err := rows.Scan(&u.Slot, &u.Text, &src, &u.Code, &u.Heading, &u.Description, &u.File, &blob); err != nil {
			return nil, nil, err
		}
		if u.Slot != len(units) {
			return nil, nil, fmt.Errorf("%w: slot gap at %d", ErrArtifactMismatch, u.Slot)
		}
		u.Source = dataset.Source(src)
		var vec []float32
		if blob != nil {
			vec, err = decodeVector(blob)
			if err != nil {
				return nil, nil, err
			}
			if len(vec) != dim {
				return nil, nil, fmt.Errorf("%w: slot %d has %d components", ErrArtifactMismatch, u.Slot, len(vec))
			}
		}
		units = append(units, u)
		vectors = append(vectors, vec)
	}
	return units, vectors, rows.Err()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: vector blob of %d bytes", ErrArtifactMismatch, len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
