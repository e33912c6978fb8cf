package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-rec/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.CatalogRepository = (*Store)(nil)

// DatabaseFile is the catalog file name inside the data directory.
const DatabaseFile = "catalog.db"

const (
	metaModel      = "embedding_model"
	metaDimensions = "embedding_dimensions"
	metaImportedAt = "imported_at"
)

// Store is the SQLite catalog repository.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-rec/data/catalog.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-rec", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_catalog.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Items ====================

// SaveItems stores or updates items. New items are appended after the
// existing catalog; updated items keep their position.
func (s *Store) SaveItems(ctx context.Context, items []domain.Item) error {
	if len(items) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return saveItems(ctx, tx, items)
	})
}

func saveItems(ctx context.Context, tx *sql.Tx, items []domain.Item) error {
	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), -1) + 1 FROM items").Scan(&next); err != nil {
		return fmt.Errorf("reading next position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (position, id, name, attributes, images)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			attributes = excluded.attributes,
			images = excluded.images
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		item := &items[i]
		if item.ID == "" {
			return fmt.Errorf("%w: item %d has no id", domain.ErrInvalidInput, i)
		}

		attrs, err := marshalOr(item.Attributes, "{}")
		if err != nil {
			return fmt.Errorf("marshalling attributes of %s: %w", item.ID, err)
		}
		images, err := marshalOr(item.Images, "[]")
		if err != nil {
			return fmt.Errorf("marshalling images of %s: %w", item.ID, err)
		}

		if _, err := stmt.ExecContext(ctx, next+i, item.ID, item.Name, attrs, images); err != nil {
			return fmt.Errorf("saving item %s: %w", item.ID, err)
		}
	}
	return nil
}

// LoadItems returns every item in catalog order.
func (s *Store) LoadItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, attributes, images FROM items ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var item domain.Item
		var attrs, images string
		if err := rows.Scan(&item.ID, &item.Name, &attrs, &images); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &item.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshalling attributes of %s: %w", item.ID, err)
		}
		if err := json.Unmarshal([]byte(images), &item.Images); err != nil {
			return nil, fmt.Errorf("unmarshalling images of %s: %w", item.ID, err)
		}
		if len(item.Attributes) == 0 {
			item.Attributes = nil
		}
		if len(item.Images) == 0 {
			item.Images = nil
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ==================== Evidence ====================

// SaveEvidence stores evidence records, replacing any at the same position.
// Every record must reference a stored item.
func (s *Store) SaveEvidence(ctx context.Context, records []driven.EvidenceRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return saveEvidence(ctx, tx, records)
	})
}

func saveEvidence(ctx context.Context, tx *sql.Tx, records []driven.EvidenceRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO evidence (position, item_id, text, embedding, dimensions)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.Position < 0 {
			return fmt.Errorf("%w: negative evidence position %d", domain.ErrInvalidInput, rec.Position)
		}
		_, err := stmt.ExecContext(ctx, rec.Position, rec.ItemID, rec.Text,
			float32SliceToBytes(rec.Embedding), len(rec.Embedding))
		if err != nil {
			return fmt.Errorf("saving evidence %d: %w", rec.Position, err)
		}
	}
	return nil
}

// LoadEvidence returns every evidence record ordered by position.
func (s *Store) LoadEvidence(ctx context.Context) ([]driven.EvidenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, item_id, text, embedding, dimensions FROM evidence ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying evidence: %w", err)
	}
	defer rows.Close()

	var records []driven.EvidenceRecord
	for rows.Next() {
		var rec driven.EvidenceRecord
		var blob []byte
		var dims int
		if err := rows.Scan(&rec.Position, &rec.ItemID, &rec.Text, &blob, &dims); err != nil {
			return nil, fmt.Errorf("scanning evidence: %w", err)
		}
		rec.Embedding = bytesToFloat32Slice(blob)
		if len(rec.Embedding) != dims {
			return nil, fmt.Errorf("%w: evidence %d stores %d of %d dimensions",
				domain.ErrCatalogDrift, rec.Position, len(rec.Embedding), dims)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ==================== Catalog Metadata ====================

// SetEmbeddingModel records the model and size the evidence was embedded with.
func (s *Store) SetEmbeddingModel(ctx context.Context, model string, dimensions int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return setEmbeddingModel(ctx, tx, model, dimensions)
	})
}

func setEmbeddingModel(ctx context.Context, tx *sql.Tx, model string, dimensions int) error {
	values := map[string]string{
		metaModel:      model,
		metaDimensions: strconv.Itoa(dimensions),
		metaImportedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for key, value := range values {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO catalog_meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("saving %s: %w", key, err)
		}
	}
	return nil
}

// Info returns counts and the recorded embedding model.
func (s *Store) Info(ctx context.Context) (driven.CatalogInfo, error) {
	var info driven.CatalogInfo

	row := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM items), (SELECT COUNT(*) FROM evidence)
	`)
	if err := row.Scan(&info.Items, &info.Evidence); err != nil {
		return info, fmt.Errorf("counting catalog: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM catalog_meta")
	if err != nil {
		return info, fmt.Errorf("querying catalog metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return info, fmt.Errorf("scanning catalog metadata: %w", err)
		}
		switch key {
		case metaModel:
			info.Model = value
		case metaDimensions:
			info.Dimensions, _ = strconv.Atoi(value)
		case metaImportedAt:
			info.ImportedAt, _ = time.Parse(time.RFC3339, value)
		}
	}
	return info, rows.Err()
}

// Clear removes all items, evidence and metadata.
func (s *Store) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return clearCatalog(ctx, tx)
	})
}

// ReplaceCatalog swaps the stored catalog for items, records and the model
// they were embedded with. On error the previous catalog is left untouched.
func (s *Store) ReplaceCatalog(
	ctx context.Context,
	items []domain.Item,
	records []driven.EvidenceRecord,
	model string,
	dimensions int,
) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := clearCatalog(ctx, tx); err != nil {
			return err
		}
		if len(items) > 0 {
			if err := saveItems(ctx, tx, items); err != nil {
				return err
			}
		}
		if len(records) > 0 {
			if err := saveEvidence(ctx, tx, records); err != nil {
				return err
			}
		}
		return setEmbeddingModel(ctx, tx, model, dimensions)
	})
}

func clearCatalog(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"evidence", "items", "catalog_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// marshalOr encodes v as JSON, using empty for nil values.
func marshalOr(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// IsConstraintError reports whether err is a SQLite constraint violation,
// such as evidence referencing an unknown item.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// SQLITE_CONSTRAINT and its extended codes share the low byte 19.
		return coder.Code()&0xff == 19
	}
	return strings.Contains(err.Error(), "constraint failed")
}
