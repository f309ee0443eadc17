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
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/salesmind/ragcore/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
)

// Store is a SQLite-backed document store. Tenant scoping happens in
// every query: a lookup with the wrong tenant id behaves exactly like a
// missing row.
type Store struct {
	db   *sql.DB
	path string
}

var _ driven.DocumentStore = (*Store)(nil)

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ragcore/data/documents.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragcore", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "documents.db")

	// WAL mode for better concurrency between searches and ingestions.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
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
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveDocument stores or updates a document.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	salesJSON, err := json.Marshal(doc.Sales)
	if err != nil {
		return fmt.Errorf("marshalling sales metadata: %w", err)
	}

	// The conflict clause only updates rows within the same tenant. An
	// upsert with an id owned by another tenant matches zero rows, so a
	// forged id can never move a document across tenants.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, tenant_id, title, content, type, category, provenance,
			is_extracted, is_embedded, is_indexed, sales, access_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			type = excluded.type,
			category = excluded.category,
			provenance = excluded.provenance,
			is_extracted = excluded.is_extracted,
			is_embedded = excluded.is_embedded,
			is_indexed = excluded.is_indexed,
			sales = excluded.sales,
			access_count = excluded.access_count,
			updated_at = excluded.updated_at
		WHERE documents.tenant_id = excluded.tenant_id
	`, doc.ID, doc.TenantID, doc.Title, doc.Content, string(doc.Type), doc.Category,
		string(doc.Provenance), doc.Extracted, doc.Embedded, doc.Indexed,
		string(salesJSON), doc.Sales.AccessCount, doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking save: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: document id %s already in use", domain.ErrValidation, doc.ID)
	}
	return nil
}

// GetDocument retrieves a document by ID within the tenant.
func (s *Store) GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, title, content, type, category, provenance,
			is_extracted, is_embedded, is_indexed, sales, access_count, created_at, updated_at
		FROM documents WHERE id = ? AND tenant_id = ?
	`, id, tenantID)

	return scanDocument(row)
}

// ListDocuments returns all documents for a tenant.
func (s *Store) ListDocuments(ctx context.Context, tenantID string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, title, content, type, category, provenance,
			is_extracted, is_embedded, is_indexed, sales, access_count, created_at, updated_at
		FROM documents WHERE tenant_id = ?
		ORDER BY created_at
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// ListTenants returns every tenant id with at least one stored document.
// Used to rebuild the in-memory vector index at startup.
func (s *Store) ListTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT tenant_id FROM documents ORDER BY tenant_id")
	if err != nil {
		return nil, fmt.Errorf("querying tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenants: %w", err)
	}
	return tenants, nil
}

// DeleteDocument removes a document and its chunks within the tenant.
func (s *Store) DeleteDocument(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE id = ? AND tenant_id = ?", id, tenantID)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deletion: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SaveChunks stores chunks for a document in one transaction.
func (s *Store) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, start_offset, end_offset, type, signals, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			position = excluded.position,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			type = excluded.type,
			signals = excluded.signals,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		signalsJSON, err := json.Marshal(chunk.Signals)
		if err != nil {
			return fmt.Errorf("marshalling chunk signals: %w", err)
		}

		embeddingBlob := float32SliceToBytes(chunk.Embedding)

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content,
			chunk.Position, chunk.Start, chunk.End, string(chunk.Type),
			string(signalsJSON), embeddingBlob); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document within the tenant,
// ordered by position.
func (s *Store) GetChunks(ctx context.Context, tenantID, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.content, c.position, c.start_offset, c.end_offset, c.type, c.signals, c.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id = ? AND d.tenant_id = ?
		ORDER BY c.position
	`, documentID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID within the tenant.
func (s *Store) GetChunk(ctx context.Context, tenantID, id string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.document_id, c.content, c.position, c.start_offset, c.end_offset, c.type, c.signals, c.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.id = ? AND d.tenant_id = ?
	`, id, tenantID)

	return scanChunk(row)
}

// IncrementAccessCount bumps the usage counter on a document.
func (s *Store) IncrementAccessCount(ctx context.Context, tenantID, documentID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET access_count = access_count + 1
		WHERE id = ? AND tenant_id = ?
	`, documentID, tenantID)
	if err != nil {
		return fmt.Errorf("incrementing access count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var docType, provenance, salesJSON string
	var accessCount int

	err := row.Scan(&doc.ID, &doc.TenantID, &doc.Title, &doc.Content, &docType,
		&doc.Category, &provenance, &doc.Extracted, &doc.Embedded, &doc.Indexed,
		&salesJSON, &accessCount, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Type = domain.DocumentType(docType)
	doc.Provenance = domain.Provenance(provenance)
	if err := json.Unmarshal([]byte(salesJSON), &doc.Sales); err != nil {
		return nil, fmt.Errorf("unmarshaling sales metadata: %w", err)
	}
	// The counter column is authoritative over the serialized snapshot.
	doc.Sales.AccessCount = accessCount

	return &doc, nil
}

func scanChunk(row scanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var chunkType, signalsJSON string
	var embeddingBlob []byte

	err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Position,
		&chunk.Start, &chunk.End, &chunkType, &signalsJSON, &embeddingBlob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Type = domain.ChunkType(chunkType)
	if err := json.Unmarshal([]byte(signalsJSON), &chunk.Signals); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk signals: %w", err)
	}
	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)

	return &chunk, nil
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
