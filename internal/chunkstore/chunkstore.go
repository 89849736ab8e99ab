// Package chunkstore is the relational store of documents and chunks.
// The only knobs are the documents it is handed by the out-of-scope
// upload/extraction pipeline.
//
// Grounded on josephblackelite-nhbchain's services/escrow-gateway/storage.go
// (database/sql + modernc.org/sqlite, schema applied with a single
// executescript-style string) and the Python prototype's
// apps/server/src/lex_server/documents/storage.py + pipeline.py (the
// dedupe-by-sha256 insert and delete-then-reinsert chunk replace).
package chunkstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lexintellectus/knowledgepack/internal/errs"
)

// Document mirrors case_documents: one ingested source document.
type Document struct {
	ID             int64
	CaseID         string
	OriginalName   string
	Mime           string
	SizeBytes      int64
	SHA256         string
	StorageRelPath string
	SourceURL      *string
	Status         string
	CreatedAtUTC   string
	UpdatedAtUTC   string
	Error          *string
}

// Chunk is one chunk record: id, document_id, ordinal,
// start_offset, end_offset, word_count, text. ReplaceChunks rejects a
// chunk whose start_offset is not below its end_offset. That chunks of a
// document do not overlap and are ordered by ordinal from 0 is the
// caller's (the chunker's) responsibility and is not checked by the store.
type Chunk struct {
	ID          string
	DocumentID  int64
	Ordinal     int
	StartOffset int
	EndOffset   int
	WordCount   int
	Text        string
}

// ChunkText is the minimal projection retrieval needs to extract citations.
type ChunkText struct {
	Text          string
	PracticeDocID string
	SourceURL     *string
}

// Store owns the sqlite connection backing documents, chunks, retrieval
// runs, and the audit log (all one database, as in the Python prototype).
type Store struct {
	db *sql.DB
}

// Open creates/migrates the schema at path and returns a Store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransient, err, "open chunk store %s", path)
	}
	db.SetMaxOpenConns(1) // single-writer sqlite file
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errs.Wrapf(errs.KindTransient, err, "apply chunk store schema")
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying *sql.DB for sibling packages (lexical, runlog,
// generation's audit sink) that share this one database file.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func utcNowISOZ() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// InsertDocument records a newly ingested document, deduplicating on
// (case_id, sha256_hex) the way documents/storage.py's
// _insert_row/_fetch_existing pair does via a UNIQUE constraint.
func (s *Store) InsertDocument(ctx context.Context, d Document) (Document, error) {
	now := utcNowISOZ()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO case_documents(
		  case_id, original_name, mime, size_bytes, sha256_hex, storage_relpath,
		  source_url, status, created_at_utc, updated_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, 'queued', ?, ?)
		ON CONFLICT(case_id, sha256_hex) DO NOTHING;
	`, d.CaseID, d.OriginalName, d.Mime, d.SizeBytes, d.SHA256, d.StorageRelPath, d.SourceURL, now, now)
	if err != nil {
		return Document{}, errs.Wrapf(errs.KindTransient, err, "insert document")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return s.documentBySHA(ctx, d.CaseID, d.SHA256)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Document{}, errs.Wrapf(errs.KindTransient, err, "insert document: last insert id")
	}
	d.ID = id
	d.Status = "queued"
	d.CreatedAtUTC = now
	d.UpdatedAtUTC = now
	return d, nil
}

func (s *Store) documentBySHA(ctx context.Context, caseID, sha string) (Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, case_id, original_name, mime, size_bytes, sha256_hex, storage_relpath,
		       source_url, status, created_at_utc, updated_at_utc, error
		FROM case_documents WHERE case_id = ? AND sha256_hex = ?;
	`, caseID, sha)
	var d Document
	if err := row.Scan(&d.ID, &d.CaseID, &d.OriginalName, &d.Mime, &d.SizeBytes, &d.SHA256,
		&d.StorageRelPath, &d.SourceURL, &d.Status, &d.CreatedAtUTC, &d.UpdatedAtUTC, &d.Error); err != nil {
		return Document{}, errs.Wrapf(errs.KindNotFound, err, "load document by sha %s/%s", caseID, sha)
	}
	return d, nil
}

// SetDocumentStatus updates a document's processing status and optional
// error, mirroring storage.py's set_document_status.
func (s *Store) SetDocumentStatus(ctx context.Context, documentID int64, status string, docErr *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE case_documents SET status = ?, error = ?, updated_at_utc = ? WHERE id = ?;
	`, status, docErr, utcNowISOZ(), documentID)
	if err != nil {
		return errs.Wrapf(errs.KindTransient, err, "set document status")
	}
	return nil
}

// ReplaceChunks deletes and re-inserts all chunks of documentID as a
// transactional unit, the same atomicity pipeline.py's process_document
// gives a (re)processed document.
func (s *Store) ReplaceChunks(ctx context.Context, documentID int64, chunks []Chunk) error {
	sorted := append([]Chunk(nil), chunks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ordinal < sorted[j].Ordinal })

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrapf(errs.KindTransient, err, "begin chunk replace tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?;`, documentID); err != nil {
		return errs.Wrapf(errs.KindTransient, err, "delete existing chunks")
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks(id, document_id, chunk_index, start_offset, end_offset, word_count, text)
		VALUES (?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return errs.Wrapf(errs.KindTransient, err, "prepare chunk insert")
	}
	defer stmt.Close()

	for _, c := range sorted {
		if c.StartOffset >= c.EndOffset {
			return errs.Newf(errs.KindValidation, "chunk %s has start_offset >= end_offset", c.ID)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, documentID, c.Ordinal, c.StartOffset, c.EndOffset, c.WordCount, c.Text); err != nil {
			return errs.Wrapf(errs.KindTransient, err, "insert chunk %s", c.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrapf(errs.KindTransient, err, "commit chunk replace tx")
	}
	return nil
}

// LoadChunkTexts loads chunk text + practice_doc_id + source_url for a set
// of chunk ids, used by retrieval's citation extraction stage.
func (s *Store) LoadChunkTexts(ctx context.Context, chunkIDs []string) (map[string]ChunkText, error) {
	out := make(map[string]ChunkText, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}
	placeholders, args := placeholdersFor(chunkIDs)
	query := fmt.Sprintf(`
		SELECT dc.id, dc.text, CAST(cd.id AS TEXT), cd.source_url
		FROM document_chunks dc
		JOIN case_documents cd ON dc.document_id = cd.id
		WHERE dc.id IN (%s);
	`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransient, err, "load chunk texts")
	}
	defer rows.Close()
	for rows.Next() {
		var id, text, docID string
		var sourceURL *string
		if err := rows.Scan(&id, &text, &docID, &sourceURL); err != nil {
			return nil, errs.Wrapf(errs.KindTransient, err, "scan chunk text row")
		}
		out[id] = ChunkText{Text: text, PracticeDocID: docID, SourceURL: sourceURL}
	}
	return out, rows.Err()
}

// AllChunksSortedByID returns every chunk across every document, sorted by
// chunk_id, for the vector index's deterministic label assignment:
// labels are dense int32 assigned from 0..N-1 in sorted chunk_id order
// at build time.
func (s *Store) AllChunksSortedByID(ctx context.Context) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, start_offset, end_offset, word_count, text
		FROM document_chunks ORDER BY id ASC;
	`)
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransient, err, "list chunks for vector build")
	}
	defer rows.Close()
	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.StartOffset, &c.EndOffset, &c.WordCount, &c.Text); err != nil {
			return nil, errs.Wrapf(errs.KindTransient, err, "scan chunk row")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ChunkMetaByRowID resolves sqlite rowids (as used by the vector index's
// label<->chunk bijection) to (chunk_id, practice_doc_id) pairs.
func (s *Store) ChunkMetaByRowID(ctx context.Context, rowIDs []int64) (map[int64][2]string, error) {
	out := make(map[int64][2]string, len(rowIDs))
	if len(rowIDs) == 0 {
		return out, nil
	}
	placeholders, args := placeholdersForInt64(rowIDs)
	query := fmt.Sprintf(`
		SELECT dc.rowid, dc.id, CAST(cd.id AS TEXT)
		FROM document_chunks dc
		JOIN case_documents cd ON dc.document_id = cd.id
		WHERE dc.rowid IN (%s);
	`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransient, err, "resolve chunk rowids")
	}
	defer rows.Close()
	for rows.Next() {
		var rowID int64
		var chunkID, docID string
		if err := rows.Scan(&rowID, &chunkID, &docID); err != nil {
			return nil, errs.Wrapf(errs.KindTransient, err, "scan chunk rowid mapping")
		}
		out[rowID] = [2]string{chunkID, docID}
	}
	return out, rows.Err()
}

func placeholdersFor(vals []string) (string, []any) {
	args := make([]any, len(vals))
	ph := ""
	for i, v := range vals {
		if i > 0 {
			ph += ","
		}
		ph += "?"
		args[i] = v
	}
	return ph, args
}

func placeholdersForInt64(vals []int64) (string, []any) {
	args := make([]any, len(vals))
	ph := ""
	for i, v := range vals {
		if i > 0 {
			ph += ","
		}
		ph += "?"
		args[i] = v
	}
	return ph, args
}
