package chunkstore

// schema is applied with a single executescript call the same way the
// Python prototype's db/migrate.py applies db/schema.sql, and the way
// josephblackelite-nhbchain's SQLiteStore.init lists its CREATE TABLE IF
// NOT EXISTS statements inline. document_chunks_fts is kept synchronously
// in step with document_chunks via triggers, so every insert/delete on
// chunks is mirrored into the FTS index, the same
// rowid-joined external-content shape the Python prototype's
// ranking/sqlite_search.py and retrieval/fts_retrieval.py both query
// against.
const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS case_documents (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    case_id         TEXT NOT NULL,
    original_name   TEXT NOT NULL,
    mime            TEXT NOT NULL,
    size_bytes      INTEGER NOT NULL,
    sha256_hex      TEXT NOT NULL,
    storage_relpath TEXT NOT NULL,
    source_url      TEXT,
    status          TEXT NOT NULL DEFAULT 'queued',
    created_at_utc  TEXT NOT NULL,
    updated_at_utc  TEXT NOT NULL,
    error           TEXT,
    UNIQUE(case_id, sha256_hex)
);

CREATE TABLE IF NOT EXISTS document_chunks (
    id            TEXT PRIMARY KEY,
    document_id   INTEGER NOT NULL REFERENCES case_documents(id) ON DELETE CASCADE,
    chunk_index   INTEGER NOT NULL,
    start_offset  INTEGER NOT NULL,
    end_offset    INTEGER NOT NULL,
    word_count    INTEGER NOT NULL,
    text          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_chunks_document_id ON document_chunks(document_id);

CREATE VIRTUAL TABLE IF NOT EXISTS document_chunks_fts USING fts5(
    text,
    content = 'document_chunks',
    content_rowid = 'rowid'
);

CREATE TRIGGER IF NOT EXISTS document_chunks_ai AFTER INSERT ON document_chunks BEGIN
    INSERT INTO document_chunks_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS document_chunks_ad AFTER DELETE ON document_chunks BEGIN
    INSERT INTO document_chunks_fts(document_chunks_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS document_chunks_au AFTER UPDATE ON document_chunks BEGIN
    INSERT INTO document_chunks_fts(document_chunks_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
    INSERT INTO document_chunks_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TABLE IF NOT EXISTS retrieval_runs (
    id            TEXT PRIMARY KEY,
    created_at    TEXT NOT NULL,
    query         TEXT NOT NULL,
    top_n         INTEGER NOT NULL,
    filters_json  TEXT,
    use_fts       INTEGER NOT NULL,
    use_vector    INTEGER NOT NULL,
    algo_version  TEXT NOT NULL,
    meta_json     TEXT
);

CREATE TABLE IF NOT EXISTS retrieval_run_hits (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id            TEXT NOT NULL REFERENCES retrieval_runs(id) ON DELETE CASCADE,
    rank              INTEGER NOT NULL,
    chunk_id          TEXT NOT NULL,
    practice_doc_id   TEXT NOT NULL,
    score             REAL NOT NULL,
    fts_bm25          REAL,
    vector_distance   REAL
);

CREATE INDEX IF NOT EXISTS idx_retrieval_run_hits_run_id ON retrieval_run_hits(run_id);

CREATE TABLE IF NOT EXISTS retrieval_run_citations (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    hit_id      INTEGER NOT NULL REFERENCES retrieval_run_hits(id) ON DELETE CASCADE,
    idx         INTEGER NOT NULL,
    quote       TEXT NOT NULL,
    start       INTEGER NOT NULL,
    end         INTEGER NOT NULL,
    source_url  TEXT
);

CREATE INDEX IF NOT EXISTS idx_retrieval_run_citations_hit_id ON retrieval_run_citations(hit_id);

CREATE TABLE IF NOT EXISTS audit_log (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at         TEXT NOT NULL,
    event              TEXT NOT NULL,
    model              TEXT NOT NULL,
    pack_version       TEXT NOT NULL,
    retrieval_run_id   TEXT,
    params_json        TEXT NOT NULL,
    output_json        TEXT NOT NULL,
    output_sha256      TEXT NOT NULL
);
`
