package store

import "context"

// schemaSQL bootstraps every table the pipeline needs. Mirrors the teacher's
// hand-rolled CREATE IF NOT EXISTS approach (see postgres_vector.go /
// projects_store_postgres.go) rather than an external migration framework.
const schemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS source_documents (
    id                 UUID PRIMARY KEY,
    display_name       TEXT NOT NULL,
    source_uri         TEXT NOT NULL,
    entity_label       TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL DEFAULT 'PENDING',
    status_detail      TEXT NOT NULL DEFAULT '',
    metadata_extracted BOOLEAN NOT NULL DEFAULT FALSE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS source_documents_status_idx ON source_documents(status);

CREATE TABLE IF NOT EXISTS document_chunks (
    id             UUID PRIMARY KEY,
    document_id    UUID NOT NULL REFERENCES source_documents(id) ON DELETE CASCADE,
    chunk_index    INTEGER NOT NULL,
    title          TEXT NOT NULL DEFAULT '',
    summary        TEXT NOT NULL DEFAULT '',
    original_text  TEXT NOT NULL DEFAULT '',
    has_table      BOOLEAN NOT NULL DEFAULT FALSE,
    chunk_metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    UNIQUE (document_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS collections (
    id                UUID PRIMARY KEY,
    name              TEXT NOT NULL UNIQUE,
    description       TEXT NOT NULL DEFAULT '',
    vector_index_name TEXT NOT NULL,
    total_documents   INTEGER NOT NULL DEFAULT 0,
    indexed_documents INTEGER NOT NULL DEFAULT 0,
    failed_documents  INTEGER NOT NULL DEFAULT 0,
    created_by        TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS collections_vector_index_name_idx
    ON collections(vector_index_name) WHERE vector_index_name <> '';

CREATE TABLE IF NOT EXISTS collection_memberships (
    collection_id     UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
    document_id       UUID NOT NULL REFERENCES source_documents(id) ON DELETE CASCADE,
    indexing_status   TEXT NOT NULL DEFAULT 'pending',
    indexing_progress INTEGER NOT NULL DEFAULT 0,
    indexed_at        TIMESTAMPTZ,
    error_message     TEXT NOT NULL DEFAULT '',
    vector_point_id   TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (collection_id, document_id)
);
CREATE INDEX IF NOT EXISTS collection_memberships_doc_idx ON collection_memberships(document_id);

CREATE TABLE IF NOT EXISTS metadata_configurations (
    id                        UUID PRIMARY KEY,
    name                      TEXT NOT NULL UNIQUE,
    description               TEXT NOT NULL DEFAULT '',
    data_type                 TEXT NOT NULL,
    extraction_prompt         TEXT NOT NULL,
    extraction_prompt_version INTEGER NOT NULL DEFAULT 1,
    validation_rules          JSONB,
    is_active                 BOOLEAN NOT NULL DEFAULT TRUE,
    created_by                TEXT NOT NULL DEFAULT '',
    created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS metadata_groups (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    color       TEXT NOT NULL DEFAULT '',
    tags        TEXT[] NOT NULL DEFAULT '{}',
    is_default  BOOLEAN NOT NULL DEFAULT FALSE,
    created_by  TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS metadata_groups_one_default_idx ON metadata_groups((TRUE)) WHERE is_default;

CREATE TABLE IF NOT EXISTS group_config_links (
    group_id      UUID NOT NULL REFERENCES metadata_groups(id) ON DELETE CASCADE,
    config_id     UUID NOT NULL REFERENCES metadata_configurations(id) ON DELETE CASCADE,
    display_order INTEGER NOT NULL DEFAULT 0,
    added_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    added_by      TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (group_id, config_id),
    UNIQUE (group_id, display_order) DEFERRABLE INITIALLY DEFERRED
);

CREATE TABLE IF NOT EXISTS extraction_jobs (
    id                  UUID PRIMARY KEY,
    collection_id       UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
    group_id            UUID NOT NULL,
    status              TEXT NOT NULL DEFAULT 'pending',
    total_documents     INTEGER NOT NULL DEFAULT 0,
    processed_documents INTEGER NOT NULL DEFAULT 0,
    failed_documents    INTEGER NOT NULL DEFAULT 0,
    started_at          TIMESTAMPTZ,
    completed_at        TIMESTAMPTZ,
    created_by          TEXT NOT NULL DEFAULT '',
    error_details       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS extracted_metadata (
    collection_id     UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
    document_id       UUID NOT NULL REFERENCES source_documents(id) ON DELETE CASCADE,
    group_id          UUID NOT NULL,
    metadata_name     TEXT NOT NULL,
    extraction_job_id UUID NOT NULL REFERENCES extraction_jobs(id) ON DELETE CASCADE,
    extracted_value   TEXT NOT NULL,
    extracted_by      TEXT NOT NULL DEFAULT '',
    extracted_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection_id, document_id, group_id, metadata_name)
);

CREATE TABLE IF NOT EXISTS indexing_jobs (
    id              UUID PRIMARY KEY,
    collection_id   UUID NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
    job_type        TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'pending',
    document_ids    UUID[] NOT NULL DEFAULT '{}',
    total_documents INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at    TIMESTAMPTZ,
    error_details   TEXT NOT NULL DEFAULT ''
);
`

// Bootstrap creates every table the pipeline needs if it doesn't already
// exist. Safe to call on every process start, matching the teacher's
// best-effort dev-time schema bootstrap (see postgres_vector.go).
func Bootstrap(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, schemaSQL)
	return err
}
