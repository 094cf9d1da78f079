package database

import (
	"database/sql"
	"log"
)

var schema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    username VARCHAR(255) UNIQUE NOT NULL,
    email VARCHAR(255) UNIQUE NOT NULL,
    hashed_password VARCHAR(255) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS submissions (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id),
    language VARCHAR(64) NOT NULL,
    status VARCHAR(16) NOT NULL,
    score DOUBLE PRECISION NOT NULL DEFAULT 0,
    fail_tags JSONB NOT NULL DEFAULT '[]',
    feedback JSONB NOT NULL DEFAULT '[]',
    metrics JSONB NOT NULL DEFAULT '{}',
    finalized BOOLEAN NOT NULL DEFAULT FALSE,
    finalize_note TEXT,
    attempt INT NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions (status);
CREATE INDEX IF NOT EXISTS idx_submissions_user_id ON submissions (user_id);
CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions (created_at DESC);
`

func Migrate(db *sql.DB) {
	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("Error applying schema: %v", err)
	}
}
