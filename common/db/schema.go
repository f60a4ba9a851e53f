package db

import (
	"context"
	"fmt"
)

// schema is applied on startup through the bootstrap DB init hook.
// Array-valued person fields live inside the JSONB document; the extracted
// columns exist only for candidate queries and uniqueness checks.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS family_trees (
		tree_id       UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		owner_id      TEXT NOT NULL,
		doc           JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS persons (
		person_id     UUID PRIMARY KEY,
		tree_id       UUID NOT NULL,
		first_name    TEXT NOT NULL DEFAULT '',
		last_name     TEXT NOT NULL DEFAULT '',
		doc           JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_persons_tree ON persons (tree_id)`,
	`CREATE TABLE IF NOT EXISTS relationships (
		relationship_id UUID PRIMARY KEY,
		tree_id         UUID NOT NULL,
		person1_id      UUID NOT NULL,
		person2_id      UUID NOT NULL,
		rel_type        TEXT NOT NULL,
		parental_role   TEXT,
		doc             JSONB NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_relationships_tree ON relationships (tree_id)`,
	`CREATE INDEX IF NOT EXISTS idx_relationships_person1 ON relationships (person1_id)`,
	`CREATE INDEX IF NOT EXISTS idx_relationships_person2 ON relationships (person2_id)`,
	`CREATE TABLE IF NOT EXISTS merge_suggestions (
		suggestion_id      UUID PRIMARY KEY,
		tree_id            UUID NOT NULL,
		new_person_id      UUID NOT NULL,
		existing_person_id UUID NOT NULL,
		confidence         DOUBLE PRECISION NOT NULL,
		status             TEXT NOT NULL,
		doc                JSONB NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (new_person_id, existing_person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS person_history (
		history_id   UUID PRIMARY KEY,
		person_id    UUID NOT NULL,
		version      INT NOT NULL,
		change_type  TEXT NOT NULL,
		snapshot     JSONB NOT NULL,
		changed_by   TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (person_id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_person_history_person ON person_history (person_id)`,
}

// InitSchema applies the DDL. Safe to run on every startup.
func InitSchema(db *DB) error {
	ctx := context.Background()
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
