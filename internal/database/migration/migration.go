package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id         UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  name       TEXT        NOT NULL,
  email      TEXT        NOT NULL UNIQUE,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id            UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  owner_id      UUID        NOT NULL,
  folder        TEXT        NOT NULL,
  subitem       TEXT        NOT NULL,
  document_name TEXT        NOT NULL,
  description   TEXT        NOT NULL DEFAULT '',
  metadata      JSONB       NOT NULL DEFAULT '{}',
  tags          JSONB       NOT NULL DEFAULT '[]',
  is_shared     BOOLEAN     NOT NULL DEFAULT FALSE,
  is_deleted    BOOLEAN     NOT NULL DEFAULT FALSE,
  deleted_at    TIMESTAMPTZ,
  version       INT         NOT NULL DEFAULT 1 CHECK (version >= 1),
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_document_files",
		SQL: `CREATE TABLE IF NOT EXISTS document_files (
  id            UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  document_id   UUID        NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
  filename      TEXT        NOT NULL,
  original_name TEXT        NOT NULL,
  content_type  TEXT        NOT NULL,
  size          BIGINT      NOT NULL CHECK (size >= 0),
  storage_key   TEXT        NOT NULL UNIQUE,
  position      INT         NOT NULL,
  uploaded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_document_versions",
		SQL: `CREATE TABLE IF NOT EXISTS document_versions (
  document_id   UUID        NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
  version       INT         NOT NULL,
  document_name TEXT        NOT NULL,
  description   TEXT        NOT NULL DEFAULT '',
  metadata      JSONB       NOT NULL DEFAULT '{}',
  tags          JSONB       NOT NULL DEFAULT '[]',
  updated_at    TIMESTAMPTZ NOT NULL,
  updated_by    UUID        NOT NULL,
  PRIMARY KEY (document_id, version)
);`,
	},
	{
		Name: "create_table_document_shares",
		SQL: `CREATE TABLE IF NOT EXISTS document_shares (
  document_id UUID        NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
  user_id     UUID        NOT NULL,
  email       TEXT        NOT NULL,
  permission  TEXT        NOT NULL CHECK (permission IN ('view', 'edit')),
  shared_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (document_id, user_id)
);`,
	},
	{
		Name: "create_index_documents_owner_folder_subitem",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_folder_subitem ON documents (owner_id, folder, subitem);`,
	},
	{
		Name: "create_index_documents_owner_deleted",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_deleted ON documents (owner_id, is_deleted);`,
	},
	{
		Name: "create_index_documents_owner_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_created_at ON documents (owner_id, created_at DESC);`,
	},
	{
		Name: "create_index_document_files_document_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_document_files_document_id ON document_files (document_id, position);`,
	},
	{
		Name: "create_index_document_shares_user_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_document_shares_user_id ON document_shares (user_id);`,
	},
}

// EnsureMigrated checks if the 'documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.documents') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
