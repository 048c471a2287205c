package postgres

import (
	"context"
	"fmt"
)

// SystemDDL creates the tables used next to the model tables: users and the audit log.
var SystemDDL = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id uuid PRIMARY KEY,
		email text NOT NULL,
		password_hash text NOT NULL,
		full_name text NOT NULL DEFAULT '',
		is_active boolean NOT NULL DEFAULT TRUE,
		is_admin boolean NOT NULL DEFAULT FALSE,
		permissions text[],
		last_login_at timestamptz,
		failed_login_attempts integer NOT NULL DEFAULT 0,
		locked_until timestamptz,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (LOWER(email))`,
	`CREATE TABLE IF NOT EXISTS sys_audit (
		id uuid PRIMARY KEY,
		model text NOT NULL,
		record_id uuid NOT NULL,
		action text NOT NULL,
		user_id text NOT NULL DEFAULT '',
		user_email text NOT NULL DEFAULT '',
		changes jsonb,
		changes_compressed bytea,
		compression_algo text NOT NULL DEFAULT 'none',
		created_at timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sys_audit_record_idx ON sys_audit (model, record_id, created_at DESC)`,
}

// EnsureSystemSchema creates the system tables when they are missing.
func EnsureSystemSchema(ctx context.Context, txManager *TxManager) error {
	return txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, stmt := range SystemDDL {
			if _, err := txManager.GetQuerier(ctx).Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure system schema: %w", err)
			}
		}
		return nil
	})
}
