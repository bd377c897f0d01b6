package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/enrollman/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用した管理者セッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを保存する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.AdminSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_sessions (id, session_token, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.Token, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin session: %w", err)
	}
	return nil
}

// FindByToken は指定トークンのセッションを取得する。
// 存在しない場合と期限切れの場合はnilを返し、期限切れの行はこの時点で削除する。
func (r *PostgresSessionRepo) FindByToken(ctx context.Context, token string) (*model.AdminSession, error) {
	session := &model.AdminSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, session_token, created_at, expires_at
		 FROM admin_sessions
		 WHERE session_token = $1`,
		token,
	).Scan(&session.ID, &session.Token, &session.CreatedAt, &session.ExpiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin session: %w", err)
	}

	if session.Expired(time.Now()) {
		// 遅延エビクション。削除失敗は呼び出し側に影響させない
		_, _ = r.db.ExecContext(ctx,
			`DELETE FROM admin_sessions WHERE session_token = $1`, token)
		return nil, nil
	}

	return session, nil
}

// DeleteByToken は指定トークンのセッションを削除する。冪等。
func (r *PostgresSessionRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM admin_sessions WHERE session_token = $1`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to delete admin session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
