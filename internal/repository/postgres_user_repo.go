package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/vidnote/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, oauth_id, access_token, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.OAuthID, &user.AccessToken, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// UpsertByOAuthID はoauth_idをキーにユーザーを冪等にUPSERTする。
// 衝突時は既存行のアクセストークンのみ更新する（oauth_idとidは不変）。
// 単一ステートメントのため部分書き込み状態は発生しない。
func (r *PostgresUserRepo) UpsertByOAuthID(ctx context.Context, user *model.User) (*model.User, error) {
	result := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, oauth_id, access_token, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (oauth_id)
		 DO UPDATE SET access_token = EXCLUDED.access_token, updated_at = now()
		 RETURNING id, oauth_id, access_token, created_at, updated_at`,
		user.ID, user.OAuthID, user.AccessToken,
	).Scan(&result.ID, &result.OAuthID, &result.AccessToken, &result.CreatedAt, &result.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return result, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
