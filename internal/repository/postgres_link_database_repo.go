package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/vidnote/internal/model"
)

// PostgresLinkDatabaseRepo はPostgreSQLを使用したリンクデータベースリポジトリ。
// ユーザーごとに1件のみ登録できる（user_idの一意制約）。
type PostgresLinkDatabaseRepo struct {
	db *sql.DB
}

// NewPostgresLinkDatabaseRepo はPostgresLinkDatabaseRepoを生成する。
func NewPostgresLinkDatabaseRepo(db *sql.DB) *PostgresLinkDatabaseRepo {
	return &PostgresLinkDatabaseRepo{db: db}
}

// ErrLinkDatabaseExists は同一ユーザーでのリンクDB二重登録を表す。
var ErrLinkDatabaseExists = fmt.Errorf("link database already registered")

// Create はリンクDB登録を保存する。user_idの一意制約違反はErrLinkDatabaseExistsを返す。
func (r *PostgresLinkDatabaseRepo) Create(ctx context.Context, ld *model.LinkDatabase) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO link_databases (id, user_id, db_id, created_at)
		 VALUES ($1, $2, $3, now())
		 RETURNING created_at`,
		ld.ID, ld.UserID, ld.DBID,
	).Scan(&ld.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrLinkDatabaseExists
	}
	if err != nil {
		return fmt.Errorf("failed to create link database: %w", err)
	}

	return nil
}

// FindByUserID はユーザーのリンクDB登録を取得する。見つからない場合はnilを返す。
func (r *PostgresLinkDatabaseRepo) FindByUserID(ctx context.Context, userID string) (*model.LinkDatabase, error) {
	ld := &model.LinkDatabase{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, db_id, created_at FROM link_databases WHERE user_id = $1`,
		userID,
	).Scan(&ld.ID, &ld.UserID, &ld.DBID, &ld.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find link database: %w", err)
	}

	return ld, nil
}

var _ LinkDatabaseRepository = (*PostgresLinkDatabaseRepo)(nil)
