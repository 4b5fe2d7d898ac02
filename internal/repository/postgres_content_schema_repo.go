package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/vidnote/internal/model"
)

// PostgresContentSchemaRepo はPostgreSQLを使用したコンテンツスキーマリポジトリ。
// schemaカラムはjsonbで、プロパティマップをそのまま直列化して保存する。
type PostgresContentSchemaRepo struct {
	db *sql.DB
}

// NewPostgresContentSchemaRepo はPostgresContentSchemaRepoを生成する。
func NewPostgresContentSchemaRepo(db *sql.DB) *PostgresContentSchemaRepo {
	return &PostgresContentSchemaRepo{db: db}
}

// ErrDuplicateTag は同一ユーザー内でのタグ重複を表す。
var ErrDuplicateTag = fmt.Errorf("tag already in use")

// Create はスキーマ登録を保存する。(user_id, tag)の一意制約違反はErrDuplicateTagを返す。
func (r *PostgresContentSchemaRepo) Create(ctx context.Context, cs *model.ContentSchema) error {
	schemaJSON, err := json.Marshal(cs.Schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO content_schemas (id, user_id, db_id, tag, schema, prompt, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 RETURNING created_at, updated_at`,
		cs.ID, cs.UserID, cs.DBID, cs.Tag, schemaJSON, cs.Prompt,
	).Scan(&cs.CreatedAt, &cs.UpdatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrDuplicateTag
	}
	if err != nil {
		return fmt.Errorf("failed to create content schema: %w", err)
	}

	return nil
}

// FindByUserAndTag はユーザーとタグでスキーマ登録を取得する。見つからない場合はnilを返す。
func (r *PostgresContentSchemaRepo) FindByUserAndTag(ctx context.Context, userID, tag string) (*model.ContentSchema, error) {
	cs := &model.ContentSchema{}
	var schemaJSON []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, db_id, tag, schema, prompt, created_at, updated_at
		 FROM content_schemas WHERE user_id = $1 AND tag = $2`,
		userID, tag,
	).Scan(&cs.ID, &cs.UserID, &cs.DBID, &cs.Tag, &schemaJSON, &cs.Prompt, &cs.CreatedAt, &cs.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find content schema: %w", err)
	}

	if err := json.Unmarshal(schemaJSON, &cs.Schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}

	return cs, nil
}

// ListByUserID はユーザーの登録済みスキーマを新しい順で返す。
func (r *PostgresContentSchemaRepo) ListByUserID(ctx context.Context, userID string) ([]*model.ContentSchema, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, db_id, tag, schema, prompt, created_at, updated_at
		 FROM content_schemas WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list content schemas: %w", err)
	}
	defer rows.Close()

	var schemas []*model.ContentSchema
	for rows.Next() {
		cs := &model.ContentSchema{}
		var schemaJSON []byte
		if err := rows.Scan(&cs.ID, &cs.UserID, &cs.DBID, &cs.Tag, &schemaJSON, &cs.Prompt, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content schema: %w", err)
		}
		if err := json.Unmarshal(schemaJSON, &cs.Schema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
		}
		schemas = append(schemas, cs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate content schemas: %w", err)
	}

	return schemas, nil
}

// UpdatePrompt は指定スキーマの保存プロンプトを更新する。対象が無ければsql.ErrNoRowsを返す。
func (r *PostgresContentSchemaRepo) UpdatePrompt(ctx context.Context, userID, tag, prompt string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE content_schemas SET prompt = $1, updated_at = now() WHERE user_id = $2 AND tag = $3`,
		prompt, userID, tag,
	)
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

var _ ContentSchemaRepository = (*PostgresContentSchemaRepo)(nil)
