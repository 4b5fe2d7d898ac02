// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/vidnote/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// UpsertByOAuthID はoauth_idをキーにユーザーを冪等にUPSERTする。
	// 既存ユーザーはアクセストークンのみ上書きし、新規はuser.IDで作成する。
	// 単一のアトミックなステートメントとして実行され、結果のユーザーを返す。
	UpsertByOAuthID(ctx context.Context, user *model.User) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ContentSchemaRepository はContent Database登録の永続化インターフェース。
type ContentSchemaRepository interface {
	// Create はContent Schema登録を作成する。
	// (user_id, tag)の一意制約違反はエラーとして返る。
	Create(ctx context.Context, schema *model.ContentSchema) error

	// FindByUserAndTag はユーザーIDとタグで登録を検索する。見つからない場合はnilを返す。
	FindByUserAndTag(ctx context.Context, userID, tag string) (*model.ContentSchema, error)

	// ListByUserID はユーザーの全登録を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.ContentSchema, error)

	// UpdatePrompt は指定登録の保存プロンプトを更新する。
	// 対象が存在しない場合はsql.ErrNoRowsを返す。
	UpdatePrompt(ctx context.Context, userID, tag, prompt string) error
}

// LinkDatabaseRepository はLink Database登録の永続化インターフェース。
type LinkDatabaseRepository interface {
	// Create はLink Database登録を作成する。
	// user_idの一意制約違反はエラーとして返る。
	Create(ctx context.Context, link *model.LinkDatabase) error

	// FindByUserID はユーザーの登録を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.LinkDatabase, error)
}
