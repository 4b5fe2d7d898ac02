// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証済みのワークスペース利用者を表す。
// OAuthIDは外部IdPの正準識別子（ユーザーIDまたはワークスペースID）で、
// 一度設定されたら変更されない。AccessTokenは再認証のたびに上書きされる。
type User struct {
	ID          string
	OAuthID     string
	AccessToken string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentSchema は抽出先として登録されたContent Databaseを表す。
// (UserID, Tag)の組はユーザーごとに一意。
type ContentSchema struct {
	ID        string
	UserID    string
	DBID      string
	Tag       string
	Schema    PropertyMap
	Prompt    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LinkDatabase は処理対象URLの供給元として登録されたLink Databaseを表す。
// ユーザーごとに最大1件。
type LinkDatabase struct {
	ID        string
	UserID    string
	DBID      string
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
