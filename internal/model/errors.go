package model

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// HTTPステータスとユーザー向けメッセージ、診断用の詳細テキストを含む。
type APIError struct {
	Status         int      // HTTPステータスコード
	Message        string   // エラーメッセージ（レスポンスのerrorキー）
	Details        string   // 上流の生エラーテキスト等の診断情報
	RequiredFields []string // バリデーション失敗時の必須フィールド一覧
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// NewValidationError はリクエスト不備のエラー（400）を生成する。
func NewValidationError(message, details string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: message, Details: details}
}

// NewConflictError は一意制約違反のエラー（409）を生成する。
func NewConflictError(message string) *APIError {
	return &APIError{Status: http.StatusConflict, Message: message}
}

// NewNotFoundError はリソース未検出のエラー（404）を生成する。
func NewNotFoundError(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Message: message}
}

// NewUpstreamError は外部API呼び出し失敗のエラーを生成する。
// 呼び出し側の入力起因（無効なdb_id等）は400、転送路の問題は500を指定する。
func NewUpstreamError(status int, message, details string) *APIError {
	return &APIError{Status: status, Message: message, Details: details}
}

// NewAuthError はセッション不在・無効のエラー（401）を生成する。
func NewAuthError(message string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Message: message}
}

// NewInternalError は予期しない失敗のエラー（500）を生成する。
func NewInternalError(message, details string) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Message: message, Details: details}
}
