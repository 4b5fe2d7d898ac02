package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/vidnote/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// errorキーは常に存在し、detailsとrequired_fieldsは内容がある場合のみ出力する。
type ErrorResponseBody struct {
	Error          string   `json:"error"`
	Details        string   `json:"details,omitempty"`
	RequiredFields []string `json:"required_fields,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error:          apiErr.Message,
		Details:        apiErr.Details,
		RequiredFields: apiErr.RequiredFields,
	})
}

// WriteError はエラーをAPIErrorとして解釈してレスポンスを書き込む。
// APIError以外は詳細を漏らさず500の一般メッセージに落とす。
func WriteError(w http.ResponseWriter, err error) {
	if apiErr, ok := model.AsAPIError(err); ok {
		WriteErrorResponse(w, apiErr)
		return
	}
	WriteErrorResponse(w, &model.APIError{
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
	})
}
