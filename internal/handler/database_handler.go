package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/vidnote/internal/middleware"
	"github.com/hitoshi/vidnote/internal/model"
	"github.com/hitoshi/vidnote/internal/notion"
)

// RegistryServiceInterface はデータベース登録ハンドラーが必要とするサービスインターフェース。
type RegistryServiceInterface interface {
	RegisterContentDatabase(ctx context.Context, userID, dbID, tag, prompt string) (*model.ContentSchema, error)
	ListRegistered(ctx context.Context, userID string) ([]*model.ContentSchema, error)
	ListAvailable(ctx context.Context, userID string) ([]notion.DatabaseSummary, error)
	RegisterLinkDatabase(ctx context.Context, userID, dbID string) (*model.LinkDatabase, error)
}

// RegistrationMetrics はデータベース登録のメトリクス記録インターフェース。
type RegistrationMetrics interface {
	RecordRegistration(kind string, result string)
}

// DatabaseHandler はデータベース登録関連のHTTPハンドラー。
type DatabaseHandler struct {
	service RegistryServiceInterface
	metrics RegistrationMetrics
}

// NewDatabaseHandler はDatabaseHandlerを生成する。
func NewDatabaseHandler(service RegistryServiceInterface, metrics RegistrationMetrics) *DatabaseHandler {
	return &DatabaseHandler{
		service: service,
		metrics: metrics,
	}
}

// registerContentRequest はコンテンツDB登録のリクエストボディ。
type registerContentRequest struct {
	DBID   string `json:"db_id"`
	Tag    string `json:"tag"`
	Prompt string `json:"prompt"` // 任意の初期プロンプト
}

// RegisterDatabase はコンテンツDBをタグ付きで登録する。
// POST /api/databases/register
func (h *DatabaseHandler) RegisterDatabase(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewAuthError("Unauthorized - please login first"))
		return
	}

	var req registerContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, model.NewValidationError("Request body is required", ""))
		return
	}
	if req.DBID == "" {
		middleware.WriteErrorResponse(w, model.NewValidationError("db_id is required", ""))
		return
	}
	if req.Tag == "" {
		middleware.WriteErrorResponse(w, model.NewValidationError("tag is required", ""))
		return
	}

	schema, err := h.service.RegisterContentDatabase(r.Context(), userID, req.DBID, req.Tag, req.Prompt)
	if err != nil {
		slog.Error("content database registration failed",
			slog.String("user_id", userID),
			slog.String("db_id", req.DBID),
			slog.String("error", err.Error()),
		)
		h.metrics.RecordRegistration("content", registrationResult(err))
		middleware.WriteError(w, err)
		return
	}

	h.metrics.RecordRegistration("content", "success")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Content Database registered successfully",
		"schema": map[string]any{
			"id":     schema.ID,
			"db_id":  schema.DBID,
			"tag":    schema.Tag,
			"prompt": schema.Prompt,
		},
	})
}

// ListDatabases は登録済みコンテンツDBの一覧を返す。
// GET /api/databases
func (h *DatabaseHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewAuthError("Unauthorized - please login first"))
		return
	}

	schemas, err := h.service.ListRegistered(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list databases",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, err)
		return
	}

	databases := make([]map[string]any, 0, len(schemas))
	for _, schema := range schemas {
		databases = append(databases, map[string]any{
			"id":         schema.ID,
			"db_id":      schema.DBID,
			"tag":        schema.Tag,
			"schema":     schema.Schema,
			"prompt":     schema.Prompt,
			"created_at": schema.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"databases": databases})
}

// ListAvailableDatabases はトークンから参照可能な外部DBの一覧を返す。
// GET /api/databases/available
func (h *DatabaseHandler) ListAvailableDatabases(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewAuthError("Unauthorized - please login first"))
		return
	}

	databases, err := h.service.ListAvailable(r.Context(), userID)
	if err != nil {
		slog.Error("failed to list available databases",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"databases": databases})
}

// registerLinkRequest はリンクDB登録のリクエストボディ。
type registerLinkRequest struct {
	DBID string `json:"db_id"`
}

// RegisterLinkDatabase はリンクDBを登録する。ユーザーごとに1件まで。
// POST /api/link-database/register
func (h *DatabaseHandler) RegisterLinkDatabase(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewAuthError("Unauthorized - please login first"))
		return
	}

	var req registerLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, model.NewValidationError("Request body is required", ""))
		return
	}
	if req.DBID == "" {
		middleware.WriteErrorResponse(w, model.NewValidationError("db_id is required", ""))
		return
	}

	link, err := h.service.RegisterLinkDatabase(r.Context(), userID, req.DBID)
	if err != nil {
		slog.Error("link database registration failed",
			slog.String("user_id", userID),
			slog.String("db_id", req.DBID),
			slog.String("error", err.Error()),
		)
		h.metrics.RecordRegistration("link", registrationResult(err))
		middleware.WriteError(w, err)
		return
	}

	h.metrics.RecordRegistration("link", "success")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Link Database registered successfully",
		"link_database": map[string]any{
			"id":    link.ID,
			"db_id": link.DBID,
		},
	})
}

// registrationResult はエラーからメトリクス用の結果ラベルを導出する。
func registrationResult(err error) string {
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		return "error"
	}
	switch apiErr.Status {
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest:
		return "validation_failed"
	case http.StatusNotFound:
		return "not_found"
	default:
		return "error"
	}
}
