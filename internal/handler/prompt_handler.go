package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/vidnote/internal/middleware"
	"github.com/hitoshi/vidnote/internal/model"
	"github.com/hitoshi/vidnote/internal/prompt"
)

// PromptServiceInterface はプロンプトハンドラーが必要とするサービスインターフェース。
type PromptServiceInterface interface {
	Generate(ctx context.Context, userID, tag, feedback string) (*prompt.GenerateResult, error)
	GenerateAndSave(ctx context.Context, userID, tag, feedback string) (*prompt.SaveResult, error)
	GetPrompt(ctx context.Context, userID, tag string) (*prompt.PromptInfo, error)
	UpdatePrompt(ctx context.Context, userID, tag, customPrompt string) (*prompt.SaveResult, error)
}

// PromptMetrics はプロンプト生成のメトリクス記録インターフェース。
type PromptMetrics interface {
	RecordPromptGeneration(result string)
}

// PromptHandler はプロンプト生成・管理のHTTPハンドラー。
type PromptHandler struct {
	service PromptServiceInterface
	metrics PromptMetrics
}

// NewPromptHandler はPromptHandlerを生成する。
func NewPromptHandler(service PromptServiceInterface, metrics PromptMetrics) *PromptHandler {
	return &PromptHandler{
		service: service,
		metrics: metrics,
	}
}

// feedbackRequest は生成系エンドポイントの任意リクエストボディ。
type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

// readFeedback はボディからfeedbackを読み取る。ボディ無しは空文字列として扱う。
func readFeedback(r *http.Request) string {
	var req feedbackRequest
	// ボディは任意。デコード失敗はフィードバック無しとみなす
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req.Feedback
}

// Generate はスキーマからマッピングプロンプトを生成する。保存はしない。
// POST /api/prompts/generate/{tag}
func (h *PromptHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewAuthError("Unauthorized - please login first"))
		return
	}

	tag := chi.URLParam(r, "tag")
	result, err := h.service.Generate(r.Context(), userID, tag, readFeedback(r))
	if err != nil {
		slog.Error("prompt generation failed",
			slog.String("user_id", userID),
			slog.String("tag", tag),
			slog.String("error", err.Error()),
		)
		h.metrics.RecordPromptGeneration("failed")
		middleware.WriteError(w, err)
		return
	}

	h.metrics.RecordPromptGeneration("success")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GenerateAndSave はプロンプトを生成してスキーマに保存する。
// POST /api/prompts/generate-and-save/{tag}
func (h *PromptHandler) GenerateAndSave(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewAuthError("Unauthorized - please login first"))
		return
	}

	tag := chi.URLParam(r, "tag")
	result, err := h.service.GenerateAndSave(r.Context(), userID, tag, readFeedback(r))
	if err != nil {
		slog.Error("prompt generate-and-save failed",
			slog.String("user_id", userID),
			slog.String("tag", tag),
			slog.String("error", err.Error()),
		)
		h.metrics.RecordPromptGeneration("failed")
		middleware.WriteError(w, err)
		return
	}

	h.metrics.RecordPromptGeneration("success")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Get はスキーマの保存済みプロンプトを返す。
// GET /api/prompts/{tag}
func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewAuthError("Unauthorized - please login first"))
		return
	}

	tag := chi.URLParam(r, "tag")
	info, err := h.service.GetPrompt(r.Context(), userID, tag)
	if err != nil {
		slog.Error("failed to get prompt",
			slog.String("user_id", userID),
			slog.String("tag", tag),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

// updatePromptRequest はプロンプト手動更新のリクエストボディ。
type updatePromptRequest struct {
	Prompt string `json:"prompt"`
}

// Update はプロンプトをユーザー指定のテキストで上書きする。
// PUT /api/prompts/{tag}
func (h *PromptHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewAuthError("Unauthorized - please login first"))
		return
	}

	var req updatePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, model.NewValidationError("Request body is required", ""))
		return
	}
	if req.Prompt == "" {
		middleware.WriteErrorResponse(w, model.NewValidationError("prompt is required", ""))
		return
	}

	tag := chi.URLParam(r, "tag")
	result, err := h.service.UpdatePrompt(r.Context(), userID, tag, req.Prompt)
	if err != nil {
		slog.Error("failed to update prompt",
			slog.String("user_id", userID),
			slog.String("tag", tag),
			slog.String("error", err.Error()),
		)
		middleware.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
