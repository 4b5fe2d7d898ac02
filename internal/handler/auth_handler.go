// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/vidnote/internal/middleware"
	"github.com/hitoshi/vidnote/internal/model"
)

const sessionCookieName = "session_id"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	LoginURL(ctx context.Context) (string, error)
	HandleCallback(ctx context.Context, code, state string) (*model.User, *model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthMetrics は認証フローのメトリクス記録インターフェース。
type AuthMetrics interface {
	RecordLoginInitiated()
	RecordCallbackResult(result string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics AuthMetrics
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, metrics AuthMetrics, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
		config:  config,
	}
}

// Login はNotion OAuthフローを開始する。
// stateトークンはサービス層が発行しステートストアに保存する。
// GET /auth/notion/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.LoginURL(r.Context())
	if err != nil {
		slog.Error("failed to build login URL", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, model.NewInternalError("Failed to start login", ""))
		return
	}

	h.metrics.RecordLoginInitiated()
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// errorパラメータがある場合はトークン交換もstate照会も行わない。
// GET /auth/notion/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. プロバイダーからのエラー通知を最優先で処理
	if errParam := query.Get("error"); errParam != "" {
		slog.Warn("oauth authorization denied", slog.String("error", errParam))
		h.metrics.RecordCallbackResult("provider_error")
		middleware.WriteErrorResponse(w, model.NewValidationError("OAuth authorization failed", errParam))
		return
	}

	// 2. 必須パラメータの検証
	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		h.metrics.RecordCallbackResult("missing_params")
		middleware.WriteErrorResponse(w, model.NewValidationError("Missing required parameters", "code and state are required"))
		return
	}

	// 3. state検証・トークン交換・アイデンティティ解決・セッション発行
	user, session, err := h.service.HandleCallback(r.Context(), code, state)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.metrics.RecordCallbackResult("failed")
		middleware.WriteError(w, err)
		return
	}

	// 4. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 5. フロントエンドにリダイレクト
	h.metrics.RecordCallbackResult("success")
	http.Redirect(w, r, fmt.Sprintf("%s/?success=true&user_id=%s", h.config.BaseURL, user.ID), http.StatusFound)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// セッションCookieの取得
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		// セッションをDBから削除
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out successfully"})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteErrorResponse(w, model.NewAuthError("Unauthorized - please login first"))
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, model.NewAuthError("Unauthorized - please login first"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":         user.ID,
		"created_at": user.CreatedAt,
	})
}
