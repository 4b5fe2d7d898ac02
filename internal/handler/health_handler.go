package handler

import (
	"encoding/json"
	"net/http"
)

// HealthChecker はヘルスレポートに含めるバックエンド状態の照会インターフェース。
type HealthChecker interface {
	StateStoreAvailable() bool
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health はサービスの稼働状態を返す。
// ステートストアが縮退モードでも200を返す（可用性は落とさない）。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	stateBackend := "memory"
	if h.checker != nil && h.checker.StateStoreAvailable() {
		stateBackend = "redis"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":        "healthy",
		"service":       "vidnote",
		"version":       "1.0.0",
		"state_backend": stateBackend,
	})
}
