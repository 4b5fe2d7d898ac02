package middleware

import "net/http"

// corsMaxAge はプリフライト結果のキャッシュ秒数。
const corsMaxAge = "86400"

// NewCORSMiddleware は単一の許可オリジンに対するCORSミドルウェアを返す。
// フロントエンドはCookieベースのセッションを送信するため、
// Allow-Credentialsと両立しないワイルドカード(*)は使用しない。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				// プリフライトにのみメソッド・ヘッダー許可を返し、本体なしで終了する
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
