package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/vidnote/internal/model"
)

type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return m.findByIDFn(ctx, id)
}

func okHandler(t *testing.T, wantUserID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected user ID in context: %v", err)
		}
		if userID != wantUserID {
			t.Errorf("user ID = %q, want %q", userID, wantUserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

// 有効なセッションCookieでユーザーIDがコンテキストに注入されること
func TestSessionMiddleware_ValidSession(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "sess-1" {
				t.Errorf("session id = %q", id)
			}
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}

	mw := NewSessionMiddleware(finder)
	req := httptest.NewRequest(http.MethodGet, "/api/databases", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rec := httptest.NewRecorder()

	mw(okHandler(t, "user-1")).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// Cookieが無い場合は統一フォーマットの401が返ること
func TestSessionMiddleware_MissingCookie(t *testing.T) {
	mw := NewSessionMiddleware(&mockSessionFinder{})
	req := httptest.NewRequest(http.MethodGet, "/api/databases", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["error"] != "Unauthorized - please login first" {
		t.Errorf("error = %v", body["error"])
	}
}

// セッションが見つからない場合は401が返ること
func TestSessionMiddleware_UnknownSession(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, nil
		},
	}

	mw := NewSessionMiddleware(finder)
	req := httptest.NewRequest(http.MethodGet, "/api/databases", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "ghost"})
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// 検索エラー時も401が返ること（詳細は漏らさない）
func TestSessionMiddleware_FinderError(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, fmt.Errorf("db down")
		},
	}

	mw := NewSessionMiddleware(finder)
	req := httptest.NewRequest(http.MethodGet, "/api/databases", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// --- エラーレスポンス ---

// required_fieldsが空のとき出力に含まれないこと
func TestWriteErrorResponse_OmitsEmptyFields(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, model.NewConflictError("Tag 'x' is already in use"))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := body["details"]; ok {
		t.Error("details must be omitted when empty")
	}
	if _, ok := body["required_fields"]; ok {
		t.Error("required_fields must be omitted when empty")
	}
}

// required_fields付きエラーがそのまま出力されること
func TestWriteErrorResponse_RequiredFields(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, &model.APIError{
		Status:         http.StatusBadRequest,
		Message:        "Link Database is missing required fields: url",
		RequiredFields: []string{"url", "tag", "processing_type", "status", "updated_time"},
	})

	var body struct {
		Error          string   `json:"error"`
		RequiredFields []string `json:"required_fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.RequiredFields) != 5 {
		t.Errorf("required_fields = %v", body.RequiredFields)
	}
}

// APIError以外のエラーは一般化された500になること
func TestWriteError_UnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("sensitive internal detail"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["error"] != "Internal server error" {
		t.Errorf("error = %v", body["error"])
	}
}
