// Package auth はOAuth認証フロー、アイデンティティ解決、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/vidnote/internal/model"
	"github.com/hitoshi/vidnote/internal/repository"
	"github.com/hitoshi/vidnote/internal/statestore"
)

const (
	// stateKeyPrefix はstateトークンをストアに格納する際の名前空間。
	stateKeyPrefix = "oauth_state:"
	// statePendingValue はstateキーに対応する定数マーカー値。
	statePendingValue = "pending"
	// stateByteLength はstateトークンのエントロピー（バイト数）。
	stateByteLength = 32
)

// OAuthProvider はOAuth認可コードフローのプロバイダーインターフェース。
type OAuthProvider interface {
	// AuthorizeURL はstateを埋め込んだ認可URLを生成する。
	AuthorizeURL(state string) string
	// ExchangeCode は認可コードをトークンレスポンスに交換する。
	ExchangeCode(ctx context.Context, code string) (*TokenResponse, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	StateTTL      time.Duration // stateトークンの有効期間
	SessionMaxAge int           // セッション有効期間（秒）
}

// Service はOAuthフローの制御とアイデンティティ解決を提供する。
type Service struct {
	provider    OAuthProvider
	states      *statestore.Store
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	provider OAuthProvider,
	states *statestore.Store,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	if config.StateTTL == 0 {
		config.StateTTL = 5 * time.Minute
	}
	return &Service{
		provider:    provider,
		states:      states,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// LoginURL はCSRF対策のstateトークンを発行・保存し、認可URLを返す。
func (s *Service) LoginURL(ctx context.Context) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}

	s.states.Put(ctx, stateKeyPrefix+state, statePendingValue, s.config.StateTTL)

	slog.Info("oauth login initiated", slog.String("state", state))
	return s.provider.AuthorizeURL(state), nil
}

// HandleCallback はOAuthコールバックを処理する。
// state検証（単回消費）→トークン交換→アイデンティティ解決→ユーザーUPSERT→
// セッション発行の順で実行し、どの段階の失敗もAPIErrorとして返す。
func (s *Service) HandleCallback(ctx context.Context, code, state string) (*model.User, *model.Session, error) {
	// 1. stateの検証と消費（CSRF対策・単回使用）
	if _, ok := s.states.Consume(ctx, stateKeyPrefix+state); !ok {
		slog.Warn("oauth state verification failed", slog.String("state", state))
		return nil, nil, model.NewValidationError("Invalid state parameter", "State verification failed")
	}

	// 2. 認可コードをトークンに交換
	tokenResp, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		var exchangeErr *ExchangeError
		if errors.As(err, &exchangeErr) {
			slog.Error("token exchange rejected",
				slog.Int("status", exchangeErr.StatusCode),
				slog.String("body", exchangeErr.Body),
			)
			return nil, nil, model.NewValidationError("Failed to exchange authorization code", exchangeErr.Body)
		}
		slog.Error("token exchange request failed", slog.String("error", err.Error()))
		return nil, nil, model.NewUpstreamError(http.StatusInternalServerError, "OAuth request failed", err.Error())
	}

	// 3. アイデンティティ解決とユーザーUPSERT
	user, err := s.resolveIdentity(ctx, tokenResp)
	if err != nil {
		return nil, nil, err
	}

	// 4. セッション発行
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		slog.Error("failed to create session", slog.String("error", err.Error()))
		return nil, nil, model.NewInternalError("Authentication failed", err.Error())
	}

	slog.Info("user authenticated successfully",
		slog.String("user_id", user.ID),
		slog.String("oauth_id", user.OAuthID),
	)
	return user, session, nil
}

// resolveIdentity はトークンレスポンスから正準アイデンティティキーを導出し、
// ユーザーを冪等にUPSERTする。
// owner.type=="user"の場合はowner.user.id、それ以外（ワークスペース付与）は
// workspace_idをキーとする。どちらも得られない場合はエラー。
func (s *Service) resolveIdentity(ctx context.Context, tokenResp *TokenResponse) (*model.User, error) {
	// ユーザーレベル付与はowner.user.idのみをキーとする。
	// user型なのにuserオブジェクトが無いレスポンスをworkspace_idで代用すると
	// 別ユーザーのアカウントに合流しうるため、失敗として扱う。
	var oauthID string
	if tokenResp.Owner.Type == "user" {
		if tokenResp.Owner.User != nil {
			oauthID = tokenResp.Owner.User.ID
		}
	} else {
		oauthID = tokenResp.WorkspaceID
	}

	if oauthID == "" {
		slog.Error("could not extract user ID from token response")
		return nil, model.NewValidationError("Could not extract user ID", "No user or workspace ID found")
	}

	// UPSERTはストレージ境界で単一のアトミックな操作として実行される。
	// 既存ユーザーはトークンのみ上書きされ、新規ユーザーはIDを採番して作成される。
	user, err := s.userRepo.UpsertByOAuthID(ctx, &model.User{
		ID:          uuid.New().String(),
		OAuthID:     oauthID,
		AccessToken: tokenResp.AccessToken,
	})
	if err != nil {
		slog.Error("failed to upsert user", slog.String("error", err.Error()))
		return nil, model.NewInternalError("Authentication failed", err.Error())
	}

	return user, nil
}

// GetCurrentUser はセッションIDから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// StateStoreAvailable はstateストアのバックエンド（Redis）が有効かを返す。
// ヘルスレポート用。
func (s *Service) StateStoreAvailable() bool {
	return s.states.Available()
}

// createSession はセッションを作成し永続化する。
// 再ログイン時は同一ユーザーの既存セッションをすべて無効化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to invalidate previous sessions: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateState は暗号的に安全なURLセーフのstateトークンを生成する。
func generateState() (string, error) {
	b := make([]byte, stateByteLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
