package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultAuthorizeURL = "https://api.notion.com/v1/oauth/authorize"
	defaultTokenURL     = "https://api.notion.com/v1/oauth/token"
	// defaultExchangeTimeout はトークン交換リクエストの上限時間。
	defaultExchangeTimeout = 30 * time.Second
)

// NotionOAuthConfig はNotion OAuthプロバイダーの設定。
type NotionOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// テスト用にオーバーライド可能なURL
	AuthorizeURL string
	TokenURL     string

	// トークン交換のタイムアウト。ゼロ値の場合は30秒。
	ExchangeTimeout time.Duration
}

// NotionOAuthProvider はNotion OAuth 2.0の認可コードフローを提供する。
type NotionOAuthProvider struct {
	config     NotionOAuthConfig
	httpClient *http.Client
}

// NewNotionOAuthProvider はNotionOAuthProviderを生成する。
func NewNotionOAuthProvider(config NotionOAuthConfig) *NotionOAuthProvider {
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = defaultAuthorizeURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.ExchangeTimeout == 0 {
		config.ExchangeTimeout = defaultExchangeTimeout
	}
	return &NotionOAuthProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.ExchangeTimeout},
	}
}

// AuthorizeURL はNotionの認可URLを生成する。
// response_typeはcode固定、ownerスコープはuser固定。
func (p *NotionOAuthProvider) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"response_type": {"code"},
		"owner":         {"user"},
		"redirect_uri":  {p.config.RedirectURI},
		"state":         {state},
	}
	return p.config.AuthorizeURL + "?" + params.Encode()
}

// TokenResponse はNotionのトークンエンドポイントのレスポンス。
// ownerは付与の種別（ユーザー/ワークスペース）を示す。
type TokenResponse struct {
	AccessToken   string `json:"access_token"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	BotID         string `json:"bot_id"`
	Owner         Owner  `json:"owner"`
}

// Owner はトークンの所有者記述子。
type Owner struct {
	Type string     `json:"type"` // "user" または "workspace"
	User *OwnerUser `json:"user,omitempty"`
}

// OwnerUser はユーザーレベル付与の場合のユーザー情報。
type OwnerUser struct {
	ID string `json:"id"`
}

// ExchangeError はトークンエンドポイントが非200を返した場合、
// またはレスポンスにアクセストークンが含まれない場合のエラー。
// 呼び出し元入力（無効な認可コード等）に起因するため400系として扱う。
type ExchangeError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// クライアント認証はclient_id/client_secretのBasic認証で行う。
// ネットワーク障害は通常のエラー、プロバイダー拒否は*ExchangeErrorとして返す。
func (p *NotionOAuthProvider) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	reqBody, err := json.Marshal(map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": p.config.RedirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: "token exchange succeeded but no token returned"}
	}

	return &tokenResp, nil
}

// compile-time interface check
var _ OAuthProvider = (*NotionOAuthProvider)(nil)
