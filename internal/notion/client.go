// Package notion はNotion APIのクライアントを提供する。
// データベーススキーマの取得とワークスペース内データベースの検索を行う。
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/vidnote/internal/model"
)

const (
	defaultBaseURL = "https://api.notion.com"
	// notionVersion はNotion APIのバージョンヘッダー値。
	notionVersion = "2022-06-28"
)

// APIError はNotion APIが返したエラーレスポンスを表す。
// StatusCodeとともに上流の生ボディを保持する。
type APIError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("notion API returned status %d: %s", e.StatusCode, e.Body)
}

// DatabaseSchema は1つのデータベースのスキーマ情報を表す。
type DatabaseSchema struct {
	ID         string
	Title      string
	Properties model.PropertyMap
}

// DatabaseSummary は検索結果に含まれる1データベースの要約を表す。
type DatabaseSummary struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Properties model.PropertyMap `json:"properties"`
}

// Client はNotion APIのクライアント。
// アクセストークンはリクエストごとに渡す（ユーザーごとに異なるため）。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能

	// latencyRecorder が非nilの場合、API呼び出しごとにレイテンシを通知する。
	latencyRecorder func(target string, d time.Duration)
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    defaultBaseURL,
	}
}

// SetLatencyRecorder はAPI呼び出しのレイテンシ記録関数を設定する（メトリクス用）。
func (c *Client) SetLatencyRecorder(fn func(target string, d time.Duration)) {
	c.latencyRecorder = fn
}

// databaseResponse はデータベース取得・検索APIのレスポンス要素。
type databaseResponse struct {
	ID         string            `json:"id"`
	Title      []richText        `json:"title"`
	Properties model.PropertyMap `json:"properties"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

// GetDatabaseSchema は指定データベースのスキーマ（プロパティ定義）を取得する。
func (c *Client) GetDatabaseSchema(ctx context.Context, accessToken, dbID string) (*DatabaseSchema, error) {
	var db databaseResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/databases/"+dbID, accessToken, "get_database", nil, &db); err != nil {
		return nil, err
	}

	schema := &DatabaseSchema{
		ID:         db.ID,
		Title:      extractTitle(db.Title),
		Properties: db.Properties,
	}

	c.logger.Info("retrieved database schema",
		slog.String("db_id", dbID),
		slog.Int("property_count", len(schema.Properties)),
	)

	return schema, nil
}

// SearchDatabases はトークンから参照可能なデータベースを検索して返す。
func (c *Client) SearchDatabases(ctx context.Context, accessToken string) ([]DatabaseSummary, error) {
	reqBody := map[string]any{
		"filter": map[string]string{
			"property": "object",
			"value":    "database",
		},
	}

	var result struct {
		Results []databaseResponse `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/search", accessToken, "search", reqBody, &result); err != nil {
		return nil, err
	}

	databases := make([]DatabaseSummary, 0, len(result.Results))
	for _, db := range result.Results {
		databases = append(databases, DatabaseSummary{
			ID:         db.ID,
			Title:      extractTitle(db.Title),
			Properties: db.Properties,
		})
	}

	c.logger.Info("searched available databases",
		slog.Int("count", len(databases)),
	)

	return databases, nil
}

// doJSON は認証付きJSONリクエストを実行し、レスポンスをoutにデコードする。
// 非200レスポンスは生ボディを保持したAPIErrorとして返す。
// targetはレイテンシ記録に使用するエンドポイントの論理名。
func (c *Client) doJSON(ctx context.Context, method, path, accessToken, target string, reqBody any, out any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create notion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Notion-Version", notionVersion)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.latencyRecorder != nil {
		c.latencyRecorder(target, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("notion request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read notion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse notion response: %w", err)
	}

	return nil
}

// extractTitle はリッチテキスト配列からプレーンテキストを連結して返す。
func extractTitle(parts []richText) string {
	title := ""
	for _, p := range parts {
		title += p.PlainText
	}
	return title
}
