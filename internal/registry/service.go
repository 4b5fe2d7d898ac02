// Package registry はコンテンツ/リンクデータベース登録のドメインロジックを提供する。
// 外部データベースのスキーマ検証と、ユーザーごとの登録制約を担う。
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/vidnote/internal/model"
	"github.com/hitoshi/vidnote/internal/notion"
	"github.com/hitoshi/vidnote/internal/repository"
)

// SchemaFetcher は外部データベースのスキーマ取得・検索を抽象化する。
type SchemaFetcher interface {
	GetDatabaseSchema(ctx context.Context, accessToken, dbID string) (*notion.DatabaseSchema, error)
	SearchDatabases(ctx context.Context, accessToken string) ([]notion.DatabaseSummary, error)
}

// linkRequiredFields はリンクDBに必須のフィールドとその期待型。
// 順序はエラーメッセージの安定性のためrequiredFieldOrderで固定する。
var linkRequiredFields = map[string]string{
	"url":             "url",
	"tag":             "select",
	"processing_type": "select",
	"status":          "select",
	"updated_time":    "date",
}

var requiredFieldOrder = []string{"url", "tag", "processing_type", "status", "updated_time"}

// Service はデータベース登録のサービス層。
type Service struct {
	userRepo   repository.UserRepository
	schemaRepo repository.ContentSchemaRepository
	linkRepo   repository.LinkDatabaseRepository
	fetcher    SchemaFetcher
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	schemaRepo repository.ContentSchemaRepository,
	linkRepo repository.LinkDatabaseRepository,
	fetcher SchemaFetcher,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:   userRepo,
		schemaRepo: schemaRepo,
		linkRepo:   linkRepo,
		fetcher:    fetcher,
		logger:     logger,
	}
}

// RegisterContentDatabase はコンテンツDBをタグ付きで登録する。
// タグはユーザー内で一意。スキーマは登録時点のスナップショットとして保存する。
// promptが非空の場合は初期プロンプトとして保存する。
func (s *Service) RegisterContentDatabase(ctx context.Context, userID, dbID, tag, prompt string) (*model.ContentSchema, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, model.NewInternalError("Failed to register database", err.Error())
	}
	if user == nil {
		return nil, model.NewNotFoundError("User not found")
	}

	existing, err := s.schemaRepo.FindByUserAndTag(ctx, userID, tag)
	if err != nil {
		return nil, model.NewInternalError("Failed to register database", err.Error())
	}
	if existing != nil {
		return nil, model.NewConflictError(fmt.Sprintf("Tag '%s' is already in use", tag))
	}

	schema, err := s.fetcher.GetDatabaseSchema(ctx, user.AccessToken, dbID)
	if err != nil {
		return nil, upstreamFetchError("Failed to retrieve database schema", err)
	}

	cs := &model.ContentSchema{
		ID:     uuid.New().String(),
		UserID: userID,
		DBID:   dbID,
		Tag:    tag,
		Schema: schema.Properties,
	}
	if prompt != "" {
		cs.Prompt = &prompt
	}
	if err := s.schemaRepo.Create(ctx, cs); err != nil {
		// 事前チェック後の同時登録で一意制約に当たった場合
		if errors.Is(err, repository.ErrDuplicateTag) {
			return nil, model.NewConflictError(fmt.Sprintf("Tag '%s' is already in use", tag))
		}
		return nil, model.NewInternalError("Failed to register database", err.Error())
	}

	s.logger.Info("content database registered",
		slog.String("user_id", userID),
		slog.String("db_id", dbID),
		slog.String("tag", tag),
	)

	return cs, nil
}

// ListRegistered はユーザーの登録済みコンテンツDBを新しい順で返す。
func (s *Service) ListRegistered(ctx context.Context, userID string) ([]*model.ContentSchema, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, model.NewInternalError("Failed to list databases", err.Error())
	}
	if user == nil {
		return nil, model.NewNotFoundError("User not found")
	}

	schemas, err := s.schemaRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewInternalError("Failed to list databases", err.Error())
	}

	return schemas, nil
}

// ListAvailable はユーザーのトークンで参照可能な外部DBを検索して返す。
// ローカルには保存しない（常にライブ検索）。
func (s *Service) ListAvailable(ctx context.Context, userID string) ([]notion.DatabaseSummary, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, model.NewInternalError("Failed to list available databases", err.Error())
	}
	if user == nil {
		return nil, model.NewNotFoundError("User not found")
	}

	databases, err := s.fetcher.SearchDatabases(ctx, user.AccessToken)
	if err != nil {
		return nil, upstreamFetchError("Failed to retrieve available databases", err)
	}

	return databases, nil
}

// RegisterLinkDatabase はリンクDBを登録する。ユーザーごとに1件まで。
// 登録前に必須フィールドの存在と型を検証する。
func (s *Service) RegisterLinkDatabase(ctx context.Context, userID, dbID string) (*model.LinkDatabase, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, model.NewInternalError("Failed to register link database", err.Error())
	}
	if user == nil {
		return nil, model.NewNotFoundError("User not found")
	}

	existing, err := s.linkRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewInternalError("Failed to register link database", err.Error())
	}
	if existing != nil {
		return nil, model.NewConflictError("Link Database already registered for this user")
	}

	schema, err := s.fetcher.GetDatabaseSchema(ctx, user.AccessToken, dbID)
	if err != nil {
		return nil, upstreamFetchError("Failed to validate Link Database", err)
	}

	if err := validateLinkSchema(schema.Properties); err != nil {
		return nil, err
	}

	ld := &model.LinkDatabase{
		ID:     uuid.New().String(),
		UserID: userID,
		DBID:   dbID,
	}
	if err := s.linkRepo.Create(ctx, ld); err != nil {
		if errors.Is(err, repository.ErrLinkDatabaseExists) {
			return nil, model.NewConflictError("Link Database already registered for this user")
		}
		return nil, model.NewInternalError("Failed to register link database", err.Error())
	}

	s.logger.Info("link database registered",
		slog.String("user_id", userID),
		slog.String("db_id", dbID),
	)

	return ld, nil
}

// validateLinkSchema はリンクDBの必須フィールドと型を検証する。
// 欠落フィールドを先に報告し、欠落がある場合は型検査に進まない。
func validateLinkSchema(props model.PropertyMap) error {
	var missing []string
	for _, name := range requiredFieldOrder {
		if _, ok := props[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &model.APIError{
			Status:         400,
			Message:        fmt.Sprintf("Link Database is missing required fields: %s", strings.Join(missing, ", ")),
			RequiredFields: append([]string(nil), requiredFieldOrder...),
		}
	}

	var mismatches []string
	for _, name := range requiredFieldOrder {
		expected := linkRequiredFields[name]
		got := props[name].Type
		if got != expected {
			mismatches = append(mismatches, fmt.Sprintf("%s (expected %s, got %s)", name, expected, got))
		}
	}
	if len(mismatches) > 0 {
		return model.NewValidationError(
			fmt.Sprintf("Link Database has invalid field types: %s", strings.Join(mismatches, ", ")),
			"",
		)
	}

	return nil
}

// upstreamFetchError は外部DB API呼び出しの失敗をAPIErrorに変換する。
// 上流がエラーレスポンスを返した場合は呼び出し側入力起因とみなし400、
// 転送路の失敗は500とする。
func upstreamFetchError(message string, err error) *model.APIError {
	var apiErr *notion.APIError
	if errors.As(err, &apiErr) {
		return model.NewUpstreamError(400, fmt.Sprintf("%s: %s", message, apiErr.Body), "")
	}
	return model.NewUpstreamError(500, message, err.Error())
}
