// Package prompt はスキーマからのAIマッピングプロンプト生成を提供する。
// 登録済みスキーマを解析用プロンプトに整形し、生成モデルに渡して
// 動画コンテンツからデータベースフィールドへのマッピング指示を得る。
package prompt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hitoshi/vidnote/internal/model"
	"github.com/hitoshi/vidnote/internal/repository"
)

// TextGenerator は生成モデルへの単発テキスト生成呼び出しを抽象化する。
type TextGenerator interface {
	GenerateText(ctx context.Context, input string) (string, error)
}

// OpenAIGenerator はOpenAI Chat Completions APIによるTextGenerator実装。
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator はOpenAIGeneratorを生成する。
func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// GenerateText は入力プロンプトに対する生成テキストを返す。
func (g *OpenAIGenerator) GenerateText(ctx context.Context, input string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(input),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ TextGenerator = (*OpenAIGenerator)(nil)

// GenerateResult は保存を伴わないプロンプト生成の結果。
type GenerateResult struct {
	Tag             string `json:"tag"`
	GeneratedPrompt string `json:"generated_prompt"`
	SchemaID        string `json:"schema_id"`
}

// SaveResult は生成・保存系操作の結果。
type SaveResult struct {
	Message  string `json:"message"`
	Tag      string `json:"tag"`
	Prompt   string `json:"prompt"`
	SchemaID string `json:"schema_id,omitempty"`
}

// PromptInfo は保存済みプロンプトの照会結果。
type PromptInfo struct {
	Tag       string  `json:"tag"`
	Prompt    *string `json:"prompt"`
	HasPrompt bool    `json:"has_prompt"`
	SchemaID  string  `json:"schema_id"`
}

// Service はプロンプト生成・管理のサービス層。
type Service struct {
	schemaRepo repository.ContentSchemaRepository
	generator  TextGenerator
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(schemaRepo repository.ContentSchemaRepository, generator TextGenerator, logger *slog.Logger) *Service {
	return &Service{
		schemaRepo: schemaRepo,
		generator:  generator,
		logger:     logger,
	}
}

// findSchema はユーザーとタグでスキーマを取得する。未登録は404。
func (s *Service) findSchema(ctx context.Context, userID, tag string) (*model.ContentSchema, error) {
	schema, err := s.schemaRepo.FindByUserAndTag(ctx, userID, tag)
	if err != nil {
		return nil, model.NewInternalError("Failed to retrieve prompt", err.Error())
	}
	if schema == nil {
		return nil, model.NewNotFoundError(fmt.Sprintf("No schema found with tag '%s' for this user", tag))
	}
	return schema, nil
}

// Generate は登録済みスキーマからマッピングプロンプトを生成する。保存はしない。
// feedbackが空でない場合は改善指示として生成に反映する。
func (s *Service) Generate(ctx context.Context, userID, tag, feedback string) (*GenerateResult, error) {
	schema, err := s.findSchema(ctx, userID, tag)
	if err != nil {
		return nil, err
	}

	analysisPrompt := buildSchemaAnalysisPrompt(formatProperties(schema.Schema), tag, feedback)

	generated, err := s.generator.GenerateText(ctx, analysisPrompt)
	if err != nil {
		return nil, model.NewInternalError("Failed to generate prompt", err.Error())
	}
	generated = strings.TrimSpace(generated)
	if generated == "" {
		return nil, model.NewInternalError("Failed to generate prompt", "model returned empty response")
	}

	s.logger.Info("generated mapping prompt",
		slog.String("user_id", userID),
		slog.String("tag", tag),
		slog.Bool("with_feedback", feedback != ""),
		slog.Int("length", len(generated)),
	)

	return &GenerateResult{
		Tag:             tag,
		GeneratedPrompt: generated,
		SchemaID:        schema.ID,
	}, nil
}

// GenerateAndSave はプロンプトを生成してそのままスキーマに保存する。
func (s *Service) GenerateAndSave(ctx context.Context, userID, tag, feedback string) (*SaveResult, error) {
	result, err := s.Generate(ctx, userID, tag, feedback)
	if err != nil {
		return nil, err
	}

	if err := s.schemaRepo.UpdatePrompt(ctx, userID, tag, result.GeneratedPrompt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NewNotFoundError(fmt.Sprintf("No schema found with tag '%s' for this user", tag))
		}
		return nil, model.NewInternalError("Failed to save prompt", err.Error())
	}

	s.logger.Info("saved generated prompt",
		slog.String("user_id", userID),
		slog.String("tag", tag),
		slog.String("schema_id", result.SchemaID),
	)

	return &SaveResult{
		Message:  "Prompt generated and saved successfully",
		Tag:      tag,
		Prompt:   result.GeneratedPrompt,
		SchemaID: result.SchemaID,
	}, nil
}

// GetPrompt はスキーマの保存済みプロンプトを返す。未保存の場合はPrompt=nil。
func (s *Service) GetPrompt(ctx context.Context, userID, tag string) (*PromptInfo, error) {
	schema, err := s.findSchema(ctx, userID, tag)
	if err != nil {
		return nil, err
	}

	return &PromptInfo{
		Tag:       tag,
		Prompt:    schema.Prompt,
		HasPrompt: schema.Prompt != nil,
		SchemaID:  schema.ID,
	}, nil
}

// UpdatePrompt はスキーマのプロンプトをユーザー指定のテキストで上書きする。
func (s *Service) UpdatePrompt(ctx context.Context, userID, tag, customPrompt string) (*SaveResult, error) {
	if _, err := s.findSchema(ctx, userID, tag); err != nil {
		return nil, err
	}

	if err := s.schemaRepo.UpdatePrompt(ctx, userID, tag, customPrompt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NewNotFoundError(fmt.Sprintf("No schema found with tag '%s' for this user", tag))
		}
		return nil, model.NewInternalError("Failed to update prompt", err.Error())
	}

	s.logger.Info("updated custom prompt",
		slog.String("user_id", userID),
		slog.String("tag", tag),
	)

	return &SaveResult{
		Message: "Prompt updated successfully",
		Tag:     tag,
		Prompt:  customPrompt,
	}, nil
}
