package prompt

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/vidnote/internal/model"
)

// --- モック ---

type mockSchemaRepo struct {
	findByUserAndTagFn func(ctx context.Context, userID, tag string) (*model.ContentSchema, error)
	updatePromptFn     func(ctx context.Context, userID, tag, prompt string) error
}

func (m *mockSchemaRepo) Create(ctx context.Context, cs *model.ContentSchema) error {
	return nil
}
func (m *mockSchemaRepo) FindByUserAndTag(ctx context.Context, userID, tag string) (*model.ContentSchema, error) {
	return m.findByUserAndTagFn(ctx, userID, tag)
}
func (m *mockSchemaRepo) ListByUserID(ctx context.Context, userID string) ([]*model.ContentSchema, error) {
	return nil, nil
}
func (m *mockSchemaRepo) UpdatePrompt(ctx context.Context, userID, tag, prompt string) error {
	if m.updatePromptFn != nil {
		return m.updatePromptFn(ctx, userID, tag, prompt)
	}
	return nil
}

type mockGenerator struct {
	generateFn func(ctx context.Context, input string) (string, error)
}

func (m *mockGenerator) GenerateText(ctx context.Context, input string) (string, error) {
	return m.generateFn(ctx, input)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func schemaRepoWith(schema *model.ContentSchema) *mockSchemaRepo {
	return &mockSchemaRepo{
		findByUserAndTagFn: func(ctx context.Context, userID, tag string) (*model.ContentSchema, error) {
			if schema != nil && schema.UserID == userID && schema.Tag == tag {
				return schema, nil
			}
			return nil, nil
		},
	}
}

func testSchema() *model.ContentSchema {
	return &model.ContentSchema{
		ID:     "schema-1",
		UserID: "user-1",
		DBID:   "db-1",
		Tag:    "youtube",
		Schema: model.PropertyMap{
			"Title":   {ID: "t", Name: "Title", Type: "title"},
			"Summary": {ID: "s", Name: "Summary", Type: "rich_text"},
		},
	}
}

// --- 生成 ---

// 生成結果がタグとスキーマIDとともに返ること
func TestGenerate_Success(t *testing.T) {
	var receivedInput string
	gen := &mockGenerator{
		generateFn: func(ctx context.Context, input string) (string, error) {
			receivedInput = input
			return "  Map the Title field from the video title.  ", nil
		},
	}

	svc := NewService(schemaRepoWith(testSchema()), gen, testLogger())
	result, err := svc.Generate(context.Background(), "user-1", "youtube", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tag != "youtube" || result.SchemaID != "schema-1" {
		t.Errorf("unexpected result: %+v", result)
	}
	// 生成テキストは前後の空白を除去して返す
	if result.GeneratedPrompt != "Map the Title field from the video title." {
		t.Errorf("generated_prompt = %q", result.GeneratedPrompt)
	}
	// 解析プロンプトにスキーマのフィールド行が含まれること
	if !strings.Contains(receivedInput, "  - Title (title)") {
		t.Errorf("analysis prompt missing Title line:\n%s", receivedInput)
	}
	if !strings.Contains(receivedInput, "  - Summary (rich_text)") {
		t.Errorf("analysis prompt missing Summary line")
	}
	if !strings.Contains(receivedInput, `tag "youtube"`) {
		t.Errorf("analysis prompt missing tag")
	}
}

// フィードバック付き生成で解析プロンプトにフィードバックが含まれること
func TestGenerate_WithFeedback(t *testing.T) {
	var receivedInput string
	gen := &mockGenerator{
		generateFn: func(ctx context.Context, input string) (string, error) {
			receivedInput = input
			return "refined prompt", nil
		},
	}

	svc := NewService(schemaRepoWith(testSchema()), gen, testLogger())
	_, err := svc.Generate(context.Background(), "user-1", "youtube", "Focus on summarization")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(receivedInput, "USER FEEDBACK") {
		t.Error("expected feedback section in analysis prompt")
	}
	if !strings.Contains(receivedInput, "Focus on summarization") {
		t.Error("expected feedback text in analysis prompt")
	}
}

// 未登録タグでの生成は404になること
func TestGenerate_UnknownTag(t *testing.T) {
	svc := NewService(schemaRepoWith(testSchema()), &mockGenerator{}, testLogger())
	_, err := svc.Generate(context.Background(), "user-1", "missing", "")

	apiErr, ok := model.AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != 404 {
		t.Errorf("status = %d, want 404", apiErr.Status)
	}
	if apiErr.Message != "No schema found with tag 'missing' for this user" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

// 生成モデルの失敗は500になること
func TestGenerate_ModelFailure(t *testing.T) {
	gen := &mockGenerator{
		generateFn: func(ctx context.Context, input string) (string, error) {
			return "", fmt.Errorf("rate limited")
		},
	}

	svc := NewService(schemaRepoWith(testSchema()), gen, testLogger())
	_, err := svc.Generate(context.Background(), "user-1", "youtube", "")

	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Status != 500 {
		t.Fatalf("expected 500, got %v", err)
	}
}

// 空の生成結果は500になること
func TestGenerate_EmptyResponse(t *testing.T) {
	gen := &mockGenerator{
		generateFn: func(ctx context.Context, input string) (string, error) {
			return "   ", nil
		},
	}

	svc := NewService(schemaRepoWith(testSchema()), gen, testLogger())
	_, err := svc.Generate(context.Background(), "user-1", "youtube", "")

	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Status != 500 {
		t.Fatalf("expected 500, got %v", err)
	}
}

// --- 生成して保存 ---

// 生成結果が保存され成功メッセージが返ること
func TestGenerateAndSave_Success(t *testing.T) {
	repo := schemaRepoWith(testSchema())
	var savedPrompt string
	repo.updatePromptFn = func(ctx context.Context, userID, tag, prompt string) error {
		savedPrompt = prompt
		return nil
	}
	gen := &mockGenerator{
		generateFn: func(ctx context.Context, input string) (string, error) {
			return "generated mapping", nil
		},
	}

	svc := NewService(repo, gen, testLogger())
	result, err := svc.GenerateAndSave(context.Background(), "user-1", "youtube", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "Prompt generated and saved successfully" {
		t.Errorf("message = %q", result.Message)
	}
	if result.Prompt != "generated mapping" || savedPrompt != "generated mapping" {
		t.Errorf("prompt = %q, saved = %q", result.Prompt, savedPrompt)
	}
	if result.SchemaID != "schema-1" {
		t.Errorf("schema_id = %q", result.SchemaID)
	}
}

// 生成失敗時は保存が呼ばれないこと
func TestGenerateAndSave_GenerationFails(t *testing.T) {
	repo := schemaRepoWith(testSchema())
	repo.updatePromptFn = func(ctx context.Context, userID, tag, prompt string) error {
		t.Fatal("save must not happen when generation fails")
		return nil
	}
	gen := &mockGenerator{
		generateFn: func(ctx context.Context, input string) (string, error) {
			return "", fmt.Errorf("model unavailable")
		},
	}

	svc := NewService(repo, gen, testLogger())
	_, err := svc.GenerateAndSave(context.Background(), "user-1", "youtube", "")
	if err == nil {
		t.Fatal("expected error")
	}
}

// --- 照会 ---

// 保存済みプロンプトが返ること
func TestGetPrompt_WithStoredPrompt(t *testing.T) {
	schema := testSchema()
	stored := "stored mapping instructions"
	schema.Prompt = &stored

	svc := NewService(schemaRepoWith(schema), &mockGenerator{}, testLogger())
	info, err := svc.GetPrompt(context.Background(), "user-1", "youtube")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.HasPrompt || info.Prompt == nil || *info.Prompt != stored {
		t.Errorf("unexpected info: %+v", info)
	}
}

// 未保存の場合はhas_prompt=falseでnilが返ること
func TestGetPrompt_NoStoredPrompt(t *testing.T) {
	svc := NewService(schemaRepoWith(testSchema()), &mockGenerator{}, testLogger())
	info, err := svc.GetPrompt(context.Background(), "user-1", "youtube")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.HasPrompt || info.Prompt != nil {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.SchemaID != "schema-1" {
		t.Errorf("schema_id = %q", info.SchemaID)
	}
}

// --- 手動更新 ---

// カスタムプロンプトで上書きできること
func TestUpdatePrompt_Success(t *testing.T) {
	repo := schemaRepoWith(testSchema())
	var savedPrompt string
	repo.updatePromptFn = func(ctx context.Context, userID, tag, prompt string) error {
		savedPrompt = prompt
		return nil
	}

	svc := NewService(repo, &mockGenerator{}, testLogger())
	result, err := svc.UpdatePrompt(context.Background(), "user-1", "youtube", "my custom prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "Prompt updated successfully" {
		t.Errorf("message = %q", result.Message)
	}
	if savedPrompt != "my custom prompt" {
		t.Errorf("saved = %q", savedPrompt)
	}
}

// 未登録タグの更新は404になること
func TestUpdatePrompt_UnknownTag(t *testing.T) {
	svc := NewService(schemaRepoWith(testSchema()), &mockGenerator{}, testLogger())
	_, err := svc.UpdatePrompt(context.Background(), "user-1", "missing", "prompt")

	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}

// 更新時に行が消えていた場合も404になること
func TestUpdatePrompt_RowGone(t *testing.T) {
	repo := schemaRepoWith(testSchema())
	repo.updatePromptFn = func(ctx context.Context, userID, tag, prompt string) error {
		return sql.ErrNoRows
	}

	svc := NewService(repo, &mockGenerator{}, testLogger())
	_, err := svc.UpdatePrompt(context.Background(), "user-1", "youtube", "prompt")

	apiErr, ok := model.AsAPIError(err)
	if !ok || apiErr.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}

// --- テンプレート単体 ---

// プロパティ整形が名前順で安定していること
func TestFormatProperties_SortedAndTyped(t *testing.T) {
	props := model.PropertyMap{
		"b-field": {Type: "select"},
		"a-field": {Type: "title"},
		"c-field": {},
	}

	got := formatProperties(props)
	want := "  - a-field (title)\n  - b-field (select)\n  - c-field (unknown)"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

// ゴールデン例がテンプレートに埋め込まれていること
func TestBuildSchemaAnalysisPrompt_IncludesGoldenExample(t *testing.T) {
	out := buildSchemaAnalysisPrompt("  - Title (title)", "tech", "")
	if !strings.Contains(out, "GOLDEN EXAMPLE") {
		t.Error("expected golden example section")
	}
	if !strings.Contains(out, "Generate the mapping instructions now:") {
		t.Error("expected closing instruction")
	}
	if strings.Contains(out, "USER FEEDBACK") {
		t.Error("feedback section must be absent without feedback")
	}
}
