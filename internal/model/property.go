package model

import "encoding/json"

// PropertySchema は外部データベースの1フィールド定義を表す。
// Typeで判別し、型固有のメタデータはRawに保持する。
type PropertySchema struct {
	ID   string
	Name string
	Type string
	// Raw はAPIレスポンスのプロパティオブジェクト全体。
	// 型固有のオプション（selectの選択肢等）を失わずに保存するために保持する。
	Raw json.RawMessage
}

// PropertyMap はフィールド名からフィールド定義へのマッピング。
type PropertyMap map[string]PropertySchema

// UnmarshalJSON はAPIレスポンスのプロパティオブジェクトからPropertySchemaを復元する。
// typeキーのみを判別に使い、元のオブジェクトはRawとして保持する。
func (p *PropertySchema) UnmarshalJSON(data []byte) error {
	var head struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	p.ID = head.ID
	p.Name = head.Name
	p.Type = head.Type
	p.Raw = append(p.Raw[:0], data...)
	return nil
}

// MarshalJSON は保持しているRawオブジェクトをそのまま出力する。
// Rawが空の場合はtype情報のみのオブジェクトを出力する。
func (p PropertySchema) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	return json.Marshal(map[string]string{
		"id":   p.ID,
		"name": p.Name,
		"type": p.Type,
	})
}
