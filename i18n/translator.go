package i18n

import "sync"

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "field" or "type").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	var msg string
	switch t.lang {
	case "ja":
		switch code {
		case "unknown_field":
			msg = "スキーマに存在しないフィールドです"
		case "already_constrained":
			msg = "コンテナは既に制約済みです"
		case "resolution_cycle":
			msg = "解決が循環しています"
		case "construction_failed":
			msg = "レコードの構築に失敗しました"
		case "unknown_type":
			msg = "未登録のレコード型です"
		case "invalid_definition":
			msg = "型定義が不正です"
		case "parse_error":
			msg = "解析エラー"
		case "dependency_unavailable":
			msg = "依存先サービスが利用できません"
		case "bind_mismatch":
			msg = "値を構造体フィールドに割り当てられません"
		case "duplicate_key":
			msg = "キーが重複しています"
		case "mutation_failed":
			msg = "ミューテーションの適用に失敗しました"
		}
	default: // "en"
		switch code {
		case "unknown_field":
			msg = "field is not declared in the schema"
		case "already_constrained":
			msg = "container was already constrained"
		case "resolution_cycle":
			msg = "field resolution re-entered itself"
		case "construction_failed":
			msg = "record construction failed"
		case "unknown_type":
			msg = "record type is not registered"
		case "invalid_definition":
			msg = "invalid type definition"
		case "parse_error":
			msg = "parse error"
		case "dependency_unavailable":
			msg = "dependency unavailable"
		case "bind_mismatch":
			msg = "value does not fit the bound field"
		case "duplicate_key":
			msg = "duplicate key"
		case "mutation_failed":
			msg = "mutation could not be applied"
		}
	}
	if msg == "" {
		return code
	}
	if d := data["detail"]; d != "" {
		msg += " (" + d + ")"
	}
	return msg
}

var (
	mu                           = sync.RWMutex{}
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	mu.Lock()
	currentTranslator = dictTranslator{lang: lang}
	mu.Unlock()
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	mu.Lock()
	defer mu.Unlock()
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	return tr.Message(code, data)
}
