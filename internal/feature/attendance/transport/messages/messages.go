// Package messages はエラーコードごとのオペレーター向けメッセージを提供します。
package messages

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultLocale はアカデミーのフロントで使う既定の言語です。
const DefaultLocale = "pt-BR"

// CodeInternal は未知のエラーに使うコードです。
const CodeInternal = "internal_error"

//go:embed messages.yaml
var messagesYAML []byte

// Catalog は1つの言語のメッセージ一覧です。
type Catalog struct {
	locale   string
	messages map[string]string
}

// Load は埋め込みのメッセージ一覧から指定言語のカタログを読み込みます。
// locale が空の場合は DefaultLocale を使用します。
func Load(locale string) (*Catalog, error) {
	if locale == "" {
		locale = DefaultLocale
	}

	var all map[string]map[string]string
	if err := yaml.Unmarshal(messagesYAML, &all); err != nil {
		return nil, fmt.Errorf("parse embedded messages: %w", err)
	}
	msgs, ok := all[locale]
	if !ok {
		return nil, fmt.Errorf("unsupported locale %q", locale)
	}
	if _, ok := msgs[CodeInternal]; !ok {
		return nil, fmt.Errorf("locale %q has no %s message", locale, CodeInternal)
	}
	return &Catalog{locale: locale, messages: msgs}, nil
}

// Locale はカタログの言語を返します。
func (c *Catalog) Locale() string { return c.locale }

// Message はコードに対応するメッセージを返します。未知のコードは internal_error のメッセージになります。
func (c *Catalog) Message(code string) string {
	if m, ok := c.messages[code]; ok {
		return m
	}
	return c.messages[CodeInternal]
}
