// Package kiosk は端末上で出席登録フローを操作するための対話処理を提供します。
package kiosk

import (
	"errors"
	"strings"

	"academy_backend/internal/feature/attendance/domain/entity"
)

// ErrUnknownChoice は入力が分類として解釈できない場合に返されます。
var ErrUnknownChoice = errors.New("unknown choice")

// choices はプロンプトで受け付ける入力です。短縮形とポルトガル語の両方を受け付けます。
var choices = map[string]entity.Decision{
	"v":            entity.DecisionVisitor,
	"visitor":      entity.DecisionVisitor,
	"visitante":    entity.DecisionVisitor,
	"e":            entity.DecisionExperimental,
	"experimental": entity.DecisionExperimental,
	"i":            entity.DecisionIgnore,
	"ignore":       entity.DecisionIgnore,
	"ignorar":      entity.DecisionIgnore,
}

// ParseChoice は未一致の顔に対するオペレーターの入力を解釈します。
// 空の入力は pending のまま残すことを意味し、("", nil) を返します。
func ParseChoice(input string) (entity.Decision, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", nil
	}
	if d, ok := choices[s]; ok {
		return d, nil
	}
	return "", ErrUnknownChoice
}

// ParseYes は確認プロンプトの入力を解釈します。既定は No です。
func ParseYes(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "s", "sim", "y", "yes":
		return true
	}
	return false
}
