// Package security は投稿データの無害化と外部URLの安全性検証を提供する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer は投稿本文からマークアップを取り除く。
type ContentSanitizer interface {
	// Sanitize はタグを除去した表示用のプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// PlainTextSanitizer はbluemondayのStrictPolicyによるContentSanitizerの実装。
// 投稿本文はクライアントでプレーンテキストとして表示されるため、
// タグをすべて除去したうえでエスケープを戻し、見たままの文字列を保存する。
// ポリシーは生成後に変更しないため、複数のgoroutineから共有できる。
type PlainTextSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は投稿本文用のPlainTextSanitizerを生成する。
// script, style, iframe などは要素の中身ごと除去される。
func NewContentSanitizer() *PlainTextSanitizer {
	return &PlainTextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize は投稿本文のタグを除去し、文字参照を通常の文字に戻す。
// "&" や "'" などタグでない文字はそのまま残る。
func (s *PlainTextSanitizer) Sanitize(raw string) string {
	return html.UnescapeString(s.policy.Sanitize(raw))
}

var _ ContentSanitizer = (*PlainTextSanitizer)(nil)
