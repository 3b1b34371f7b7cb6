// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はスニペットのマークダウンから生成したHTMLをサニタイズし、
// チームメンバーの画面でスクリプトが実行されないようにする。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// マークダウン（GFM）が生成するタグと属性のみを通過させる。
package security

import (
	"net/url"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
// プレビューとスニペット表示の直前に使用される。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// script, iframe, styleタグおよびon*イベント属性は除去する。
	// imgタグのsrc属性はhttpsスキームのみ許可される。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 見出し: h1〜h6
//   - ブロック: p, br, hr, ul, ol, li, blockquote, pre, code
//   - 装飾: strong, em, del
//   - 表: table, thead, tbody, tr, th, td（align属性のみ）
//   - タスクリスト: type="checkbox"のinput（checked, disabled属性のみ）
//   - URLスキーム: httpsとmailtoのみ
//   - a: href属性、target="_blank"とrel="noopener noreferrer"を付与
//   - img: src（httpsのみ）とalt属性
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "del",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("align").Matching(bluemonday.CellAlign).OnElements("th", "td")
	p.AllowAttrs("start").Matching(bluemonday.Integer).OnElements("ol")

	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src").OnElements("img")
	p.AllowAttrs("alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})
	p.AllowURLSchemes("mailto")

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
