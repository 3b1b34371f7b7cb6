// Package markdown はスニペット本文のマークダウンを安全なHTMLに変換する。
package markdown

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hitoshi/springboard/internal/security"
)

// MaxSourceBytes は変換するマークダウンの最大サイズ。
const MaxSourceBytes = 64 * 1024

// Renderer はGFM互換のマークダウンをHTMLに変換し、サニタイズして返す。
// 生のHTMLはgoldmarkの段階で出力せず、生成後のHTMLもサニタイズを通す。
type Renderer struct {
	md        goldmark.Markdown
	sanitizer security.ContentSanitizerService
}

// NewRenderer はRendererを生成する。
func NewRenderer(sanitizer security.ContentSanitizerService) *Renderer {
	md := goldmark.New(
		// GFM相当。表の配置はstyle属性ではなくalign属性で出力する
		goldmark.WithExtensions(
			extension.Linkify,
			extension.NewTable(extension.WithTableCellAlignMethod(extension.TableCellAlignAttribute)),
			extension.Strikethrough,
			extension.TaskList,
		),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	return &Renderer{md: md, sanitizer: sanitizer}
}

// Render はマークダウンをHTMLに変換する。
func (r *Renderer) Render(source string) (template.HTML, error) {
	if source == "" {
		return "", nil
	}
	if len(source) > MaxSourceBytes {
		return "", fmt.Errorf("markdown source too large: %d bytes", len(source))
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	return template.HTML(r.sanitizer.Sanitize(buf.String())), nil
}

// RenderOrText は変換に失敗した場合にエスケープしたテキストを返す。
func (r *Renderer) RenderOrText(source string) template.HTML {
	out, err := r.Render(source)
	if err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(source) + "</pre>")
	}
	return out
}
