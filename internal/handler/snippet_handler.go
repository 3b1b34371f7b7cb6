package handler

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/springboard/internal/editor"
	"github.com/hitoshi/springboard/internal/markdown"
	"github.com/hitoshi/springboard/internal/model"
	"github.com/hitoshi/springboard/internal/session"
)

// SnippetEditorInterface はスニペットハンドラーが必要とするサービスインターフェース。
// editor.Serviceが実装する。
type SnippetEditorInterface interface {
	Load(ctx context.Context, st *session.State, day model.Day) (editor.View, error)
	Save(ctx context.Context, st *session.State, v editor.View, body string) (editor.View, error)
	Delete(ctx context.Context, st *session.State, v editor.View, confirmed bool) (editor.View, error)
	Suggest(ctx context.Context, st *session.State, day model.Day) (string, error)
}

// MarkdownRenderer はスニペット本文の表示に必要なインターフェース。
// markdown.Rendererが実装する。
type MarkdownRenderer interface {
	Render(source string) (template.HTML, error)
	RenderOrText(source string) template.HTML
}

// SnippetMetrics はスニペット操作のメトリクス記録に必要なインターフェース。
type SnippetMetrics interface {
	RecordSnippetSaved()
	RecordSnippetDeleted()
}

// SnippetHandler はスニペット編集のHTTPハンドラー。
type SnippetHandler struct {
	editor    SnippetEditorInterface
	navigator Navigator
	renderer  MarkdownRenderer
	metrics   SnippetMetrics
}

// NewSnippetHandler はSnippetHandlerを生成する。metricsはnilでもよい。
func NewSnippetHandler(editor SnippetEditorInterface, navigator Navigator, renderer MarkdownRenderer, metrics SnippetMetrics) *SnippetHandler {
	return &SnippetHandler{
		editor:    editor,
		navigator: navigator,
		renderer:  renderer,
		metrics:   metrics,
	}
}

// saveSnippetRequest はスニペット保存リクエストのボディ。
type saveSnippetRequest struct {
	Snippet string `json:"snippet"`
}

// suggestionResponse は提案のAPIレスポンス。
type suggestionResponse struct {
	Date       string `json:"date"`
	Suggestion string `json:"suggestion"`
}

// dayFromRequest はURLの日付を解析し、未来の日付を拒否する。
func (h *SnippetHandler) dayFromRequest(w http.ResponseWriter, r *http.Request) (model.Day, bool) {
	day, ok := parseDayParam(w, chi.URLParam(r, "date"))
	if !ok {
		return "", false
	}
	if _, err := h.navigator.ClickDay(day); err != nil {
		handleServiceError(w, err)
		return "", false
	}
	return day, true
}

func (h *SnippetHandler) render(source string) template.HTML {
	if h.renderer == nil {
		return template.HTML(template.HTMLEscapeString(source))
	}
	return h.renderer.RenderOrText(source)
}

// GetSnippet は1日分の編集画面の内容を返す。
// GET /api/snippets/{date}
func (h *SnippetHandler) GetSnippet(w http.ResponseWriter, r *http.Request) {
	st, ok := requireState(w, r)
	if !ok {
		return
	}
	day, ok := h.dayFromRequest(w, r)
	if !ok {
		return
	}

	v, err := h.editor.Load(r.Context(), st, day)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnippetViewResponse(v, h.render))
}

// SaveSnippet は自分のスニペットを保存する。
// PUT /api/snippets/{date}
func (h *SnippetHandler) SaveSnippet(w http.ResponseWriter, r *http.Request) {
	st, ok := requireState(w, r)
	if !ok {
		return
	}
	day, ok := h.dayFromRequest(w, r)
	if !ok {
		return
	}

	var req saveSnippetRequest
	r.Body = http.MaxBytesReader(w, r.Body, markdown.MaxSourceBytes+1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	v, err := h.editor.Load(r.Context(), st, day)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	next, err := h.editor.Save(r.Context(), st, v, req.Snippet)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSnippetSaved()
	}
	writeJSON(w, http.StatusOK, toSnippetViewResponse(next, h.render))
}

// DeleteSnippet は自分のスニペットを削除する。
// DELETE /api/snippets/{date}?confirm=true
// confirm=trueがない場合は削除せず428を返す。
func (h *SnippetHandler) DeleteSnippet(w http.ResponseWriter, r *http.Request) {
	st, ok := requireState(w, r)
	if !ok {
		return
	}
	day, ok := h.dayFromRequest(w, r)
	if !ok {
		return
	}

	v, err := h.editor.Load(r.Context(), st, day)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !v.SnippetExists {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewSnippetNotFoundError(day))
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	next, err := h.editor.Delete(r.Context(), st, v, confirmed)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordSnippetDeleted()
	}
	writeJSON(w, http.StatusOK, toSnippetViewResponse(next, h.render))
}

// GetSuggestion は編集の提案を返す。
// GET /api/snippets/{date}/suggestion
func (h *SnippetHandler) GetSuggestion(w http.ResponseWriter, r *http.Request) {
	st, ok := requireState(w, r)
	if !ok {
		return
	}
	day, ok := h.dayFromRequest(w, r)
	if !ok {
		return
	}

	text, err := h.editor.Suggest(r.Context(), st, day)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestionResponse{Date: day.String(), Suggestion: text})
}

// previewRequest はプレビューリクエストのボディ。
type previewRequest struct {
	Snippet string `json:"snippet"`
}

// previewResponse はプレビューのAPIレスポンス。
type previewResponse struct {
	HTML template.HTML `json:"html"`
}

// Preview はマークダウンをサニタイズ済みのHTMLに変換して返す。
// POST /api/preview
func (h *SnippetHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	r.Body = http.MaxBytesReader(w, r.Body, markdown.MaxSourceBytes+1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	out, err := h.renderer.Render(req.Snippet)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{HTML: out})
}
