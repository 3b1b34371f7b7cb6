package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/springboard/internal/model"
)

// AvatarFinder はキャッシュ済みアバター画像の取得に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type AvatarFinder interface {
	FindAvatar(ctx context.Context, userID string) (*model.Avatar, error)
}

// AvatarHandler はアバター画像配信のHTTPハンドラー。
// 外部の画像URLを直接参照させず、ワーカーが取得したキャッシュを同一オリジンから配信する。
type AvatarHandler struct {
	finder AvatarFinder
}

// NewAvatarHandler はAvatarHandlerを生成する。
func NewAvatarHandler(finder AvatarFinder) *AvatarHandler {
	return &AvatarHandler{finder: finder}
}

// GetAvatar はユーザーのアバター画像を返す。
// GET /api/users/{id}/avatar
// 未取得の場合は404を返し、クライアントは頭文字で表示する。
func (h *AvatarHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	avatar, err := h.finder.FindAvatar(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if avatar == nil || len(avatar.Data) == 0 || avatar.Mime == "" {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAvatarNotFoundError())
		return
	}

	w.Header().Set("Content-Type", avatar.Mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(avatar.Data)
}
