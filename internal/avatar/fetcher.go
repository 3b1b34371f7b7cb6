// Package avatar はIdPのプロフィール画像を取得してキャッシュする。
// ブラウザから外部の画像URLを直接参照させず、同一オリジンから配信するために使う。
package avatar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxAvatarSize はプロフィール画像の最大サイズ（1MB）。
const maxAvatarSize = 1 * 1024 * 1024

// fetchTimeout はプロフィール画像取得のタイムアウト。
const fetchTimeout = 5 * time.Second

// SSRFValidator はSSRF防止に必要な機能のインターフェース。
// security.SSRFGuardServiceの部分集合として定義する。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Fetcher はプロフィール画像の取得機能。
type Fetcher struct {
	ssrfGuard SSRFValidator
	client    *http.Client
	logger    *slog.Logger
}

// NewFetcher はFetcherを生成する。
func NewFetcher(ssrfGuard SSRFValidator, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{ssrfGuard: ssrfGuard, logger: logger}
	if ssrfGuard != nil {
		f.client = ssrfGuard.NewSafeClient(fetchTimeout)
	} else {
		f.client = &http.Client{Timeout: fetchTimeout}
	}
	return f
}

// Fetch は指定URLからプロフィール画像を取得する。
// 画像として扱えない応答（2xx以外、画像以外、サイズ超過、SSRFブロック）はnilデータを返し、
// 通信エラーのみをerrorとして返す。
func (f *Fetcher) Fetch(ctx context.Context, photoURL string) ([]byte, string, error) {
	if photoURL == "" {
		return nil, "", nil
	}

	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(photoURL); err != nil {
			f.logger.Warn("アバター取得: SSRFブロック", "url", photoURL, "error", err)
			return nil, "", nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		f.logger.Warn("アバター取得: リクエスト作成失敗", "url", photoURL, "error", err)
		return nil, "", nil
	}
	req.Header.Set("User-Agent", "Springboard/1.0")
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Warn("アバター取得: HTTPステータス異常", "url", photoURL, "status", resp.StatusCode)
		return nil, "", nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read avatar body: %w", err)
	}
	if len(body) > maxAvatarSize {
		f.logger.Warn("アバター取得: サイズ超過", "url", photoURL, "size", len(body))
		return nil, "", nil
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isRasterImage(mimeType) {
		f.logger.Warn("アバター取得: 画像以外のContent-Type", "url", photoURL, "contentType", mimeType)
		return nil, "", nil
	}

	return body, mimeType, nil
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isRasterImage は配信してよい画像形式かを判定する。SVGはスクリプトを含みうるため除く。
func isRasterImage(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp", "image/avif":
		return true
	}
	return false
}
