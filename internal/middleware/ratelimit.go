package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/springboard/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // 閲覧を含む全リクエストのレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // 全リクエストのバーストサイズ
	WriteRate       rate.Limit    // スニペット書き込みのレート（req/sec）。30/60
	WriteBurst      int           // スニペット書き込みのバーストサイズ
	CleanupInterval time.Duration // 使われなくなったリミッターを掃除する間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 全リクエスト 120 req/min/user、スニペット書き込み 30 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0),
		GeneralBurst:    120,
		WriteRate:       rate.Limit(30.0 / 60.0),
		WriteBurst:      10,
		CleanupInterval: 5 * time.Minute,
	}
}

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はひとつの制限種別についてユーザーごとのトークンバケットを保持する。
type limiterSet struct {
	kind  string
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*userLimiter
}

func newLimiterSet(kind string, limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		kind:     kind,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*userLimiter),
	}
}

// allow はuserIDのバケットからトークンをひとつ取り出せたかを返す。
func (s *limiterSet) allow(userID string, now time.Time) bool {
	s.mu.Lock()
	ul, ok := s.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[userID] = ul
	}
	ul.lastAccess = now
	s.mu.Unlock()

	return ul.limiter.AllowN(now, 1)
}

// sweep は最終アクセスがttlより古いエントリを削除する。
func (s *limiterSet) sweep(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, ul := range s.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(s.limiters, userID)
		}
	}
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimiter はユーザーごとのレート制限を管理する。
// 全リクエスト向けとスニペット書き込み向けの2種類のバケットは独立している。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterSet
	write   *limiterSet
	stopCh  chan struct{}
}

// NewRateLimiter はRateLimiterを生成し、バックグラウンドの掃除を開始する。
// 終了時はStopを呼ぶこと。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterSet("general", config.GeneralRate, config.GeneralBurst),
		write:   newLimiterSet("snippet_write", config.WriteRate, config.WriteBurst),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware は全リクエスト向けのレート制限ミドルウェアを返す。
// SessionMiddlewareより内側に置くこと。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// WriteMiddleware はスニペットの保存・削除向けのレート制限ミドルウェアを返す。
func (rl *RateLimiter) WriteMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.write)
}

func (rl *RateLimiter) middleware(set *limiterSet) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if !set.allow(userID, time.Now()) {
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", set.kind),
					slog.String("path", r.URL.Path),
				)
				writeRateLimitResponse(w, r, set.limit)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は全リクエスト向けのリミッター数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// WriteLimiterCount はスニペット書き込み向けのリミッター数を返す。
func (rl *RateLimiter) WriteLimiterCount() int {
	return rl.write.len()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスがCleanupIntervalの2倍より古いリミッターを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.sweep(now, ttl)
	rl.write.sweep(now, ttl)
}

// writeRateLimitResponse は429を書き込む。
// Retry-Afterにはトークンがひとつ補充されるまでの秒数を切り上げて設定する。
func writeRateLimitResponse(w http.ResponseWriter, r *http.Request, limit rate.Limit) {
	retryAfterSec := 1
	if limit > 0 {
		retryAfterSec = max(int(math.Ceil(1.0/float64(limit))), 1)
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))

	if strings.HasPrefix(r.URL.Path, "/api/") {
		WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
		return
	}
	http.Error(w, "リクエストが多すぎます。しばらく待ってから再度お試しください。", http.StatusTooManyRequests)
}
