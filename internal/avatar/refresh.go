package avatar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/springboard/internal/model"
)

// Store はアバターキャッシュの読み書きに必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type Store interface {
	ListNeedingAvatarFetch(ctx context.Context, staleBefore time.Time, limit int) ([]*model.User, error)
	UpdateAvatar(ctx context.Context, avatar *model.Avatar) error
}

// ImageFetcher はプロフィール画像取得のインターフェース。テスト時にモックに差し替え可能。
type ImageFetcher interface {
	Fetch(ctx context.Context, photoURL string) ([]byte, string, error)
}

// FetchObserver は画像取得結果を受け取るインターフェース。
// 結果は "updated", "empty", "error" のいずれか。
type FetchObserver interface {
	ObserveAvatarFetch(result string)
}

// RefreshConfig はアバター更新ジョブの設定パラメータ。
type RefreshConfig struct {
	// Interval はジョブの実行間隔（デフォルト: 15分）。
	Interval time.Duration
	// FetchInterval は画像取得の最低間隔（デフォルト: 1秒）。
	FetchInterval time.Duration
	// MaxPerCycle は1サイクルあたりの最大取得件数（デフォルト: 50）。
	MaxPerCycle int
	// TTL は画像の再取得間隔（デフォルト: 24時間）。
	TTL time.Duration
}

// DefaultRefreshConfig はデフォルトの設定を返す。
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:      15 * time.Minute,
		FetchInterval: time.Second,
		MaxPerCycle:   50,
		TTL:           24 * time.Hour,
	}
}

// maxConsecutiveErrors は1サイクル内でこの回数続けて失敗したら残りを次のサイクルに回す。
const maxConsecutiveErrors = 3

// RefreshJob はプロフィール画像のキャッシュを定期的に更新するジョブ。
// 未取得またはTTLを過ぎたユーザーを対象に画像を取得し、取得できなかった場合も
// 取得日時を記録してTTLまで再試行しない。
type RefreshJob struct {
	store    Store
	fetcher  ImageFetcher
	logger   *slog.Logger
	config   RefreshConfig
	limiter  *rate.Limiter
	now      func() time.Time
	observer FetchObserver
}

// NewRefreshJob はRefreshJobを生成する。
func NewRefreshJob(store Store, fetcher ImageFetcher, logger *slog.Logger, config RefreshConfig) *RefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if config.FetchInterval > 0 {
		limit = rate.Every(config.FetchInterval)
	}
	return &RefreshJob{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// SetClock はテスト用に時刻の取得元を差し替える。
func (j *RefreshJob) SetClock(now func() time.Time) {
	j.now = now
}

// SetObserver は画像取得結果の通知先を設定する。
func (j *RefreshJob) SetObserver(observer FetchObserver) {
	j.observer = observer
}

func (j *RefreshJob) observe(result string) {
	if j.observer != nil {
		j.observer.ObserveAvatarFetch(result)
	}
}

// Start はジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *RefreshJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info("アバター更新ジョブを開始しました",
		slog.Duration("interval", j.config.Interval),
		slog.Duration("fetch_interval", j.config.FetchInterval),
		slog.Int("max_per_cycle", j.config.MaxPerCycle),
	)

	if err := j.RunOnce(ctx); err != nil {
		j.logger.Error("アバター更新サイクルの実行に失敗しました", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("アバター更新ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Error("アバター更新サイクルの実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は1回の更新サイクルを実行する。
func (j *RefreshJob) RunOnce(ctx context.Context) error {
	start := j.now()

	users, err := j.store.ListNeedingAvatarFetch(ctx, start.Add(-j.config.TTL), j.config.MaxPerCycle)
	if err != nil {
		return fmt.Errorf("アバター取得対象ユーザーの取得に失敗しました: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	var updated, empty, failed, streak int
	for _, u := range users {
		if streak >= maxConsecutiveErrors {
			j.logger.Warn("連続して取得に失敗したため残りは次のサイクルで取得します",
				slog.Int("consecutive_errors", streak),
			)
			break
		}
		if err := j.limiter.Wait(ctx); err != nil {
			return err
		}

		data, mime, fetchErr := j.fetcher.Fetch(ctx, u.PhotoURL)
		if fetchErr != nil {
			// 失敗したユーザーも取得日時を記録し、後ろのユーザーを先に進める
			j.logger.Warn("プロフィール画像の取得に失敗しました",
				slog.String("user_id", u.ID),
				slog.String("error", fetchErr.Error()),
			)
			j.observe("error")
			failed++
			streak++
			data, mime = nil, ""
		} else {
			streak = 0
		}

		if err := j.store.UpdateAvatar(ctx, &model.Avatar{
			UserID:    u.ID,
			Data:      data,
			Mime:      mime,
			FetchedAt: j.now().UTC(),
		}); err != nil {
			j.logger.Error("アバターキャッシュの更新に失敗しました",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		switch {
		case fetchErr != nil:
			// 結果は"error"として通知済み
		case data == nil:
			empty++
			j.observe("empty")
		default:
			updated++
			j.observe("updated")
		}
	}

	j.logger.Info("アバター更新サイクルが完了しました",
		slog.Int("target_users", len(users)),
		slog.Int("updated", updated),
		slog.Int("without_image", empty),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return nil
}
