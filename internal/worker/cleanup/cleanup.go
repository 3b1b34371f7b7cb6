// Package cleanup は期限切れセッションを削除するワーカージョブを提供する。
// スニペット画面の状態はセッション行に保存されているため、行と一緒に消える。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultRetentionDays = 7
	defaultBatchSize     = 500
)

// Executor は *sql.DB と *sql.Tx が満たすExecContextだけのインターフェース。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PurgeObserver は1回の実行で削除したセッション数を受け取る。
type PurgeObserver interface {
	RecordSessionsPurged(n int64)
}

// CleanupJob は有効期限からRetentionDays日を過ぎたセッションを削除する。
// 1回のDELETEはBatchSize件までに抑え、対象がなくなるまで繰り返す。
type CleanupJob struct {
	db       Executor
	logger   *slog.Logger
	observer PurgeObserver
	now      func() time.Time

	RetentionDays int
	BatchSize     int
}

// NewCleanupJob は保持日数7日、バッチサイズ500のCleanupJobを生成する。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		now:           time.Now,
		RetentionDays: defaultRetentionDays,
		BatchSize:     defaultBatchSize,
	}
}

// SetObserver は削除件数の通知先を設定する。
func (j *CleanupJob) SetObserver(observer PurgeObserver) {
	j.observer = observer
}

// Start は起動直後に1回、以降intervalごとにRunを呼ぶ。ctxが終わると戻る。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil {
		j.logger.Error("セッションの削除に失敗しました", slog.String("error", err.Error()))
	}
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE id IN (
	SELECT id FROM sessions WHERE expires_at < $1 ORDER BY expires_at LIMIT $2
)`

// Run は削除対象がなくなるまでバッチ削除を繰り返し、削除件数の合計を返す。
// 途中で失敗した場合もそれまでに削除した件数を返す。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := j.now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)
	batch := j.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	var total int64
	var batches int
	for {
		if err := ctx.Err(); err != nil {
			j.report(total)
			return total, err
		}

		result, err := j.db.ExecContext(ctx, deleteExpiredSessions, cutoff, batch)
		if err != nil {
			j.report(total)
			return total, fmt.Errorf("delete expired sessions: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			j.report(total)
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += n
		batches++
		if n < int64(batch) {
			break
		}
	}

	j.report(total)
	j.logger.Info("期限切れセッションを削除しました",
		slog.Int64("deleted_count", total),
		slog.Int("batches", batches),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Int64("duration_ms", j.now().Sub(start).Milliseconds()),
	)
	return total, nil
}

func (j *CleanupJob) report(n int64) {
	if j.observer != nil && n > 0 {
		j.observer.RecordSessionsPurged(n)
	}
}
