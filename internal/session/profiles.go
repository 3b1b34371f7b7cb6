package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/springboard/internal/model"
)

// ProfileFinder はプロフィールの一括取得に必要なインターフェース。
type ProfileFinder interface {
	FindProfilesByEmails(ctx context.Context, emails []string) ([]model.Profile, error)
}

// StateSaver は更新したセッション状態の保存に必要なインターフェース。Managerが実装する。
type StateSaver interface {
	Save(ctx context.Context, st *State) error
}

// ProfileCache はセッション状態上のチームメンバーのプロフィールキャッシュを管理する。
type ProfileCache struct {
	finder ProfileFinder
	saver  StateSaver
	ttl    time.Duration
	now    func() time.Time
}

// NewProfileCache はProfileCacheを生成する。
func NewProfileCache(finder ProfileFinder, ttl time.Duration) *ProfileCache {
	return &ProfileCache{finder: finder, ttl: ttl, now: time.Now}
}

// SetSaver は取得し直したキャッシュの保存先を設定する。
func (c *ProfileCache) SetSaver(saver StateSaver) {
	c.saver = saver
}

// SetClock はテスト用に時刻の取得元を差し替える。
func (c *ProfileCache) SetClock(now func() time.Time) {
	c.now = now
}

// Stale はキャッシュの有効期限が切れているかを返す。
func (c *ProfileCache) Stale(st *State) bool {
	return st.ProfilesFetchedAt.IsZero() || c.now().Sub(st.ProfilesFetchedAt) > c.ttl
}

// Ensure は指定メールアドレスのプロフィールを返す。
// キャッシュにない、または項目が欠けているものだけを取得する。
// 期限切れの場合はキャッシュを捨てて指定分を取得し直し、取得日時を更新する。
// ProfilesFetchedAtはキャッシュ内で最も古い取得日時を表すため、期限内の追加取得では更新しない。
// 取得し直した場合は状態のキャッシュを更新し、保存先が設定されていれば保存する。
// 取得できなかったユーザーはメールアドレスのみのプロフィールになる。
func (c *ProfileCache) Ensure(ctx context.Context, st *State, emails []string) (map[string]model.Profile, error) {
	stale := c.Stale(st)
	var missing []string
	for _, e := range emails {
		p, ok := st.CachedProfile(e)
		if stale || !ok || !p.Complete() {
			missing = append(missing, e)
		}
	}

	if len(missing) > 0 {
		fetched, err := c.finder.FindProfilesByEmails(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch profiles: %w", err)
		}
		if stale {
			st.Profiles = nil
			st.ProfilesFetchedAt = c.now().UTC()
		}
		for _, p := range fetched {
			st.PutProfile(p)
		}
		if c.saver != nil {
			if err := c.saver.Save(ctx, st); err != nil {
				slog.Warn("failed to save profile cache",
					slog.String("session_id", st.SessionID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	result := make(map[string]model.Profile, len(emails))
	for _, e := range emails {
		p, ok := st.CachedProfile(e)
		if !ok {
			p = model.Profile{Email: e}
		}
		result[profileKey(e)] = p
	}
	return result, nil
}

// Lookup はEnsureの結果からメールアドレスに対応するプロフィールを返す。
func Lookup(profiles map[string]model.Profile, email string) model.Profile {
	if p, ok := profiles[profileKey(email)]; ok {
		return p
	}
	return model.Profile{Email: email}
}
