package avatar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/springboard/internal/model"
)

type mockStore struct {
	listFn   func(ctx context.Context, staleBefore time.Time, limit int) ([]*model.User, error)
	updateFn func(ctx context.Context, avatar *model.Avatar) error
}

func (m *mockStore) ListNeedingAvatarFetch(ctx context.Context, staleBefore time.Time, limit int) ([]*model.User, error) {
	return m.listFn(ctx, staleBefore, limit)
}

func (m *mockStore) UpdateAvatar(ctx context.Context, avatar *model.Avatar) error {
	if m.updateFn == nil {
		return nil
	}
	return m.updateFn(ctx, avatar)
}

type mockImageFetcher struct {
	fetchFn func(ctx context.Context, photoURL string) ([]byte, string, error)
}

func (m *mockImageFetcher) Fetch(ctx context.Context, photoURL string) ([]byte, string, error) {
	return m.fetchFn(ctx, photoURL)
}

type recordingObserver struct {
	results []string
}

func (o *recordingObserver) ObserveAvatarFetch(result string) {
	o.results = append(o.results, result)
}

var refreshNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestJob(store Store, fetcher ImageFetcher) *RefreshJob {
	cfg := DefaultRefreshConfig()
	cfg.FetchInterval = 0
	j := NewRefreshJob(store, fetcher, nil, cfg)
	j.SetClock(func() time.Time { return refreshNow })
	return j
}

func TestRefreshJob_RunOnce(t *testing.T) {
	var updated []*model.Avatar
	store := &mockStore{
		listFn: func(_ context.Context, staleBefore time.Time, limit int) ([]*model.User, error) {
			if !staleBefore.Equal(refreshNow.Add(-24*time.Hour)) || limit != 50 {
				t.Errorf("staleBefore = %v, limit = %d", staleBefore, limit)
			}
			return []*model.User{
				{ID: "u1", PhotoURL: "https://example.com/1.png"},
				{ID: "u2", PhotoURL: "https://example.com/2.html"},
			}, nil
		},
		updateFn: func(_ context.Context, a *model.Avatar) error {
			updated = append(updated, a)
			return nil
		},
	}
	fetcher := &mockImageFetcher{fetchFn: func(_ context.Context, url string) ([]byte, string, error) {
		if url == "https://example.com/1.png" {
			return []byte("png"), "image/png", nil
		}
		return nil, "", nil
	}}

	observer := &recordingObserver{}
	job := newTestJob(store, fetcher)
	job.SetObserver(observer)

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if len(observer.results) != 2 || observer.results[0] != "updated" || observer.results[1] != "empty" {
		t.Errorf("observed = %v, want [updated empty]", observer.results)
	}
	if len(updated) != 2 {
		t.Fatalf("len(updated) = %d, want 2", len(updated))
	}
	if string(updated[0].Data) != "png" || updated[0].Mime != "image/png" || !updated[0].FetchedAt.Equal(refreshNow) {
		t.Errorf("updated[0] = %+v", updated[0])
	}
	// 画像が取得できなかった場合も取得日時を記録する
	if updated[1].Data != nil || updated[1].FetchedAt.IsZero() {
		t.Errorf("updated[1] = %+v", updated[1])
	}
}

func TestRefreshJob_RunOnce_ListError(t *testing.T) {
	store := &mockStore{listFn: func(context.Context, time.Time, int) ([]*model.User, error) {
		return nil, errors.New("db down")
	}}
	if err := newTestJob(store, nil).RunOnce(context.Background()); err == nil {
		t.Error("expected error")
	}
}

// avatarTable は記録済みのユーザーを次の一覧から外すStore。
type avatarTable struct {
	users    []*model.User
	recorded map[string]*model.Avatar
	lists    int
}

func (s *avatarTable) ListNeedingAvatarFetch(_ context.Context, _ time.Time, limit int) ([]*model.User, error) {
	s.lists++
	var out []*model.User
	for _, u := range s.users {
		if _, ok := s.recorded[u.ID]; !ok && len(out) < limit {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *avatarTable) UpdateAvatar(_ context.Context, a *model.Avatar) error {
	s.recorded[a.UserID] = a
	return nil
}

func hostFetcher(dead map[string]bool) *mockImageFetcher {
	return &mockImageFetcher{fetchFn: func(_ context.Context, url string) ([]byte, string, error) {
		if dead[url] {
			return nil, "", errors.New("dial tcp: i/o timeout")
		}
		return []byte("png"), "image/png", nil
	}}
}

func TestRefreshJob_FailingUsersDoNotBlockOthers(t *testing.T) {
	table := &avatarTable{
		users: []*model.User{
			{ID: "d1", PhotoURL: "https://dead.example/1"},
			{ID: "d2", PhotoURL: "https://dead.example/2"},
			{ID: "d3", PhotoURL: "https://dead.example/3"},
			{ID: "ok", PhotoURL: "https://example.com/ok.png"},
		},
		recorded: map[string]*model.Avatar{},
	}
	dead := map[string]bool{"https://dead.example/1": true, "https://dead.example/2": true, "https://dead.example/3": true}
	observer := &recordingObserver{}
	job := newTestJob(table, hostFetcher(dead))
	job.SetObserver(observer)

	// 1サイクル目は3件連続の失敗で打ち切り、2サイクル目で後ろのユーザーを取得する
	for i := 0; i < 2; i++ {
		if err := job.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce #%d returned error: %v", i+1, err)
		}
	}

	got, ok := table.recorded["ok"]
	if !ok || string(got.Data) != "png" {
		t.Fatalf("失敗したユーザーの後ろのユーザーが取得されていない: %+v", got)
	}
	for _, id := range []string{"d1", "d2", "d3"} {
		a, ok := table.recorded[id]
		if !ok {
			t.Errorf("%s の取得日時が記録されていない", id)
			continue
		}
		if a.Data != nil || !a.FetchedAt.Equal(refreshNow) {
			t.Errorf("%s = %+v, want nil data at %v", id, a, refreshNow)
		}
	}
	want := []string{"error", "error", "error", "updated"}
	if len(observer.results) != len(want) {
		t.Fatalf("observed = %v, want %v", observer.results, want)
	}
	for i := range want {
		if observer.results[i] != want[i] {
			t.Errorf("observed = %v, want %v", observer.results, want)
			break
		}
	}
}

func TestRefreshJob_ConsecutiveErrorsWithinCycle(t *testing.T) {
	tests := []struct {
		name      string
		dead      []string
		wantLists int
		wantFirst int // 1サイクル目に記録される件数
	}{
		{"成功を挟めば連続失敗は数え直す", []string{"a", "b", "d", "e"}, 1, 5},
		{"3件連続で失敗したら残りは次のサイクル", []string{"a", "b", "c"}, 1, 3},
		{"失敗が2件までなら続ける", []string{"a", "b"}, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := &avatarTable{recorded: map[string]*model.Avatar{}}
			for _, id := range []string{"a", "b", "c", "d", "e"} {
				table.users = append(table.users, &model.User{ID: id, PhotoURL: id})
			}
			dead := map[string]bool{}
			for _, id := range tt.dead {
				dead[id] = true
			}
			job := newTestJob(table, hostFetcher(dead))

			if err := job.RunOnce(context.Background()); err != nil {
				t.Fatal(err)
			}
			if table.lists != tt.wantLists {
				t.Errorf("lists = %d, want %d", table.lists, tt.wantLists)
			}
			if len(table.recorded) != tt.wantFirst {
				t.Errorf("recorded = %d, want %d", len(table.recorded), tt.wantFirst)
			}

			// 次のサイクルは前回の失敗を引き継がずに実行される
			if err := job.RunOnce(context.Background()); err != nil {
				t.Fatal(err)
			}
			if len(table.recorded) != 5 {
				t.Errorf("2サイクル後の recorded = %d, want 5", len(table.recorded))
			}
		})
	}
}
