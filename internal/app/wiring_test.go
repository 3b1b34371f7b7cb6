package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hitoshi/springboard/internal/config"
	"github.com/hitoshi/springboard/internal/session"
	"golang.org/x/time/rate"
)

type memoryDataStore struct {
	data map[string][]byte
}

func (m *memoryDataStore) SaveData(_ context.Context, id string, data []byte) error {
	m.data[id] = data
	return nil
}

func (m *memoryDataStore) FindData(_ context.Context, id string) ([]byte, error) {
	return m.data[id], nil
}

func TestNewSessionStore(t *testing.T) {
	t.Run("REDIS_URL未設定の場合はsessionsテーブルに保存する", func(t *testing.T) {
		store, closeStore, err := newSessionStore(&config.Config{}, &memoryDataStore{data: map[string][]byte{}})
		if err != nil {
			t.Fatalf("newSessionStore() error: %v", err)
		}
		defer closeStore()
		if _, ok := store.(*session.PostgresStore); !ok {
			t.Errorf("store = %T, want *session.PostgresStore", store)
		}
	})

	t.Run("REDIS_URLが設定されている場合はRedisに保存する", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.Config{RedisURL: "redis://" + mr.Addr(), SessionMaxAge: 3600}

		store, closeStore, err := newSessionStore(cfg, nil)
		if err != nil {
			t.Fatalf("newSessionStore() error: %v", err)
		}
		defer closeStore()
		if _, ok := store.(*session.RedisStore); !ok {
			t.Fatalf("store = %T, want *session.RedisStore", store)
		}

		st := &session.State{SessionID: "s1", UserID: "u1"}
		if err := store.Save(context.Background(), st); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
		if ttl := mr.TTL("springboard:session:s1"); ttl.Seconds() != 3600 {
			t.Errorf("ttl = %v, want 1h", ttl)
		}
	})

	t.Run("不正なREDIS_URLはエラー", func(t *testing.T) {
		if _, _, err := newSessionStore(&config.Config{RedisURL: "://bad"}, nil); err == nil {
			t.Error("expected error")
		}
	})
}

func TestRateLimiterConfig(t *testing.T) {
	rl := rateLimiterConfig(&config.Config{RateLimitGeneral: 60, RateLimitWrite: 6})
	if rl.GeneralRate != rate.Limit(1) {
		t.Errorf("GeneralRate = %v, want 1", rl.GeneralRate)
	}
	if rl.GeneralBurst != 60 {
		t.Errorf("GeneralBurst = %d, want 60", rl.GeneralBurst)
	}
	if rl.WriteRate != rate.Limit(0.1) {
		t.Errorf("WriteRate = %v, want 0.1", rl.WriteRate)
	}

	// 0以下は既定値のまま
	def := rateLimiterConfig(&config.Config{})
	if def.GeneralRate != rate.Limit(2) {
		t.Errorf("GeneralRate = %v, want default 2", def.GeneralRate)
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"パスワードを伏せる", "postgres://springboard:secret@db:5432/springboard?sslmode=disable", "postgres://springboard:xxxxx@db:5432/springboard?sslmode=disable"},
		{"認証情報なしはそのまま", "postgres://db:5432/springboard", "postgres://db:5432/springboard"},
		{"URLでなければ全体を伏せる", "host=db password=secret", "***"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskDatabaseURL(tt.raw); got != tt.want {
				t.Errorf("maskDatabaseURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
