package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store はセッション状態の保存先のインターフェース。
type Store interface {
	// Save は状態を保存する。
	Save(ctx context.Context, st *State) error
	// Load は状態を取得する。存在しない場合はnilを返す。
	Load(ctx context.Context, sessionID string) (*State, error)
	// Delete は状態を削除する。
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore はプロセス内のメモリに状態を保持するStore。
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

// Save は状態を保存する。呼び出し元との共有を避けるためJSONで複製して保持する。
func (m *MemoryStore) Save(_ context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	m.mu.Lock()
	m.states[st.SessionID] = data
	m.mu.Unlock()
	return nil
}

// Load は状態を取得する。
func (m *MemoryStore) Load(_ context.Context, sessionID string) (*State, error) {
	m.mu.RLock()
	data, ok := m.states[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeState(data)
}

// Delete は状態を削除する。
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.states, sessionID)
	m.mu.Unlock()
	return nil
}

// DataStore はセッションレコードへの状態データの読み書きに必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type DataStore interface {
	SaveData(ctx context.Context, id string, data []byte) error
	FindData(ctx context.Context, id string) ([]byte, error)
}

// PostgresStore はsessionsテーブルのdataカラムに状態を保持するStore。
// セッションレコードの有効期限がそのまま状態の有効期限になる。
type PostgresStore struct {
	repo DataStore
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(repo DataStore) *PostgresStore {
	return &PostgresStore{repo: repo}
}

// Save は状態を保存する。
func (p *PostgresStore) Save(ctx context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	return p.repo.SaveData(ctx, st.SessionID, data)
}

// Load は状態を取得する。
func (p *PostgresStore) Load(ctx context.Context, sessionID string) (*State, error) {
	data, err := p.repo.FindData(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return decodeState(data)
}

// Delete は状態を消去する。セッションレコード自体の削除はログアウト処理が行う。
func (p *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	return p.repo.SaveData(ctx, sessionID, []byte("{}"))
}

const redisKeyPrefix = "springboard:session:"

// RedisStore はRedisに状態を保持するStore。
// 複数のサーバープロセスで状態を共有する場合に使用する。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore はRedisStoreを生成する。ttlはセッションの有効期間に合わせる。
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient はREDIS_URL形式の接続文字列からクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Save は状態を保存する。
func (r *RedisStore) Save(ctx context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+st.SessionID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session state to redis: %w", err)
	}
	return nil
}

// Load は状態を取得する。
func (r *RedisStore) Load(ctx context.Context, sessionID string) (*State, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session state from redis: %w", err)
	}
	return decodeState(data)
}

// Delete は状態を削除する。
func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete session state from redis: %w", err)
	}
	return nil
}

func decodeState(data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode session state: %w", err)
	}
	return &st, nil
}

// compile-time interface check
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*RedisStore)(nil)
)
