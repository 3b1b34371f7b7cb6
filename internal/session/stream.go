package session

import (
	"context"
	"errors"
	"sync"

	"github.com/hitoshi/springboard/internal/model"
)

// EventKind はサインイン状態の変化の種類。
type EventKind int

const (
	// SignedIn はサインインを表す。
	SignedIn EventKind = iota + 1
	// SignedOut はサインアウトを表す。
	SignedOut
	// Restored は保存先から消えた状態の作り直しを表す。サインインとしては数えない。
	Restored
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case Restored:
		return "restored"
	default:
		return "unknown"
	}
}

// Event はサインイン状態の変化を表すイベント。
// UserはSignedInでは外部IdPから受け取ったプロフィール、Restoredでは保存済みのユーザー。
// SignedOutでは空でよい。
type Event struct {
	Kind      EventKind
	SessionID string
	User      model.User

	reply chan reply
}

type reply struct {
	state *State
	err   error
}

// ErrStreamClosed は購読者が停止した後にイベントを送信した場合のエラー。
var ErrStreamClosed = errors.New("session event stream is closed")

// Stream はサインイン状態の変化を購読者に届ける単一のチャネル。
// 購読者は1つだけで、起動時に1度だけ購読し終了時に解除する。
type Stream struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewStream はStreamを生成する。
func NewStream() *Stream {
	return &Stream{
		events: make(chan Event),
		done:   make(chan struct{}),
	}
}

// Publish はイベントを送信し、購読者の処理結果を待つ。
func (s *Stream) Publish(ctx context.Context, ev Event) (*State, error) {
	ev.reply = make(chan reply, 1)

	select {
	case s.events <- ev:
	case <-s.done:
		return nil, ErrStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-ev.reply:
		return r.state, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close は購読の終了を通知する。以降のPublishはErrStreamClosedを返す。
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}
