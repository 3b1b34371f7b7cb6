// Package authz はサインイン済みユーザーの利用権限確認を提供する。
package authz

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hitoshi/springboard/internal/model"
)

// Status は利用権限の確認状態を表す。
type Status string

const (
	// StatusUnknown は確認中（未確定）の状態。
	StatusUnknown Status = "unknown"
	// StatusAuthorized は利用を許可された状態。
	StatusAuthorized Status = "authorized"
	// StatusUnauthorized は利用を許可されていない状態。
	StatusUnauthorized Status = "unauthorized"
)

// Policy は利用権限の判定方式のインターフェース。
type Policy interface {
	Check(ctx context.Context, email string) (bool, error)
}

// ポリシー名
const (
	PolicyAllowList  = "allowlist"
	PolicyMembership = "membership"
)

// AllowList は設定値のメールアドレス一覧で判定するポリシー。
// 一覧は確認のたびに読み直す。
type AllowList struct {
	source func() string
}

// NewAllowList は環境変数 ALLOW_LIST を参照するAllowListを生成する。
func NewAllowList() *AllowList {
	return NewAllowListFrom(func() string { return os.Getenv("ALLOW_LIST") })
}

// NewAllowListFrom は任意の取得元を参照するAllowListを生成する。
func NewAllowListFrom(source func() string) *AllowList {
	return &AllowList{source: source}
}

// Check はメールアドレスが一覧に含まれるかを返す。大文字小文字は区別しない。
func (a *AllowList) Check(_ context.Context, email string) (bool, error) {
	target := strings.ToLower(strings.TrimSpace(email))
	for _, entry := range strings.Split(a.source(), ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry != "" && entry == target {
			return true, nil
		}
	}
	return false, nil
}

// MemberFinder はメンバー登録の確認に必要なインターフェース。
// repository.MemberRepositoryの部分集合として定義する。
type MemberFinder interface {
	Exists(ctx context.Context, email string) (bool, error)
}

// Membership はmembersテーブルへの登録有無で判定するポリシー。
type Membership struct {
	members MemberFinder
}

// NewMembership はMembershipを生成する。
func NewMembership(members MemberFinder) *Membership {
	return &Membership{members: members}
}

// Check はメールアドレスがメンバー登録されているかを返す。
func (m *Membership) Check(ctx context.Context, email string) (bool, error) {
	ok, err := m.members.Exists(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return ok, nil
}

// NewPolicy は名前からポリシーを生成する。空文字はallowlistとして扱う。
func NewPolicy(name string, members MemberFinder) (Policy, error) {
	switch name {
	case "", PolicyAllowList:
		return NewAllowList(), nil
	case PolicyMembership:
		if members == nil {
			return nil, fmt.Errorf("membership policy requires a member repository")
		}
		return NewMembership(members), nil
	default:
		return nil, fmt.Errorf("unknown auth policy: %s", name)
	}
}

// Result は権限確認の結果。
type Result struct {
	Status Status
	// Err は確認に失敗した場合のユーザー向けエラー。
	Err *model.APIError
}

// Checker はポリシーを使って権限を確認する。
// 確認に失敗した場合は許可せず、ユーザー向けのエラーを返す。
type Checker struct {
	policy Policy
	logger *slog.Logger
}

// NewChecker はCheckerを生成する。
func NewChecker(policy Policy, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{policy: policy, logger: logger}
}

// Check はメールアドレスの利用権限を確認する。
func (c *Checker) Check(ctx context.Context, email string) Result {
	if strings.TrimSpace(email) == "" {
		return Result{Status: StatusUnauthorized}
	}

	ok, err := c.policy.Check(ctx, email)
	if err != nil {
		c.logger.Error("利用権限の確認に失敗しました",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return Result{Status: StatusUnauthorized, Err: model.NewAuthorizationFailedError()}
	}
	if !ok {
		c.logger.Info("利用権限のないユーザーがサインインしました", slog.String("email", email))
		return Result{Status: StatusUnauthorized}
	}
	return Result{Status: StatusAuthorized}
}
