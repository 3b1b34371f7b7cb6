// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// User はサービス利用ユーザーを表す。
// 初回サインイン時に作成され、以降のサインインのたびにマージ更新される。
type User struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
	LastLogin   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile は他のチームメンバーから参照されるユーザーの公開プロフィール。
// アバターと表示名の描画に使用する。
type Profile struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Profile はユーザーから公開プロフィールを取り出す。
func (u *User) Profile() Profile {
	return Profile{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}

// Label は表示名を返す。表示名が空の場合はメールアドレスを返す。
func (p Profile) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}

// Initial はアバター画像がない場合に表示する頭文字を返す。
// 表示名もメールアドレスもない場合は "?" を返す。
func (p Profile) Initial() string {
	label := p.Label()
	if label == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(label)
	return strings.ToUpper(string(r))
}

// Complete はアバター描画に必要な項目が揃っているかを返す。
func (p Profile) Complete() bool {
	return p.UserID != "" && p.Email != "" && p.DisplayName != ""
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
	// LastSignInAt は未サインインならnil。
	LastSignInAt *time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Avatar はキャッシュされたアバター画像。
type Avatar struct {
	UserID    string
	Data      []byte
	Mime      string
	FetchedAt time.Time
}
