package model

import "time"

// Snippet はユーザーが1日ごとに書く短いマークダウンのメモ。
// (UserID, Date) ごとに高々1件しか存在しない。
type Snippet struct {
	ID         string
	UserID     string
	UserEmail  string
	TeamName   string
	Date       Day
	Body       string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// SnippetID はスニペットの複合キー "{userId}_{date}" を返す。
func SnippetID(userID string, day Day) string {
	return userID + "_" + string(day)
}

// Team はメンバーのメールアドレス一覧を持つチーム。
// アプリケーションからは読み取り専用の参照データ。
type Team struct {
	Name   string   `yaml:"name"`
	Emails []string `yaml:"emails"`
}
