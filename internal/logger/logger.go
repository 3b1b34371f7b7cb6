// Package logger はJSON構造化ログのロガーを組み立てる。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const redacted = "[REDACTED]"

// 値を出力してはいけない属性キー。小文字で比較する。
var secretKeys = map[string]struct{}{
	"access_token":   {},
	"refresh_token":  {},
	"id_token":       {},
	"code":           {},
	"client_secret":  {},
	"session_secret": {},
	"password":       {},
	"cookie":         {},
	"authorization":  {},
}

// New は指定レベル以上をwに書き出すJSONロガーを返す。wがnilならos.Stdout。
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactSecrets,
	}))
}

// redactSecrets はトークンなどの値をマスクする。グループ内の属性も対象。
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

// Setup は環境変数 LOG_LEVEL のレベルでNewを呼ぶ。
func Setup(w io.Writer) *slog.Logger {
	return New(w, ParseLevel(os.Getenv("LOG_LEVEL")))
}

// ParseLevel はレベル名をslog.Levelに変換する。不明な値はinfo。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupDefault はSetupの結果をslogのデフォルトロガーにする。
func SetupDefault(w io.Writer) {
	slog.SetDefault(Setup(w))
}
