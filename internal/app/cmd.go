package app

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandSeedTeams   Command = "seed-teams"
	CommandHealthcheck Command = "healthcheck"
	CommandHelp        Command = "help"
)

// commands はサブコマンドと説明の一覧。Usageの表示順でもある。
var commands = []struct {
	cmd     Command
	summary string
}{
	{CommandServe, "HTTPサーバーを起動する（既定）"},
	{CommandWorker, "期限切れセッションの削除とアバター更新を定期実行する"},
	{CommandMigrate, "データベースマイグレーションを適用する"},
	{CommandSeedTeams, "TEAMS_FILEのチーム定義をデータベースに投入する"},
	{CommandHealthcheck, "稼働中のサーバーの /health を確認する（コンテナ用）"},
	{CommandHelp, "この一覧を表示する"},
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が無ければCommandServe、未知のサブコマンドはエラーを返す。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch args[0] {
	case "-h", "--help":
		return CommandHelp, nil
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q (run \"springboard help\")", args[0])
}

// WriteUsage はサブコマンドの一覧を書き出す。
func WriteUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: springboard [command]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.cmd, c.summary)
	}
	tw.Flush()
}
