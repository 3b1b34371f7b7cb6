// Command springboard はDaily Springboardのサーバー、ワーカー、管理コマンドを起動する。
//
// 使い方:
//
//	springboard [serve|worker|migrate|seed-teams|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/springboard/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
