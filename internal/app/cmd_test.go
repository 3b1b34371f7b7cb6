package app

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"引数なしはserve", nil, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"worker", []string{"worker"}, CommandWorker},
		{"migrate", []string{"migrate"}, CommandMigrate},
		{"seed-teams", []string{"seed-teams"}, CommandSeedTeams},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"help", []string{"help"}, CommandHelp},
		{"--helpはhelp", []string{"--help"}, CommandHelp},
		{"後続の引数は無視する", []string{"worker", "--flag", "value"}, CommandWorker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) error = %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_Unknown(t *testing.T) {
	_, err := ParseCommand([]string{"seed"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `"seed"`) {
		t.Errorf("error = %v, should name the command", err)
	}
}

func TestWriteUsage_ListsEveryCommand(t *testing.T) {
	var buf bytes.Buffer
	WriteUsage(&buf)

	for _, c := range commands {
		if !strings.Contains(buf.String(), string(c.cmd)) {
			t.Errorf("usage does not mention %q:\n%s", c.cmd, buf.String())
		}
	}
}
