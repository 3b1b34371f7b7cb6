package editor

import "context"

// Command はキー操作に割り当てられた編集コマンド。
type Command string

const (
	CommandNone            Command = ""
	CommandSave            Command = "save"
	CommandCancel          Command = "cancel"
	CommandApplySuggestion Command = "suggest"
)

// Key はキー入力を表す。NameはKeyboardEvent.keyの値。
type Key struct {
	Name string
	Ctrl bool
	Meta bool
}

// Binding はキーとコマンドの対応。
type Binding struct {
	Key         Key
	Command     Command
	Description string
}

// KeyBindings は編集画面のキー操作。
var KeyBindings = []Binding{
	{Key: Key{Name: "Enter", Ctrl: true}, Command: CommandSave, Description: "Ctrl+Enter で保存"},
	{Key: Key{Name: "Enter", Meta: true}, Command: CommandSave, Description: "⌘+Enter で保存"},
	{Key: Key{Name: "Escape"}, Command: CommandCancel, Description: "Esc で取り消し"},
	{Key: Key{Name: "Tab"}, Command: CommandApplySuggestion, Description: "Tab で提案を挿入"},
}

// Lookup はキーに対応するコマンドを返す。
func Lookup(k Key) Command {
	for _, b := range KeyBindings {
		if b.Key == k {
			return b.Command
		}
	}
	return CommandNone
}

// HandleKey はキー入力に対応するコマンドを実行し、実行したコマンドを返す。
// 保存と取り消しは編集モードのみ、提案の挿入は本文が空の場合のみ有効。
func (s *Session) HandleKey(ctx context.Context, k Key) (Command, error) {
	cmd := Lookup(k)
	switch cmd {
	case CommandSave:
		if s.mode != ModeEdit {
			return CommandNone, nil
		}
		return cmd, s.Save(ctx)
	case CommandCancel:
		if s.mode != ModeEdit {
			return CommandNone, nil
		}
		s.Cancel()
		return cmd, nil
	case CommandApplySuggestion:
		if !s.ApplySuggestion() {
			return CommandNone, nil
		}
		return cmd, nil
	}
	return CommandNone, nil
}
