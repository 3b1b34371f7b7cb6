package model

// ユーザーに表示する固定の通知メッセージ。
const (
	NoticeFutureMonth      = "今月より先の月は表示できません。"
	NoticeFutureDay        = "未来の日付は選択できません。"
	NoticeSnippetLoadError = "スニペットの読み込み中にエラーが発生しました。"
	NoticeAuthError        = "利用権限の確認中にエラーが発生しました。"
	NoticeNotAuthorized    = "このアカウントには利用権限がありません。"
	NoticeNoSnippetToday   = "まだ今日のスニペットがありません。"
	NoticeNoSnippetForDate = "この日付のスニペットはありません。"
	NoticeDeleteConfirm    = "スニペットを削除しますか？この操作は取り消せません。"
	NoticeSaveError        = "スニペットの保存に失敗しました。"
	NoticeDeleteError      = "スニペットの削除に失敗しました。"
)

// 編集画面に表示する案内文。
const (
	SnippetPlaceholder  = "今日のスニペットを入力してください...（マークダウン形式に対応しています）"
	MarkdownSupported   = "マークダウン記法を使用できます"
	MarkdownSyntaxGuide = "# 見出し (# ~ ######)\n" +
		"* または - 箇条書き\n" +
		"1. 2. 3. 番号付きリスト\n" +
		"[リンクテキスト](URL)\n" +
		"![画像の説明](画像URL)\n" +
		"`コード`\n" +
		"**太字** または *斜体*"
)
