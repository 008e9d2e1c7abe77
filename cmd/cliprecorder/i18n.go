// Package main provides localization for the cliprecorder CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Capture":       "キャプチャ",
		"Encoding":      "エンコード",
		"Upload":        "アップロード",
		"Session":       "セッション",
		"Debug":         "デバッグ",
		"Logging":       "ログ",

		// Commands
		"Record a rendered feed as uploaded video clips":                      "描画中の映像をクリップ動画として記録しアップロード",
		"Record until interrupted, encoding and uploading clips as they fill": "中断されるまで記録し、クリップが埋まるたびにエンコードとアップロードを行う",
		"Show codec, fragments and duration of an encoded clip":               "エンコード済みクリップのコーデック、フラグメント数、再生時間を表示",
		"Show version information":                                            "バージョン情報を表示",
		"cliprecorder version %s":                                             "cliprecorder バージョン %s",

		// Configuration flags
		"YAML configuration file": "YAML設定ファイル",

		// Capture flags
		"Render source (pattern, chrome)":  "描画ソース（pattern, chrome）",
		"Capture width":                    "キャプチャ幅",
		"Capture height":                   "キャプチャ高さ",
		"Capture frame rate":               "キャプチャのフレームレート",
		"Path to Chrome executable":        "Chrome実行ファイルのパス",
		"Run browser in non-headless mode": "ブラウザを非ヘッドレスモードで実行",

		// Encoding flags
		"Encoded video width":                          "エンコード後の動画の幅",
		"Encoded video height":                         "エンコード後の動画の高さ",
		"Length of each clip in seconds":               "クリップ1本の長さ（秒）",
		"Video bitrate in kbps":                        "動画のビットレート（kbps）",
		"Path to ffmpeg executable":                    "ffmpeg実行ファイルのパス",
		"Directory holding the temp folder":            "一時フォルダを置くディレクトリ",
		"Keep clip directories after upload":           "アップロード後もクリップのディレクトリを残す",
		"Encode the partial clip when recording stops": "記録停止時に途中のクリップもエンコードする",

		// Upload flags
		"API key sent with uploads":              "アップロード時に送信するAPIキー",
		"Control endpoint for video uploads":     "動画アップロード用の制御エンドポイント",
		"Control endpoint for thumbnail uploads": "サムネイルアップロード用の制御エンドポイント",

		// Session flags
		"Stop after this long (0 = until interrupted)":                       "指定時間で停止（0 = 中断されるまで）",
		"How long to wait for encodes and uploads on exit":                   "終了時にエンコードとアップロードを待つ時間",
		"Output session summary to file (Markdown, or JSON for .json paths)": "セッションサマリーをファイルに出力（Markdown形式、.json の場合はJSON形式）",

		// Debug and logging flags
		"Enable debug output":                  "デバッグ出力を有効化",
		"Directory for debug output":           "デバッグ出力のディレクトリ",
		"Log level (debug, info, warn, error)": "ログレベル（debug, info, warn, error）",
		"Suppress all log output":              "全てのログ出力を抑制",

		// Runtime messages
		"Interrupted, shutting down...": "中断されました。シャットダウン中...",
		"Session %s finished":           "セッション %s が終了しました",
		"Summary saved to %s":           "サマリーを %s に保存しました",
		"Failed to write summary: %s":   "サマリーの書き込みに失敗しました: %s",

		// Probe output
		"A video file argument is required": "動画ファイルの引数が必要です",
		"Codec: %s":                         "コーデック: %s",
		"Fragmented: %t (%d fragments)":     "フラグメント化: %t（%d フラグメント）",
		"Samples: %d":                       "サンプル数: %d",
		"Duration: %d ms":                   "再生時間: %d ms",
		"Size: %d bytes":                    "サイズ: %d バイト",

		// Summary content
		"Recording Summary":  "記録サマリー",
		"Generated":          "生成日時",
		"Settings":           "設定",
		"Results":            "実行結果",
		"Item":               "項目",
		"Value":              "値",
		"Session ID":         "セッションID",
		"Source":             "ソース",
		"Target":             "対象",
		"Recording Duration": "記録時間",
		"Capture Size":       "キャプチャサイズ",
		"Output Size":        "出力サイズ",
		"Frame Rate":         "フレームレート",
		"Clip Length":        "クリップ長",
		"Bitrate":            "ビットレート",
		"Frames Written":     "書き込みフレーム数",
		"Frames Rejected":    "書き込めなかったフレーム数",
		"Readbacks Dropped":  "破棄したリードバック数",
		"Frame Data Written": "フレームデータ書き込み量",
		"Clips Encoded":      "エンコードしたクリップ数",
		"Encoder Failures":   "エンコード失敗数",
		"Clips Uploaded":     "アップロードしたクリップ数",
		"Clips Lost":         "失われたクリップ数",
		"Thumbnails":         "サムネイル数",
		"Generated by":       "生成:",
	})
}
