package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Session
		"Recording session %s at %dx%d, %d fps":                         "セッション %s を記録中 (%dx%d, %d fps)",
		"Recording session %s stopped after %d ms":                      "セッション %s の記録を %d ms で停止しました",
		"Removing stale clips in %s":                                    "%s の古いクリップを削除中",
		"Previous clips are still in flight, keeping %s":                "前回のクリップが処理中のため %s を残します",
		"Could not save session manifest: %v":                           "セッション情報を保存できませんでした: %v",
		"Could not open the next clip, stopping: %v":                    "次のクリップを開けないため停止します: %v",
		"Could not encode clip %d, leaving %s: %v":                      "クリップ %d をエンコードできませんでした。%s を残します: %v",
		"Could not encode thumbnail at %d ms: %v":                       "%d ms のサムネイルをエンコードできませんでした: %v",
		"Could not save thumbnail at %d ms: %v":                         "%d ms のサムネイルを保存できませんでした: %v",
		"Gave up waiting with %d clips encoding and %d uploads pending": "エンコード中 %d クリップ、アップロード待ち %d 件を残して待機を打ち切りました",
		"Interrupted, shutting down...":                                 "中断されました。シャットダウン中...",
		"Session %s finished":                                           "セッション %s が終了しました",
		"Summary saved to %s":                                           "サマリーを %s に保存しました",
		"Failed to write summary: %s":                                   "サマリーの書き込みに失敗しました: %s",

		// Capture
		"Allocated %dx%d frame buffers (%d bytes per frame)": "%dx%d のフレームバッファを確保しました (1フレーム %d バイト)",
		"Capturing %s":                                                       "%s をキャプチャ中",
		"Readback failed, dropping frame: %v":                                "リードバックに失敗したためフレームを破棄します: %v",
		"Readback returned no data, dropping frame":                          "リードバックにデータがないためフレームを破棄します",
		"Readback returned %dx%d (%d bytes), expected %dx%d, dropping frame": "リードバックが %dx%d (%d バイト) で、期待値 %dx%d と異なるためフレームを破棄します",
		"Could not encode frame %d: %v":                                      "フレーム %d をエンコードできませんでした: %v",

		// Browser and pattern sources
		"Launching browser in headless mode": "ヘッドレスモードでブラウザを起動中",
		"Launching browser in visible mode":  "表示モードでブラウザを起動中",
		"Navigating to %s":                   "%s へ移動中",
		"Starting screencast":                "スクリーンキャストを開始",
		"Browser closed":                     "ブラウザを閉じました",
		"Pattern caption set to %s":          "パターンのキャプションを %s に設定しました",

		// Segmenter and writer
		"Opened clip %d at %s":                       "クリップ %d を %s に作成しました",
		"Clip %d full with %d frames [%d, %d)":       "クリップ %d が %d フレームで満杯になりました [%d, %d)",
		"Finalizing clip %d with %d frames [%d, %d)": "クリップ %d を %d フレームで確定します [%d, %d)",
		"Abandoning clip %d with %d frames":          "%d フレームのクリップ %d を破棄します",
		"Write queue full, dropping %s":              "書き込みキューが満杯のため %s を破棄します",
		"Failed to write %s: %v":                     "%s の書き込みに失敗しました: %v",

		// Encoder
		"Encoding clip %d from %s":                              "%s からクリップ %d をエンコード中",
		"Started ffmpeg (pid %d) for clip %d":                   "ffmpeg (pid %d) をクリップ %d 用に起動しました",
		"[clip %d] %s":                                          "[クリップ %d] %s",
		"Encoder for clip %d exited with code %d: %v":           "クリップ %d のエンコーダーが終了コード %d で終了しました: %v",
		"Deleted %d frames of clip %d":                          "%d フレームを削除しました (クリップ %d)",
		"Could not list frames of clip %d: %v":                  "クリップ %d のフレーム一覧を取得できませんでした: %v",
		"Could not delete %s: %v":                               "%s を削除できませんでした: %v",
		"Could not inspect %s: %v":                              "%s を検査できませんでした: %v",
		"Clip %d: %s, %d fragments, %d samples, %dms, %d bytes": "クリップ %d: %s, %d フラグメント, %d サンプル, %dms, %d バイト",

		// Upload
		"Uploading clip %d [%d, %d)":           "クリップ %d をアップロード中 [%d, %d)",
		"Uploaded %s (%d bytes in %s)":         "%s をアップロードしました (%d バイト, %s)",
		"Upload of %s failed: %v":              "%s のアップロードに失敗しました: %v",
		"Clip %d was not uploaded, leaving %s": "クリップ %d はアップロードされなかったため %s を残します",
		"Could not remove %s: %v":              "%s を削除できませんでした: %v",
	})
}
