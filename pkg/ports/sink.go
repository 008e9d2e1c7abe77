package ports

// DebugSink abstracts debug output for a recording session.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveSessionJSON saves the session manifest as JSON.
	SaveSessionJSON(data []byte) error

	// SaveThumbnail saves an encoded thumbnail taken at timeMs.
	SaveThumbnail(timeMs int64, data []byte) error
}
