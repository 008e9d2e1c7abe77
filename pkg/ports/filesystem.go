package ports

import "io"

// FileSystem abstracts file system operations.
type FileSystem interface {
	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte) error

	// Open opens a file for streaming and returns its size.
	Open(path string) (io.ReadCloser, int64, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)

	// Glob returns the names of all files matching pattern.
	Glob(pattern string) ([]string, error)

	// Remove deletes a file or empty directory.
	Remove(path string) error

	// RemoveAll deletes path and everything below it.
	RemoveAll(path string) error
}
