package filesink

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/user/cliprecorder/pkg/mocks"
)

// testBaseDir is a platform-independent base directory for tests
var testBaseDir = filepath.Join("debug")

func TestSink_Enabled(t *testing.T) {
	sink := New(testBaseDir, mocks.NewFileSystem())

	if !sink.Enabled() {
		t.Error("expected Enabled to return true")
	}
}

func TestSink_SaveSessionJSON(t *testing.T) {
	fs := mocks.NewFileSystem()
	sink := New(testBaseDir, fs)

	data := []byte(`{"session_id": "V1abc"}`)
	if err := sink.SaveSessionJSON(data); err != nil {
		t.Fatalf("SaveSessionJSON failed: %v", err)
	}

	expectedPath := filepath.Join(testBaseDir, "session.json")
	saved, ok := fs.GetFile(expectedPath)
	if !ok {
		t.Fatalf("expected file to be saved at %s", expectedPath)
	}
	if string(saved) != string(data) {
		t.Errorf("expected %q, got %q", data, saved)
	}
}

func TestSink_SaveThumbnail(t *testing.T) {
	fs := mocks.NewFileSystem()
	sink := New(testBaseDir, fs)

	tests := []struct {
		timeMs int64
		name   string
	}{
		{0, "00000000.png"},
		{1500, "00001500.png"},
		{123456789, "123456789.png"},
	}

	for _, tt := range tests {
		if err := sink.SaveThumbnail(tt.timeMs, []byte("png")); err != nil {
			t.Fatalf("SaveThumbnail(%d) failed: %v", tt.timeMs, err)
		}
		path := filepath.Join(testBaseDir, "thumbnails", tt.name)
		if _, ok := fs.GetFile(path); !ok {
			t.Errorf("expected thumbnail at %s", path)
		}
	}

	if !fs.HasDir(filepath.Join(testBaseDir, "thumbnails")) {
		t.Error("expected thumbnails directory to be created")
	}
}

func TestSink_SaveThumbnail_MkdirError(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.MkdirAllFunc = func(path string) error { return errors.New("read-only") }
	sink := New(testBaseDir, fs)

	if err := sink.SaveThumbnail(0, []byte("png")); err == nil {
		t.Error("expected an error when the directory cannot be created")
	}
}
