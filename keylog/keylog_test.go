package keylog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetWriter(t *testing.T) {
	defer SetWriter(nil)

	var buf bytes.Buffer
	SetWriter(&buf)
	w := Writer()
	if w == nil {
		t.Fatal("expected a writer after SetWriter")
	}
	w.Write([]byte("CLIENT_RANDOM test"))
	if !strings.Contains(buf.String(), "CLIENT_RANDOM") {
		t.Error("expected the sink to receive writes")
	}

	SetWriter(nil)
	if Writer() != nil {
		t.Error("expected nil writer after disabling")
	}
}

func TestSetFile(t *testing.T) {
	defer SetWriter(nil)

	path := filepath.Join(t.TempDir(), "keys.log")
	if err := SetFile(path); err != nil {
		t.Fatalf("SetFile: %v", err)
	}
	Writer().Write([]byte("CLIENT_RANDOM abc def\n"))
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "CLIENT_RANDOM abc def") {
		t.Errorf("expected logged line in %q", string(data))
	}

	if Writer() != nil {
		t.Error("expected nil writer after Close")
	}
}

func TestSetFileEmptyDisables(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	if err := SetFile(""); err != nil {
		t.Fatalf("SetFile: %v", err)
	}
	if Writer() != nil {
		t.Error("expected nil writer for an empty path")
	}
}
