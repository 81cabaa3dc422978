package assets

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// 各格式的魔数头部，足够 http.DetectContentType 识别
var (
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	pngHeader  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	webpHeader = append([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), make([]byte, 8)...)
	gifHeader  = []byte("GIF89a")
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewFSStore(t.TempDir(), "/assets/products")
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	return store
}

func TestSave_AcceptedFormats(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantExt string
	}{
		{"jpeg", jpegHeader, ".jpg"},
		{"png", pngHeader, ".png"},
		{"webp", webpHeader, ".webp"},
	}
	store := newTestStore(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := store.Save("upload.bin", bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if !strings.HasPrefix(path, "/assets/products/") {
				t.Errorf("path = %q, want /assets/products/ prefix", path)
			}
			if !strings.HasSuffix(path, tt.wantExt) {
				t.Errorf("path = %q, want %s suffix", path, tt.wantExt)
			}
		})
	}
}

func TestSave_RejectsUnsupportedType(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save("anim.gif", bytes.NewReader(gifHeader))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Save(gif) error = %v, want ErrUnsupportedType", err)
	}
}

func TestSave_RejectsOversizedFile(t *testing.T) {
	store := newTestStore(t)

	big := make([]byte, MaxImageSize+1)
	copy(big, pngHeader)

	_, err := store.Save("big.png", bytes.NewReader(big))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Save(oversized) error = %v, want ErrFileTooLarge", err)
	}
}

func TestSave_ExactLimitAllowed(t *testing.T) {
	store := newTestStore(t)

	data := make([]byte, MaxImageSize)
	copy(data, pngHeader)

	if _, err := store.Save("max.png", bytes.NewReader(data)); err != nil {
		t.Errorf("Save(exact limit) error = %v, want nil", err)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "/assets/products")
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	path, err := store.Save("a.png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.Base(path))); !errors.Is(err, os.ErrNotExist) {
		t.Error("file should be gone after Remove")
	}
	// 文件不存在时再删一次也是成功
	if err := store.Remove(path); err != nil {
		t.Errorf("second Remove error = %v, want nil", err)
	}
}

func TestValidateImage(t *testing.T) {
	if err := ValidateImage(pngHeader); err != nil {
		t.Errorf("ValidateImage(png) = %v, want nil", err)
	}
	if err := ValidateImage(gifHeader); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("ValidateImage(gif) = %v, want ErrUnsupportedType", err)
	}
}
