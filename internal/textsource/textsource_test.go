package textsource

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParagraphs_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zh.txt")
	os.WriteFile(path, []byte("  我喜欢读书。\r\n\r\n\n今天天气很好。  \n"), 0o644)

	got, err := Paragraphs(path)
	if err != nil {
		t.Fatalf("Paragraphs: %v", err)
	}
	want := []string{"我喜欢读书。", "今天天气很好。"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestParagraphs_DOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "en.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("word/document.xml")
	w.Write([]byte(`<w:document><w:body>` +
		`<w:p><w:r><w:t>I like reading.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Tom &amp; Jerry</w:t><w:br/><w:t>And you?</w:t></w:r></w:p>` +
		`</w:body></w:document>`))
	zw.Close()
	f.Close()

	got, err := Paragraphs(path)
	if err != nil {
		t.Fatalf("Paragraphs: %v", err)
	}
	want := []string{"I like reading.", "Tom & Jerry", "And you?"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestParagraphs_Errors(t *testing.T) {
	dir := t.TempDir()

	blank := filepath.Join(dir, "blank.txt")
	os.WriteFile(blank, []byte("\n   \n"), 0o644)
	if _, err := Paragraphs(blank); !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}

	if _, err := Paragraphs(filepath.Join(dir, "audio.mp3")); err == nil {
		t.Fatalf("expected unsupported type error")
	}

	if _, err := Paragraphs(filepath.Join(dir, "missing.txt")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
