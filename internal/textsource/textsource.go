// Package textsource reads article paragraphs from local files.
package textsource

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrNoText = errors.New("textsource: no extractable text")

// Paragraphs returns the non-blank lines of a .txt, .md, .pdf or .docx file,
// trimmed, in order.
func Paragraphs(path string) ([]string, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md", "":
		text, err = readPlain(path)
	case ".pdf":
		text, err = readPDF(path)
	case ".docx":
		text, err = readDOCX(path)
	default:
		return nil, fmt.Errorf("textsource: unsupported file type %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("textsource: %s: %w", path, err)
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoText, path)
	}
	return paragraphs, nil
}

func readPlain(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func readDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()

		doc, err := io.ReadAll(rc)
		if err != nil {
			return "", err
		}
		return stripWordXML(string(doc)), nil
	}
	return "", errors.New("word/document.xml not found")
}

var xmlTag = regexp.MustCompile(`<[^>]+>`)

var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// stripWordXML keeps one line per Word paragraph or line break.
func stripWordXML(s string) string {
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	s = strings.ReplaceAll(s, "<w:br/>", "\n")
	s = strings.ReplaceAll(s, "<w:br />", "\n")
	s = xmlTag.ReplaceAllString(s, "")
	return xmlEntities.Replace(s)
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
