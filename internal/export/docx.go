// Package export writes finished contracts as Word documents.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"contract-assistant/internal/model"
	"contract-assistant/pkg/logger"

	"github.com/fumiama/go-docx"
)

const DocxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var ErrExport = errors.New("export failed")

// Writer stores the current draft at one fixed path. Each write replaces the
// previous file.
type Writer struct {
	dir          string
	fileName     string
	downloadName string
	mu           sync.Mutex
}

func NewWriter(dir, fileName, downloadName string) *Writer {
	if downloadName == "" {
		downloadName = fileName
	}
	return &Writer{
		dir:          dir,
		fileName:     fileName,
		downloadName: downloadName,
	}
}

func (w *Writer) Path() string {
	return filepath.Join(w.dir, w.fileName)
}

// Write renders text as a single paragraph and replaces the file atomically.
// The returned document carries the written bytes.
func (w *Writer) Write(text string) (*model.Document, error) {
	data, err := Render(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExport, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExport, err)
	}

	path := w.Path()
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExport, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("%w: %v", ErrExport, err)
	}

	logger.Infof("Contract exported to %s (%d bytes)", path, len(data))
	return &model.Document{
		Path:     path,
		FileName: w.downloadName,
		MimeType: DocxMimeType,
		Data:     data,
	}, nil
}

// Render builds a .docx with text as its only paragraph. Newlines become line
// breaks and tabs become tab stops.
func Render(text string) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()

	run := doc.AddParagraph().AddText(strings.ReplaceAll(text, "\r\n", "\n"))
	for _, child := range run.Children {
		if t, ok := child.(*docx.Text); ok {
			t.XMLSpace = "preserve"
		}
	}
	doc.WithA4Page()

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
