// Package document pulls plain text out of uploaded files for summarization.
package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/smartcity/assistant/internal/domain"
)

const (
	docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	pdfMIME  = "application/pdf"

	// MaxTextBytes caps the text returned for a single document. Extraction
	// stops once it is reached.
	MaxTextBytes = 1 << 20

	maxPDFPages = 500
)

// maxXMLBytes caps the uncompressed size of word/document.xml.
var maxXMLBytes int64 = 64 << 20

// ErrUnsupported is returned for file types with no extractor
var ErrUnsupported = fmt.Errorf("unsupported document type: %w", domain.ErrInvalidInput)

// Extract returns the text of an uploaded document. The type is taken from
// contentType when it is specific, otherwise from the file extension.
func Extract(filename, contentType string, data []byte) (string, error) {
	switch kind(filename, contentType) {
	case "text":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("document: %s is not valid UTF-8: %w", filename, domain.ErrInvalidInput)
		}
		return string(data), nil
	case "docx":
		text, err := extractDOCX(data)
		if err != nil {
			return "", fmt.Errorf("document: %s: %w", filename, err)
		}
		return text, nil
	case "pdf":
		text, err := extractPDF(data)
		if err != nil {
			return "", fmt.Errorf("document: %s: %w", filename, err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("document: %s (%s): %w", filename, contentType, ErrUnsupported)
	}
}

func kind(filename, contentType string) string {
	switch {
	case strings.Contains(contentType, "text/plain"), strings.Contains(contentType, "text/markdown"):
		return "text"
	case strings.Contains(contentType, docxMIME):
		return "docx"
	case strings.Contains(contentType, pdfMIME):
		return "pdf"
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return "text"
	case ".docx":
		return "docx"
	case ".pdf":
		return "pdf"
	}
	return ""
}

// extractDOCX reads word/document.xml and joins its paragraphs with newlines
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w: %w", domain.ErrInvalidInput, err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		if f.UncompressedSize64 > uint64(maxXMLBytes) {
			return "", fmt.Errorf("document.xml is %d bytes, limit %d: %w", f.UncompressedSize64, maxXMLBytes, domain.ErrInvalidInput)
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return paragraphs(io.LimitReader(rc, maxXMLBytes))
	}
	return "", fmt.Errorf("word/document.xml not found: %w", domain.ErrInvalidInput)
}

func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		out     textBuffer
		current strings.Builder
		inText  bool
	)
	for !out.full() {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w: %w", domain.ErrInvalidInput, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.paragraph(current.String())
				current.Reset()
			}
		case xml.CharData:
			if !inText {
				continue
			}
			current.Write(t)
			if current.Len() >= MaxTextBytes {
				out.paragraph(current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		out.paragraph(current.String())
	}
	return out.String(), nil
}

// extractPDF concatenates the plain text of each page
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("read pdf: %v: %w", r, domain.ErrInvalidInput)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w: %w", domain.ErrInvalidInput, err)
	}

	var out textBuffer
	fonts := make(map[string]*pdf.Font)
	pages := min(r.NumPage(), maxPDFPages)
	for i := 1; i <= pages && !out.full(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		content, err := p.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w: %w", i, domain.ErrInvalidInput, err)
		}
		out.write(content)
	}
	return out.String(), nil
}

// textBuffer collects extracted text up to MaxTextBytes, cutting on a rune
// boundary.
type textBuffer struct {
	b     strings.Builder
	paras int
}

func (t *textBuffer) full() bool { return t.b.Len() >= MaxTextBytes }

func (t *textBuffer) paragraph(s string) {
	if t.paras > 0 {
		t.write("\n")
	}
	t.paras++
	t.write(s)
}

func (t *textBuffer) write(s string) {
	room := MaxTextBytes - t.b.Len()
	if room <= 0 {
		return
	}
	if len(s) > room {
		for room > 0 && !utf8.RuneStart(s[room]) {
			room--
		}
		s = s[:room]
	}
	t.b.WriteString(s)
}

func (t *textBuffer) String() string { return t.b.String() }
