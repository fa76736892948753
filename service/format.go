package services

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
)

// Document formats the router can produce. Plain text is the guaranteed
// fallback so no upload is ever rejected outright.
const (
	formatDocx = "docx"
	formatPDF  = "pdf"
	formatText = "text"
)

// docxBodyEntry is the canonical document-body part inside a docx container.
const docxBodyEntry = "word/document.xml"

var (
	paragraphBreakRe = regexp.MustCompile(`</w:p>|<w:br[^>]*/?>`)
	markupRe         = regexp.MustCompile(`<[^>]+>`)
	spaceRunRe       = regexp.MustCompile(`[ \t]+`)
	newlinePadRe     = regexp.MustCompile(`[ \t]*\n[ \t]*`)
)

var xmlEntityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&#39;", "'",
)

// detectDocumentFormat classifies a document. The stored mime type wins when
// it carries an explicit signature; the filename extension covers uploads
// with unreliable mime detection; everything else is treated as plain text.
func detectDocumentFormat(mimeType, filename string) string {
	mime := strings.ToLower(mimeType)
	switch {
	case strings.Contains(mime, "wordprocessingml"):
		return formatDocx
	case strings.Contains(mime, "pdf"):
		return formatPDF
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		return formatDocx
	case ".pdf":
		return formatPDF
	}

	return formatText
}

// extractDocxText unpacks a docx container and converts its body part to
// normalized plain text. A container without a body part yields an empty
// string, not an error: downstream extraction still runs and simply returns
// a low-confidence result.
func extractDocxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != docxBodyEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", docxBodyEntry, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", docxBodyEntry, err)
		}
		return normalizeDocumentXML(string(raw)), nil
	}

	return "", nil
}

// normalizeDocumentXML flattens WordprocessingML into plain text. Paragraph
// boundaries must become newlines before the remaining markup is stripped,
// otherwise distinct contract provisions run together into a single line.
func normalizeDocumentXML(body string) string {
	text := paragraphBreakRe.ReplaceAllString(body, "\n")
	text = markupRe.ReplaceAllString(text, "")
	text = xmlEntityReplacer.Replace(text)
	text = spaceRunRe.ReplaceAllString(text, " ")
	text = newlinePadRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
