// Package schemadoc loads the database reference document that is handed to
// the model as schema context, and caches it for the life of the process.
package schemadoc

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxTextSize caps plain-text documents. The context travels in every
// prompt, so anything larger is a mistake.
const maxTextSize = 512 << 10

// LoadFile reads a schema context document. .docx files are reduced to their
// paragraph text, one paragraph per line, with headings marked up as
// markdown. Anything else is read as UTF-8 text.
func LoadFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".docx") {
		return extractDocx(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("schemadoc: open: %w", err)
	}
	defer f.Close()

	b, err := io.ReadAll(io.LimitReader(f, maxTextSize+1))
	if err != nil {
		return "", fmt.Errorf("schemadoc: read: %w", err)
	}
	if len(b) > maxTextSize {
		return "", fmt.Errorf("schemadoc: %s exceeds %d bytes", path, maxTextSize)
	}

	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("schemadoc: %s is empty", path)
	}
	return text, nil
}

// extractDocx reads word/document.xml from the archive and returns the
// non-empty paragraphs.
func extractDocx(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("schemadoc: open docx: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("schemadoc: word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("schemadoc: open document.xml: %w", err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return "", err
	}
	if len(paragraphs) == 0 {
		return "", fmt.Errorf("schemadoc: %s has no text", path)
	}
	return strings.Join(paragraphs, "\n"), nil
}

func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		out    []string
		cur    strings.Builder
		inPara bool
		inText bool
		style  string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("schemadoc: decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				cur.Reset()
				style = ""
			case "pStyle":
				for _, a := range t.Attr {
					if a.Name.Local == "val" {
						style = a.Value
					}
				}
			case "t":
				inText = inPara
			case "tab":
				if inPara {
					cur.WriteByte('\t')
				}
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				inPara = false
				text := strings.TrimSpace(cur.String())
				if text == "" {
					continue
				}
				if level := headingLevel(style); level > 0 {
					text = strings.Repeat("#", level) + " " + text
				}
				out = append(out, text)
			}
		}
	}
	return out, nil
}

// headingLevel maps a paragraph style such as Heading2 or Title to a
// heading depth, or 0 for body text.
func headingLevel(style string) int {
	lower := strings.ToLower(style)
	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}
	if rest, ok := strings.CutPrefix(lower, "heading"); ok && len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
		return int(rest[0] - '0')
	}
	return 0
}
