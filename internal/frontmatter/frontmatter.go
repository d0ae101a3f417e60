// Package frontmatter splits Markdown documents into YAML metadata and body text.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// ErrNotMapping is returned when the frontmatter block is valid YAML but not a mapping.
var ErrNotMapping = errors.New("yaml frontmatter must be a mapping")

// Style captures the newline convention of a document.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

// Document is a parsed Markdown file.
type Document struct {
	Meta           *cfgtree.Map
	Body           string
	Raw            string
	HadFrontmatter bool
}

// Split separates YAML frontmatter (`---` delimited) from the Markdown body.
//
// If the document does not start with a delimiter line, had is false and body
// is the full input. A closing delimiter on the last line without a trailing
// newline is accepted.
func Split(content []byte) (frontmatter []byte, body []byte, had bool, style Style, err error) {
	style = detectStyle(content)

	nl := style.Newline
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, style, nil
	}

	start := len(open)
	rest := content[start:]
	if bytes.HasPrefix(rest, open) {
		return []byte{}, rest[len(open):], true, style, nil
	}
	if bytes.Equal(rest, []byte("---")) {
		return []byte{}, []byte{}, true, style, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	if idx := bytes.Index(rest, closeSeq); idx >= 0 {
		return rest[:idx+len(nl)], rest[idx+len(closeSeq):], true, style, nil
	}
	tail := []byte(nl + "---")
	if bytes.HasSuffix(rest, tail) {
		return rest[:len(rest)-len("---")], []byte{}, true, style, nil
	}
	return nil, nil, false, style, ErrMissingClosingDelimiter
}

// Parse splits content and decodes its frontmatter. Documents without
// frontmatter yield an empty Meta.
func Parse(content []byte) (*Document, error) {
	fm, body, had, _, err := Split(content)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Meta:           cfgtree.NewMap(),
		Body:           string(body),
		Raw:            string(content),
		HadFrontmatter: had,
	}
	if len(bytes.TrimSpace(fm)) == 0 {
		return doc, nil
	}

	v, err := cfgtree.Parse(fm)
	if err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	switch {
	case v.IsNull():
	case v.IsMapping():
		doc.Meta = v.Map()
	default:
		return nil, ErrNotMapping
	}
	return doc, nil
}

func detectStyle(content []byte) Style {
	newline := "\n"
	for i := 0; i+1 < len(content); i++ {
		if content[i] == '\r' && content[i+1] == '\n' {
			newline = "\r\n"
			break
		}
		if content[i] == '\n' {
			break
		}
	}

	return Style{
		Newline:            newline,
		HasTrailingNewline: len(content) > 0 && content[len(content)-1] == '\n',
	}
}
