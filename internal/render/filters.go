package render

import (
	"bytes"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/ncruces/go-strftime"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultDateFormat is the strftime format datetimeformat reads and writes
// when none is given.
const DefaultDateFormat = "%Y-%m-%d"

var refPattern = regexp.MustCompile(`@([a-zA-Z0-9_]+)`)

// FilterSet is the set of functions available to templates. Each Renderer
// owns its own set; nothing is registered globally.
type FilterSet struct {
	funcs template.FuncMap
}

// NewFilterSet returns an empty set.
func NewFilterSet() *FilterSet {
	return &FilterSet{funcs: template.FuncMap{}}
}

// DefaultFilters returns the sprig function set plus the document filters.
func DefaultFilters() *FilterSet {
	fs := &FilterSet{funcs: sprig.TxtFuncMap()}
	fs.funcs["datetimeformat"] = datetimeFormat
	fs.funcs["extract_refs"] = extractRefs
	fs.funcs["markdown"] = markdownToHTML
	fs.funcs["striptags"] = stripTags
	fs.funcs["title"] = titleCase
	return fs
}

// With returns a copy of the set with fn registered under name.
func (f *FilterSet) With(name string, fn any) *FilterSet {
	out := &FilterSet{funcs: f.FuncMap()}
	out.funcs[name] = fn
	return out
}

// Has reports whether name is registered.
func (f *FilterSet) Has(name string) bool {
	_, ok := f.funcs[name]
	return ok
}

// FuncMap returns a copy of the registered functions.
func (f *FilterSet) FuncMap() template.FuncMap {
	out := make(template.FuncMap, len(f.funcs))
	maps.Copy(out, f.funcs)
	return out
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

// datetimeFormat reformats a date. The piped value comes last, so
// `{{ .date | datetimeformat "%B %Y" }}` reads .date as %Y-%m-%d and
// `{{ .stamp | datetimeformat "%Y" "%s" }}` reads epoch seconds.
// Values that do not parse are returned unchanged.
func datetimeFormat(to string, args ...any) (string, error) {
	if len(args) == 0 || len(args) > 2 {
		return "", fmt.Errorf("datetimeformat: want 2 or 3 arguments, got %d", len(args)+1)
	}
	value := text(args[len(args)-1])
	from := DefaultDateFormat
	if len(args) == 2 {
		from = text(args[0])
	}

	var t time.Time
	if from == "%s" {
		secs, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return value, nil
		}
		t = time.Unix(secs, 0).UTC()
	} else {
		layout, err := strftime.Layout(from)
		if err != nil {
			return "", fmt.Errorf("datetimeformat: %w", err)
		}
		t, err = time.Parse(layout, value)
		if err != nil {
			return value, nil
		}
	}
	return strftime.Format(to, t), nil
}

// extractRefs lists the citation keys (@key) in v, without the @, each once,
// in order of first appearance.
func extractRefs(v any) []string {
	seen := map[string]bool{}
	refs := []string{}
	for _, m := range refPattern.FindAllStringSubmatch(text(v), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	return refs
}

func markdownToHTML(v any) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(text(v)), &buf); err != nil {
		return "", fmt.Errorf("markdown: %w", err)
	}
	return buf.String(), nil
}

// stripTags drops markup and collapses whitespace runs to single spaces.
func stripTags(v any) string {
	z := html.NewTokenizer(strings.NewReader(text(v)))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func titleCase(v any) string {
	return cases.Title(language.Und).String(text(v))
}
