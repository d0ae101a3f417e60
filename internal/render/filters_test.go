package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDatetimeFormat(t *testing.T) {
	out, err := datetimeFormat("%d %B %Y", "2024-03-09")
	require.NoError(t, err)
	require.Equal(t, "09 March 2024", out)

	out, err = datetimeFormat("%Y-%m-%d", "%s", 1709978400)
	require.NoError(t, err)
	require.Equal(t, "2024-03-09", out)

	out, err = datetimeFormat("%Y", "%d/%m/%Y", "09/03/2024")
	require.NoError(t, err)
	require.Equal(t, "2024", out)

	out, err = datetimeFormat("%Y", "not a date")
	require.NoError(t, err)
	require.Equal(t, "not a date", out)

	_, err = datetimeFormat("%Y")
	require.Error(t, err)
}

func TestExtractRefs(t *testing.T) {
	refs := extractRefs("abc; hello @test;me @second one; and finally @three and @test again")
	require.Equal(t, []string{"test", "second", "three"}, refs)
	require.Empty(t, extractRefs(nil))
}

func TestMarkdownAndStripTags(t *testing.T) {
	html, err := markdownToHTML("# Title\n\nSome *em* text.")
	require.NoError(t, err)
	require.Contains(t, html, "<h1>Title</h1>")
	require.Contains(t, html, "<em>em</em>")

	require.Equal(t, "Title Some em text.", stripTags(html))
	require.Equal(t, "a & b", stripTags("<p>a &amp;\n  b</p>"))
}

func TestTitleCase(t *testing.T) {
	require.Equal(t, "Hello World", titleCase("hello world"))
}

func TestDefaultFiltersIncludeSprig(t *testing.T) {
	fs := DefaultFilters()
	for _, name := range []string{"upper", "default", "datetimeformat", "extract_refs", "markdown", "striptags", "title"} {
		require.True(t, fs.Has(name), name)
	}
}
