package sanitize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextKeepsPlainInput(t *testing.T) {
	for in, want := range map[string]string{
		"":                        "",
		"  Fractions & Decimals ": "Fractions & Decimals",
		"Tom's \"notes\"":         "Tom's \"notes\"",
		"Fractions < 1":           "Fractions < 1",
		"x > 0 and y < 2":         "x > 0 and y < 2",
		"Tom &amp; Jerry":         "Tom &amp; Jerry",
	} {
		got, err := Text(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestTextRejectsMarkupInsteadOfDroppingIt(t *testing.T) {
	for _, in := range []string{
		"a<b",
		"x<y comparison",
		"Inequalities: a<b and c>d",
		"<p>Hello</p><script>alert('x')</script>",
		`<a href="javascript:alert(1)">Click</a>`,
		"notes <!-- hidden -->",
	} {
		got, err := Text(in)
		require.ErrorIs(t, err, ErrMarkup, in)
		require.Equal(t, in, got, "input must not be rewritten")
	}
}

func TestFieldsReportsFirstOffender(t *testing.T) {
	var f Fields
	title := f.Text("title", " Linear equations ")
	desc := f.Text("description", "solve a<b")
	f.Text("name", "<b>bold</b>")

	require.Equal(t, "Linear equations", title)
	require.Equal(t, "solve a<b", desc)
	require.ErrorIs(t, f.Err(), ErrMarkup)
	require.EqualError(t, f.Err(), "description must be plain text")

	var clean Fields
	clean.Text("title", "Fractions")
	require.NoError(t, clean.Err())
}
