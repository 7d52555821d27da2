package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	raw := `<!DOCTYPE html>
<html>
<head>
  <title>An Essay on Testing</title>
  <meta name="description" content="Why tests matter.">
  <style>body { color: red; }</style>
  <script>var tracked = true;</script>
</head>
<body>
  <h1>An Essay on Testing</h1>
  <p>First paragraph of the essay.</p>
  <p>Second   paragraph with   odd spacing.</p>
  <noscript>Please enable JavaScript.</noscript>
</body>
</html>`

	pc := parsePage(raw)
	assert.Equal(t, "An Essay on Testing", pc.Title)
	assert.Equal(t, "Why tests matter.", pc.Description)
	assert.Contains(t, pc.Body, "First paragraph of the essay.")
	assert.Contains(t, pc.Body, "Second paragraph with odd spacing.")
	assert.NotContains(t, pc.Body, "color: red")
	assert.NotContains(t, pc.Body, "tracked")
	assert.NotContains(t, pc.Body, "enable JavaScript")
}

func TestParsePageOgDescription(t *testing.T) {
	raw := `<html><head><meta property="og:description" content="social description"></head><body>hi</body></html>`
	pc := parsePage(raw)
	assert.Equal(t, "social description", pc.Description)
}

func TestParsePageNotHTML(t *testing.T) {
	pc := parsePage("just   some \n plain text")
	assert.Equal(t, "just some plain text", pc.Body)
	assert.Empty(t, pc.Title)
}

func TestCollapseWhitespace(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a  b", "a b"},
		{"  a\n\tb  ", "a b"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, collapseWhitespace(tc.in))
	}
}
