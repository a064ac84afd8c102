package similarity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShingles(t *testing.T) {
	got := Shingles("abcdef", 4)
	assert.Len(t, got, 3)
	assert.Contains(t, got, "abcd")
	assert.Contains(t, got, "bcde")
	assert.Contains(t, got, "cdef")
}

func TestShinglesNormalizes(t *testing.T) {
	a := Shingles("Hello   World", 5)
	b := Shingles("hello world", 5)
	assert.Equal(t, b, a)
}

func TestShinglesEmptyAndShort(t *testing.T) {
	assert.Empty(t, Shingles("", 8))
	assert.Empty(t, Shingles("   ", 8))
	assert.Empty(t, Shingles("abc", 8))
}

func TestCSSTokensDeclarations(t *testing.T) {
	tokens := CSSTokens(".btn { color: #FF0000; display: flex; }")

	assert.Contains(t, tokens, "decl:color=#ff0000")
	assert.Contains(t, tokens, "decl:display=flex")
	assert.Contains(t, tokens, "color:#ff0000")
}

func TestCSSTokensWeighting(t *testing.T) {
	css := ".hero { background: linear-gradient(90deg, red, blue); }"
	tokens := CSSTokens(css)

	gradients := 0
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "gradient:") {
			gradients++
		}
	}
	assert.Equal(t, 3, gradients, "gradient tokens are emitted three times")
}

func TestCSSTokensKeyframes(t *testing.T) {
	tokens := CSSTokens("@keyframes fadeIn { from { opacity: 0; } }")

	keyframes := 0
	for _, tok := range tokens {
		if tok == "keyframes:fadein" {
			keyframes++
		}
	}
	assert.Equal(t, 2, keyframes)
}

func TestCSSTokensEmpty(t *testing.T) {
	assert.Nil(t, CSSTokens(""))
	assert.Nil(t, CSSTokens("   \n\t  "))
}

func TestHTMLTokensLandmarks(t *testing.T) {
	html := `<html><body>
		<header>x</header>
		<nav>y</nav>
		<section>a</section><section>b</section>
	</body></html>`
	tokens := HTMLTokens(html)

	assert.Contains(t, tokens, "count:header=1")
	assert.Contains(t, tokens, "count:nav=1")
	assert.Contains(t, tokens, "count:section=2")
}

func TestHTMLTokensHeadingSignature(t *testing.T) {
	tokens := HTMLTokens("<h1>a</h1><h2>b</h2><h2>c</h2><h3>d</h3>")

	count := 0
	for _, tok := range tokens {
		if tok == "headings:h1h2h2h3" {
			count++
		}
	}
	assert.Equal(t, 2, count, "heading signature is emitted twice")
}

func TestHTMLTokensIgnoresComments(t *testing.T) {
	tokens := HTMLTokens("<!-- <header>ghost</header> --><main>x</main>")

	assert.Contains(t, tokens, "count:main=1")
	assert.NotContains(t, tokens, "count:header=1")
}

func TestHTMLTokensInputsAndDataAttrs(t *testing.T) {
	tokens := HTMLTokens(`<form><input type="email"><div data-widget="x"></div></form>`)

	assert.Contains(t, tokens, "input:email")
	assert.Contains(t, tokens, "attr:data-widget")
}

func TestTokenShinglesWindow(t *testing.T) {
	got := TokenShingles([]string{"a", "b", "c", "d"})
	require.Len(t, got, 2)
	assert.Contains(t, got, "a|b|c")
	assert.Contains(t, got, "b|c|d")
}

func TestTokenShinglesShortStream(t *testing.T) {
	got := TokenShingles([]string{"a", "b"})
	assert.Len(t, got, 2)
	assert.Contains(t, got, "a")
	assert.Contains(t, got, "b")

	assert.Empty(t, TokenShingles(nil))
}
