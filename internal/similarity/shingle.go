package similarity

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultShingleSize is the character n-gram length used for raw text.
const DefaultShingleSize = 8

// tokenWindow is the number of consecutive structural tokens joined into one
// token-level shingle, capturing co-occurrence of nearby features.
const tokenWindow = 3

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	declarationRe = regexp.MustCompile(`([a-zA-Z-]+)\s*:\s*([^;{}]+)`)
	colorRe       = regexp.MustCompile(`#[0-9a-fA-F]{3,8}\b|rgba?\([^)]*\)|hsla?\([^)]*\)`)
	gradientRe    = regexp.MustCompile(`(?:linear|radial|conic)-gradient\([^)]*\)`)
	transformRe   = regexp.MustCompile(`(?:translate|rotate|scale|skew|matrix)(?:3d|X|Y|Z)?\([^)]*\)`)
	timingRe      = regexp.MustCompile(`cubic-bezier\([^)]*\)|\b\d+(?:\.\d+)?m?s\b|\b(?:ease|ease-in|ease-out|ease-in-out|linear)\b`)
	keyframesRe   = regexp.MustCompile(`@keyframes\s+([\w-]+)`)
	customPropRe  = regexp.MustCompile(`--[\w-]+`)
	layoutRe      = regexp.MustCompile(`(?:display\s*:\s*(?:flex|grid|inline-flex|inline-grid))|(?:position\s*:\s*(?:absolute|fixed|sticky))`)

	htmlTagRe     = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)[\s>/]`)
	headingRe     = regexp.MustCompile(`<(h[1-6])[\s>]`)
	inputTypeRe   = regexp.MustCompile(`<input[^>]*type\s*=\s*["']?([\w-]+)`)
	dataAttrRe    = regexp.MustCompile(`data-[\w-]+`)
	htmlCommentRe = regexp.MustCompile(`<!--[\s\S]*?-->`)
)

// landmarkTags are the structural DOM elements whose occurrence counts make
// up the page-layout portion of the HTML token stream.
var landmarkTags = []string{
	"header", "nav", "main", "footer", "aside", "section", "article",
	"form", "table", "ul", "ol", "video", "canvas", "svg", "iframe", "button",
}

// Shingles produces the set of overlapping character n-grams of the given
// size, after lowercasing and collapsing whitespace. Empty or too-short
// input yields an empty set.
func Shingles(text string, size int) map[string]struct{} {
	if size <= 0 {
		size = DefaultShingleSize
	}

	normalized := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
	out := make(map[string]struct{})
	if len(normalized) < size {
		return out
	}

	for i := 0; i+size <= len(normalized); i++ {
		out[normalized[i:i+size]] = struct{}{}
	}
	return out
}

// CSSTokens extracts weighted structural tokens from a stylesheet.
//
// High-signal features are deliberately emitted multiple times: a gradient is
// far harder to duplicate by coincidence than a color, so repeating its token
// biases the MinHash minima toward design-defining declarations instead of
// boilerplate resets. The repetition counts are part of the fingerprint
// contract and must not change casually.
func CSSTokens(css string) []string {
	if strings.TrimSpace(css) == "" {
		return nil
	}

	lower := strings.ToLower(css)
	tokens := make([]string, 0, 64)

	for _, m := range declarationRe.FindAllStringSubmatch(lower, -1) {
		prop := strings.TrimSpace(m[1])
		val := whitespaceRe.ReplaceAllString(strings.TrimSpace(m[2]), " ")
		tokens = append(tokens, "decl:"+prop+"="+val)
	}

	// Gradients: emitted three times.
	for _, m := range gradientRe.FindAllString(lower, -1) {
		t := "gradient:" + whitespaceRe.ReplaceAllString(m, " ")
		tokens = append(tokens, t, t, t)
	}

	// Transforms and layout flags: emitted twice.
	for _, m := range transformRe.FindAllString(lower, -1) {
		t := "transform:" + m
		tokens = append(tokens, t, t)
	}
	for _, m := range layoutRe.FindAllString(lower, -1) {
		t := "layout:" + whitespaceRe.ReplaceAllString(m, "")
		tokens = append(tokens, t, t)
	}

	// Keyframe names: emitted twice. Animation identity survives renamed
	// selectors since keyframe names travel with the animation body.
	for _, m := range keyframesRe.FindAllStringSubmatch(lower, -1) {
		t := "keyframes:" + m[1]
		tokens = append(tokens, t, t)
	}

	for _, m := range colorRe.FindAllString(lower, -1) {
		tokens = append(tokens, "color:"+m)
	}
	for _, m := range timingRe.FindAllString(lower, -1) {
		tokens = append(tokens, "timing:"+m)
	}
	for _, m := range customPropRe.FindAllString(lower, -1) {
		tokens = append(tokens, "var:"+m)
	}

	return tokens
}

// HTMLTokens extracts structural tokens from markup: landmark element
// counts, the heading hierarchy as one ordered signature, input types and
// data attributes. Text content is ignored; only document shape matters.
func HTMLTokens(html string) []string {
	if strings.TrimSpace(html) == "" {
		return nil
	}

	lower := htmlCommentRe.ReplaceAllString(strings.ToLower(html), "")
	tokens := make([]string, 0, 32)

	counts := make(map[string]int)
	for _, m := range htmlTagRe.FindAllStringSubmatch(lower, -1) {
		counts[m[1]]++
	}
	for _, tag := range landmarkTags {
		if n := counts[tag]; n > 0 {
			tokens = append(tokens, fmt.Sprintf("count:%s=%d", tag, n))
		}
	}

	// Heading hierarchy as a single ordered token: two templates with the
	// same outline produce the same signature even when copy differs.
	headings := headingRe.FindAllStringSubmatch(lower, -1)
	if len(headings) > 0 {
		var sb strings.Builder
		for _, h := range headings {
			sb.WriteString(h[1])
		}
		t := "headings:" + sb.String()
		tokens = append(tokens, t, t)
	}

	for _, m := range inputTypeRe.FindAllStringSubmatch(lower, -1) {
		tokens = append(tokens, "input:"+m[1])
	}
	for _, m := range dataAttrRe.FindAllString(lower, -1) {
		tokens = append(tokens, "attr:"+m)
	}

	return tokens
}

// TokenShingles builds token-level shingles as sliding windows of three
// consecutive tokens, joined. A stream shorter than the window contributes
// its tokens individually so small documents still produce a set.
func TokenShingles(tokens []string) map[string]struct{} {
	out := make(map[string]struct{})
	if len(tokens) == 0 {
		return out
	}

	if len(tokens) < tokenWindow {
		for _, t := range tokens {
			out[t] = struct{}{}
		}
		return out
	}

	for i := 0; i+tokenWindow <= len(tokens); i++ {
		out[strings.Join(tokens[i:i+tokenWindow], "|")] = struct{}{}
	}
	return out
}
