package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDeclarationBlock(t *testing.T) {
	got := NormalizeDeclarationBlock("  Display: Flex ; COLOR:  #FFF ;")
	assert.Equal(t, "color:#fff;display:flex", got)

	// Idempotent
	assert.Equal(t, got, NormalizeDeclarationBlock(got))
}

func TestNormalizeDeclarationBlockDropsSmall(t *testing.T) {
	assert.Empty(t, NormalizeDeclarationBlock("color: red"))
	assert.Empty(t, NormalizeDeclarationBlock(""))
	assert.Empty(t, NormalizeDeclarationBlock("not a declaration"))
}

func TestExtractDeclarationBlocks(t *testing.T) {
	css := `
		.one { color: red; margin: 0; }
		.two { padding: 4px }
		.three { display: grid; gap: 8px; }
	`
	blocks := ExtractDeclarationBlocks(css)
	require.Len(t, blocks, 2, "single-property block is dropped")
	assert.Contains(t, blocks, "color:red;margin:0")
	assert.Contains(t, blocks, "display:grid;gap:8px")
}

func TestExtractPropertyFingerprints(t *testing.T) {
	css := ".x { a: 1; b: 2; c: 3; d: 4; }"
	fps := ExtractPropertyFingerprints(css)

	// Two 3-windows over four sorted properties, plus the whole block.
	require.Len(t, fps, 3)
	assert.Contains(t, fps, "a:1;b:2;c:3")
	assert.Contains(t, fps, "b:2;c:3;d:4")
	assert.Contains(t, fps, "a:1;b:2;c:3;d:4")
}

func TestExtractPropertyFingerprintsSmallBlock(t *testing.T) {
	fps := ExtractPropertyFingerprints(".x { a: 1; b: 2; c: 3; }")
	require.Len(t, fps, 1, "three-property block gets one window, no whole-block entry")
	assert.Equal(t, "a:1;b:2;c:3", fps[0])
}

// Wholesale class renaming must not hide copied styling: every declaration
// block matches while zero class names do.
func TestComparePropertiesRenamedClasses(t *testing.T) {
	original := `
		.hero-banner { background: linear-gradient(135deg, #667eea, #764ba2); padding: 40px; border-radius: 12px; }
		.cta-button { color: #fff; background: #667eea; padding: 12px 24px; }
		@keyframes slideIn { from { opacity: 0; } to { opacity: 1; } }
	`
	copied := `
		.top-section { background: linear-gradient(135deg, #667eea, #764ba2); padding: 40px; border-radius: 12px; }
		.action-btn { color: #fff; background: #667eea; padding: 12px 24px; }
		@keyframes slideIn { from { opacity: 0; } to { opacity: 1; } }
	`

	result := CompareProperties(original, copied)

	assert.Equal(t, 1.0, result.DeclarationSimilarity)
	assert.Zero(t, result.ClassOverlap)
	assert.Equal(t, 1, result.GradientOverlap)
	assert.Equal(t, 1, result.KeyframesOverlap)
	assert.Equal(t, VerdictHigh, result.Verdict)
	assert.Contains(t, result.Signals, "matching declarations despite zero shared class names")
}

func TestComparePropertiesUnrelated(t *testing.T) {
	a := `
		.card { display: grid; grid-template-columns: 1fr 2fr; gap: 16px; }
		.title { font-size: 2rem; font-weight: 700; }
	`
	b := `
		.sidebar { float: left; width: 220px; background: #333; }
		.link { text-decoration: underline; color: #0066cc; }
	`

	result := CompareProperties(a, b)

	assert.Zero(t, result.DeclarationSimilarity)
	assert.Zero(t, result.FingerprintSimilarity)
	assert.Equal(t, VerdictDistinct, result.Verdict)
}

func TestComparePropertiesModerate(t *testing.T) {
	a := `
		.x { color: red; margin: 0; }
		.y { display: flex; gap: 4px; }
		.z { padding: 8px; border: 1px solid #000; }
		.w { font-size: 14px; line-height: 1.5; }
	`
	b := `
		.p { color: red; margin: 0; }
		.q { display: flex; gap: 4px; }
		.r { width: 50%; height: auto; }
		.s { overflow: hidden; position: relative; }
	`

	result := CompareProperties(a, b)

	// 2 of 6 distinct blocks shared
	assert.InDelta(t, 1.0/3.0, result.DeclarationSimilarity, 1e-9)
	assert.Equal(t, VerdictModerate, result.Verdict)
}

func TestCompareEmptyStylesheets(t *testing.T) {
	result := CompareProperties("", "")

	assert.Zero(t, result.DeclarationSimilarity)
	assert.Zero(t, result.CombinedScore)
	assert.Equal(t, VerdictDistinct, result.Verdict)
	assert.Empty(t, result.Signals)
}

func TestVerdictThresholdBoundaries(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name string
		r    PropertyComparison
		want string
	}{
		{"combined at high", PropertyComparison{CombinedScore: 0.5}, VerdictHigh},
		{"declaration alone at high", PropertyComparison{DeclarationSimilarity: 0.4}, VerdictHigh},
		{"combined at moderate", PropertyComparison{CombinedScore: 0.25}, VerdictModerate},
		{"declaration alone at moderate", PropertyComparison{DeclarationSimilarity: 0.2}, VerdictModerate},
		{"combined at low", PropertyComparison{CombinedScore: 0.1}, VerdictLow},
		{"pattern alone above low", PropertyComparison{PatternScore: 0.31}, VerdictLow},
		{"pattern alone at low stays distinct", PropertyComparison{PatternScore: 0.3}, VerdictDistinct},
		{"below everything", PropertyComparison{CombinedScore: 0.09}, VerdictDistinct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verdictFor(tt.r, th))
		})
	}
}
