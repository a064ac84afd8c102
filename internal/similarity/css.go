package similarity

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Verdict strings for the property comparison.
const (
	VerdictHigh     = "high_similarity"
	VerdictModerate = "moderate"
	VerdictLow      = "low"
	VerdictDistinct = "distinct"
)

// Verdict thresholds. These values were tuned empirically against labeled
// template pairs; they are intentionally preserved as named constants and
// can be overridden through Thresholds rather than re-derived.
const (
	DefaultHighCombined        = 0.5
	DefaultHighDeclaration     = 0.4
	DefaultModerateCombined    = 0.25
	DefaultModerateDeclaration = 0.2
	DefaultLowCombined         = 0.1
	DefaultLowPattern          = 0.3
)

// Pattern weights. Gradients and keyframes are far harder to duplicate by
// coincidence than a shared color, so they count for more.
const (
	weightColor      = 0.5
	weightGradient   = 2.0
	weightAnimation  = 1.5
	weightCustomProp = 1.0
	weightKeyframes  = 2.0
)

// Combined score mix over the three evidence channels.
const (
	mixDeclaration = 0.5
	mixFingerprint = 0.3
	mixPattern     = 0.2
)

// fingerprintWindow is the number of consecutive properties folded into one
// fingerprint, making the fingerprint survive property reordering and small
// edits.
const fingerprintWindow = 3

// minBlockProperties drops declaration blocks below this property count as
// noise (single-property utility rules match everywhere).
const minBlockProperties = 2

var (
	cssBlockRe     = regexp.MustCompile(`([^{}]+)\{([^{}]*)\}`)
	classNameRe    = regexp.MustCompile(`\.([a-zA-Z_][\w-]*)`)
	animationRe    = regexp.MustCompile(`animation(?:-name)?\s*:\s*([^;{}]+)`)
	keyframeNameRe = regexp.MustCompile(`@keyframes\s+([\w-]+)`)
)

// Thresholds configures the verdict policy of CompareProperties.
type Thresholds struct {
	HighCombined        float64
	HighDeclaration     float64
	ModerateCombined    float64
	ModerateDeclaration float64
	LowCombined         float64
	LowPattern          float64
}

// DefaultThresholds returns the tuned verdict policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighCombined:        DefaultHighCombined,
		HighDeclaration:     DefaultHighDeclaration,
		ModerateCombined:    DefaultModerateCombined,
		ModerateDeclaration: DefaultModerateDeclaration,
		LowCombined:         DefaultLowCombined,
		LowPattern:          DefaultLowPattern,
	}
}

// PropertyComparison is the structured result of comparing two stylesheets
// by declaration content, independent of selector names.
type PropertyComparison struct {
	DeclarationSimilarity float64  `bson:"declarationSimilarity" json:"declarationSimilarity"`
	FingerprintSimilarity float64  `bson:"fingerprintSimilarity" json:"fingerprintSimilarity"`
	PatternScore          float64  `bson:"patternScore" json:"patternScore"`
	CombinedScore         float64  `bson:"combinedScore" json:"combinedScore"`
	ClassOverlap          int      `bson:"classOverlap" json:"classOverlap"`
	ColorOverlap          int      `bson:"colorOverlap" json:"colorOverlap"`
	GradientOverlap       int      `bson:"gradientOverlap" json:"gradientOverlap"`
	AnimationOverlap      int      `bson:"animationOverlap" json:"animationOverlap"`
	CustomPropOverlap     int      `bson:"customPropOverlap" json:"customPropOverlap"`
	KeyframesOverlap      int      `bson:"keyframesOverlap" json:"keyframesOverlap"`
	Verdict               string   `bson:"verdict" json:"verdict"`
	Signals               []string `bson:"signals,omitempty" json:"signals,omitempty"`
}

// ExtractDeclarationBlocks parses selector{declarations} pairs and returns
// each rule body normalized: declarations lowercased, trimmed, and sorted
// alphabetically. Blocks with fewer than two properties are discarded.
// Selector names are dropped entirely, which is what makes the comparison
// survive wholesale class renaming.
func ExtractDeclarationBlocks(css string) []string {
	var blocks []string
	for _, m := range cssBlockRe.FindAllStringSubmatch(css, -1) {
		normalized := NormalizeDeclarationBlock(m[2])
		if normalized != "" {
			blocks = append(blocks, normalized)
		}
	}
	return blocks
}

// NormalizeDeclarationBlock canonicalizes one rule body. Normalizing an
// already-normalized block returns it unchanged. Returns "" for blocks with
// fewer than two properties.
func NormalizeDeclarationBlock(body string) string {
	parts := strings.Split(body, ";")
	decls := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		idx := strings.Index(p, ":")
		if idx <= 0 {
			continue
		}
		prop := strings.TrimSpace(p[:idx])
		val := whitespaceRe.ReplaceAllString(strings.TrimSpace(p[idx+1:]), " ")
		if prop == "" || val == "" {
			continue
		}
		decls = append(decls, prop+":"+val)
	}

	if len(decls) < minBlockProperties {
		return ""
	}
	sort.Strings(decls)
	return strings.Join(decls, ";")
}

// ExtractPropertyFingerprints slides a window of three properties over each
// normalized declaration block, plus the whole block when it has at least
// four properties. Because blocks are sorted before windowing, the
// fingerprints survive property reordering and minor edits.
func ExtractPropertyFingerprints(css string) []string {
	var fingerprints []string
	for _, block := range ExtractDeclarationBlocks(css) {
		decls := strings.Split(block, ";")
		for i := 0; i+fingerprintWindow <= len(decls); i++ {
			fingerprints = append(fingerprints, strings.Join(decls[i:i+fingerprintWindow], ";"))
		}
		if len(decls) >= fingerprintWindow+1 {
			fingerprints = append(fingerprints, block)
		}
	}
	return fingerprints
}

// CompareProperties compares two stylesheets with the default thresholds.
func CompareProperties(cssA, cssB string) PropertyComparison {
	return ComparePropertiesWith(cssA, cssB, DefaultThresholds())
}

// ComparePropertiesWith compares two stylesheets: declaration-set Jaccard,
// fingerprint-set Jaccard, weighted pattern overlap, and a verdict under
// the given thresholds.
func ComparePropertiesWith(cssA, cssB string, th Thresholds) PropertyComparison {
	result := PropertyComparison{}

	declA := toSet(ExtractDeclarationBlocks(cssA))
	declB := toSet(ExtractDeclarationBlocks(cssB))
	result.DeclarationSimilarity = jaccard(declA, declB)

	fpA := toSet(ExtractPropertyFingerprints(cssA))
	fpB := toSet(ExtractPropertyFingerprints(cssB))
	result.FingerprintSimilarity = jaccard(fpA, fpB)

	result.ClassOverlap = intersectionSize(classNames(cssA), classNames(cssB))

	colors := overlapStat{weight: weightColor}
	colors.measure(matchSet(colorRe, cssA), matchSet(colorRe, cssB))
	result.ColorOverlap = colors.shared

	gradients := overlapStat{weight: weightGradient}
	gradients.measure(matchSet(gradientRe, cssA), matchSet(gradientRe, cssB))
	result.GradientOverlap = gradients.shared

	animations := overlapStat{weight: weightAnimation}
	animations.measure(submatchSet(animationRe, cssA), submatchSet(animationRe, cssB))
	result.AnimationOverlap = animations.shared

	customProps := overlapStat{weight: weightCustomProp}
	customProps.measure(matchSet(customPropRe, cssA), matchSet(customPropRe, cssB))
	result.CustomPropOverlap = customProps.shared

	keyframes := overlapStat{weight: weightKeyframes}
	keyframes.measure(submatchSet(keyframeNameRe, cssA), submatchSet(keyframeNameRe, cssB))
	result.KeyframesOverlap = keyframes.shared

	var weightedShared, weightedUnion float64
	for _, s := range []overlapStat{colors, gradients, animations, customProps, keyframes} {
		weightedShared += s.weight * float64(s.shared)
		weightedUnion += s.weight * float64(s.union)
	}
	if weightedUnion > 0 {
		result.PatternScore = weightedShared / weightedUnion
	}

	result.CombinedScore = mixDeclaration*result.DeclarationSimilarity +
		mixFingerprint*result.FingerprintSimilarity +
		mixPattern*result.PatternScore

	result.Verdict = verdictFor(result, th)
	result.Signals = buildSignals(result)
	return result
}

func verdictFor(r PropertyComparison, th Thresholds) string {
	switch {
	case r.CombinedScore >= th.HighCombined || r.DeclarationSimilarity >= th.HighDeclaration:
		return VerdictHigh
	case r.CombinedScore >= th.ModerateCombined || r.DeclarationSimilarity >= th.ModerateDeclaration:
		return VerdictModerate
	case r.CombinedScore >= th.LowCombined || r.PatternScore > th.LowPattern:
		return VerdictLow
	default:
		return VerdictDistinct
	}
}

// buildSignals produces the human-readable breakdown attached to a result.
func buildSignals(r PropertyComparison) []string {
	var signals []string
	if r.DeclarationSimilarity > 0 {
		signals = append(signals, fmt.Sprintf("%.0f%% of declaration blocks match", r.DeclarationSimilarity*100))
	}
	if r.GradientOverlap > 0 {
		signals = append(signals, fmt.Sprintf("%d shared gradients", r.GradientOverlap))
	}
	if r.KeyframesOverlap > 0 {
		signals = append(signals, fmt.Sprintf("%d shared keyframe animations", r.KeyframesOverlap))
	}
	if r.AnimationOverlap > 0 {
		signals = append(signals, fmt.Sprintf("%d shared animation declarations", r.AnimationOverlap))
	}
	if r.CustomPropOverlap > 0 {
		signals = append(signals, fmt.Sprintf("%d shared custom properties", r.CustomPropOverlap))
	}
	if r.ColorOverlap > 0 {
		signals = append(signals, fmt.Sprintf("%d shared colors", r.ColorOverlap))
	}
	if r.ClassOverlap == 0 && r.DeclarationSimilarity > 0 {
		signals = append(signals, "matching declarations despite zero shared class names")
	}
	return signals
}

type overlapStat struct {
	weight float64
	shared int
	union  int
}

func (s *overlapStat) measure(a, b map[string]struct{}) {
	s.shared = intersectionSize(a, b)
	s.union = len(a) + len(b) - s.shared
}

func classNames(css string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range classNameRe.FindAllStringSubmatch(css, -1) {
		out[strings.ToLower(m[1])] = struct{}{}
	}
	return out
}

func matchSet(re *regexp.Regexp, s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range re.FindAllString(strings.ToLower(s), -1) {
		out[m] = struct{}{}
	}
	return out
}

func submatchSet(re *regexp.Regexp, s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range re.FindAllStringSubmatch(strings.ToLower(s), -1) {
		out[strings.TrimSpace(m[1])] = struct{}{}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := intersectionSize(a, b)
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
