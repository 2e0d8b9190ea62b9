package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/BaSui01/sriflow/types"
)

// DefaultHashLength is the number of digest bytes kept in a fingerprint.
const DefaultHashLength = 8

const fingerprintTimeLayout = "2006-01-02T15:04:05.000Z"

var whitespaceRun = regexp.MustCompile(`\s+`)

// Fingerprinter derives short, deterministic identifiers from affect vectors
// and text. The zero value is not usable; call NewFingerprinter.
type Fingerprinter struct {
	hashLength int
	pattern    *regexp.Regexp
}

// NewFingerprinter creates a fingerprinter that keeps hashLength digest bytes.
// Non-positive or oversize lengths fall back to DefaultHashLength.
func NewFingerprinter(hashLength int) *Fingerprinter {
	if hashLength <= 0 || hashLength > sha256.Size {
		hashLength = DefaultHashLength
	}
	return &Fingerprinter{
		hashLength: hashLength,
		pattern:    regexp.MustCompile(fmt.Sprintf("^[0-9a-f]{%d}$", hashLength*2)),
	}
}

// HashLength returns the digest byte count.
func (f *Fingerprinter) HashLength() int { return f.hashLength }

// Fingerprint hashes the canonical serialization of v. Two vectors that agree
// on every field after 3-decimal rounding and on the millisecond timestamp
// produce the same id.
func (f *Fingerprinter) Fingerprint(v types.AffectiveVector) (string, error) {
	if err := v.Validate(); err != nil {
		return "", err
	}
	return f.digest(serializeAffect(v)), nil
}

// FingerprintText hashes text after lowercasing, trimming and collapsing
// whitespace runs to a single space.
func (f *Fingerprinter) FingerprintText(text string) string {
	return f.digest(normalizeText(text))
}

// CompositeFingerprint hashes a set of vectors independent of their order.
func (f *Fingerprinter) CompositeFingerprint(vectors []types.AffectiveVector) (string, error) {
	parts := make([]string, 0, len(vectors))
	for _, v := range vectors {
		if err := v.Validate(); err != nil {
			return "", err
		}
		parts = append(parts, serializeAffect(v))
	}
	sort.Strings(parts)
	return f.digest(strings.Join(parts, "|")), nil
}

// ContextualFingerprint binds an affect vector to the text it was observed with.
func (f *Fingerprinter) ContextualFingerprint(v types.AffectiveVector, context string) (string, error) {
	if err := v.Validate(); err != nil {
		return "", err
	}
	return f.digest(serializeAffect(v) + "|" + normalizeText(context)), nil
}

// Validate reports whether id is exactly 2*hashLength lowercase hex digits.
func (f *Fingerprinter) Validate(id string) bool {
	return f.pattern.MatchString(id)
}

func (f *Fingerprinter) digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:f.hashLength])
}

// serializeAffect renders v in the canonical field order.
func serializeAffect(v types.AffectiveVector) string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString("v:")
	b.WriteString(formatRounded(v.Valence))
	b.WriteString(",a:")
	b.WriteString(formatRounded(v.Arousal))
	b.WriteString(",d:")
	b.WriteString(formatRounded(v.Dominance))
	b.WriteString(",c:")
	b.WriteString(formatRounded(v.Confidence))
	b.WriteString(",su:")
	b.WriteString(formatRounded(v.Surprise))
	b.WriteString(",fe:")
	b.WriteString(formatRounded(v.Fear))
	b.WriteString(",jo:")
	b.WriteString(formatRounded(v.Joy))
	b.WriteString(",an:")
	b.WriteString(formatRounded(v.Anger))
	b.WriteString(",sa:")
	b.WriteString(formatRounded(v.Sadness))
	b.WriteString(",di:")
	b.WriteString(formatRounded(v.Disgust))
	b.WriteString(",t:")
	b.WriteString(v.Timestamp.UTC().Format(fingerprintTimeLayout))
	return b.String()
}

// round3 rounds half toward +Inf at the third decimal.
func round3(x float64) float64 {
	r := math.Floor(x*1000+0.5) / 1000
	if r == 0 {
		return 0 // -0 → 0
	}
	return r
}

func formatRounded(x float64) string {
	return strconv.FormatFloat(round3(x), 'f', -1, 64)
}

func normalizeText(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(strings.ToLower(s)), " ")
}
