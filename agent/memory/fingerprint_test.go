package memory

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/sriflow/testutil/fixtures"
	"github.com/BaSui01/sriflow/types"
)

func TestSerializeAffect_CanonicalForm(t *testing.T) {
	t.Parallel()

	got := serializeAffect(fixtures.FailureAffect(fixtures.FixedTime))
	assert.Equal(t,
		"v:-0.8,a:0.9,d:0.2,c:0.5,su:0,fe:0,jo:0,an:0,sa:0,di:0,t:2026-01-01T12:00:00.000Z",
		got)

	// 非 UTC 时区被规范化为 UTC
	shanghai := time.FixedZone("CST", 8*3600)
	local := fixtures.FailureAffect(fixtures.FixedTime.In(shanghai))
	assert.Equal(t, got, serializeAffect(local))
}

// 五字段旧格式得到不同指纹
func TestFingerprinter_FiveFieldFormatIsIncompatible(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(8)
	v := fixtures.FailureAffect(fixtures.FixedTime)
	got, err := f.Fingerprint(v)
	require.NoError(t, err)

	legacy := f.digest("v:-0.8,a:0.9,d:0.2,c:0.5,t:2026-01-01T12:00:00.000Z")
	assert.NotEqual(t, legacy, got)
	assert.Equal(t, f.digest(serializeAffect(v)), got)
}

func TestRound3(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{in: 0.12345, want: "0.123"},
		{in: 0.9996, want: "1"},
		{in: 0.0005, want: "0.001"},
		{in: -0.0004, want: "0"},
		{in: math.Copysign(0, -1), want: "0"},
		{in: -0.0006, want: "-0.001"},
		{in: 0.5, want: "0.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatRounded(tt.in), "input %v", tt.in)
	}
}

func TestFingerprinter_Deterministic(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(8)
	v := fixtures.HighIntensityAffect(fixtures.FixedTime)

	a, err := f.Fingerprint(v)
	require.NoError(t, err)
	b, err := f.Fingerprint(v)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
	assert.True(t, f.Validate(a))
}

func TestFingerprinter_EveryFieldMatters(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(8)
	base := fixtures.HighIntensityAffect(fixtures.FixedTime)
	baseID, err := f.Fingerprint(base)
	require.NoError(t, err)

	mutations := map[string]func(*types.AffectiveVector){
		"valence":    func(v *types.AffectiveVector) { v.Valence += 0.01 },
		"arousal":    func(v *types.AffectiveVector) { v.Arousal -= 0.01 },
		"dominance":  func(v *types.AffectiveVector) { v.Dominance += 0.01 },
		"confidence": func(v *types.AffectiveVector) { v.Confidence += 0.01 },
		"surprise":   func(v *types.AffectiveVector) { v.Surprise -= 0.01 },
		"fear":       func(v *types.AffectiveVector) { v.Fear -= 0.01 },
		"joy":        func(v *types.AffectiveVector) { v.Joy += 0.01 },
		"anger":      func(v *types.AffectiveVector) { v.Anger -= 0.01 },
		"sadness":    func(v *types.AffectiveVector) { v.Sadness -= 0.01 },
		"disgust":    func(v *types.AffectiveVector) { v.Disgust += 0.01 },
		"timestamp":  func(v *types.AffectiveVector) { v.Timestamp = v.Timestamp.Add(time.Minute) },
		"millis":     func(v *types.AffectiveVector) { v.Timestamp = v.Timestamp.Add(time.Millisecond) },
	}

	for name, mutate := range mutations {
		v := base
		mutate(&v)
		id, err := f.Fingerprint(v)
		require.NoError(t, err)
		assert.NotEqual(t, baseID, id, "changing %s must change the fingerprint", name)
	}
}

func TestFingerprinter_BelowPrecisionIsIgnored(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(8)
	v := fixtures.FailureAffect(fixtures.FixedTime)
	w := v
	w.Valence += 0.0001
	w.Timestamp = w.Timestamp.Add(100 * time.Microsecond)

	a, _ := f.Fingerprint(v)
	b, _ := f.Fingerprint(w)
	assert.Equal(t, a, b)
}

func TestFingerprinter_RejectsNonFinite(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(8)
	v := fixtures.FailureAffect(fixtures.FixedTime)
	v.Arousal = math.Inf(-1)

	_, err := f.Fingerprint(v)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidAffect))

	_, err = f.ContextualFingerprint(v, "ctx")
	assert.Error(t, err)
	_, err = f.CompositeFingerprint([]types.AffectiveVector{v})
	assert.Error(t, err)
}

func TestFingerprinter_Text(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(8)
	a := f.FingerprintText("  Bitcoin   Investment\n\tAdvice ")
	b := f.FingerprintText("bitcoin investment advice")
	c := f.FingerprintText("bitcoin investment advise")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, f.Validate(a))
}

func TestFingerprinter_Validate(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(4)
	assert.True(t, f.Validate("0123abcd"))
	assert.False(t, f.Validate("0123ABCD"), "uppercase")
	assert.False(t, f.Validate("0123abc"), "too short")
	assert.False(t, f.Validate("0123abcde"), "too long")
	assert.False(t, f.Validate("0123abcg"), "non-hex")
	assert.False(t, f.Validate(""))
}

func TestFingerprinter_HashLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultHashLength, NewFingerprinter(0).HashLength())
	assert.Equal(t, DefaultHashLength, NewFingerprinter(64).HashLength())

	f := NewFingerprinter(16)
	id, err := f.Fingerprint(fixtures.SuccessAffect(fixtures.FixedTime))
	require.NoError(t, err)
	assert.Len(t, id, 32)

	short, _ := NewFingerprinter(8).Fingerprint(fixtures.SuccessAffect(fixtures.FixedTime))
	assert.True(t, strings.HasPrefix(id, short), "truncation keeps the digest prefix")
}

func TestFingerprinter_CompositeIsOrderIndependent(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(8)
	a := fixtures.FailureAffect(fixtures.FixedTime)
	b := fixtures.SuccessAffect(fixtures.FixedTime)

	ab, err := f.CompositeFingerprint([]types.AffectiveVector{a, b})
	require.NoError(t, err)
	ba, err := f.CompositeFingerprint([]types.AffectiveVector{b, a})
	require.NoError(t, err)
	assert.Equal(t, ab, ba)

	single, _ := f.Fingerprint(a)
	assert.NotEqual(t, single, ab)
}

func TestFingerprinter_ContextualBindsText(t *testing.T) {
	t.Parallel()

	f := NewFingerprinter(8)
	v := fixtures.FailureAffect(fixtures.FixedTime)

	x, err := f.ContextualFingerprint(v, "Logo  design")
	require.NoError(t, err)
	y, _ := f.ContextualFingerprint(v, "logo design")
	z, _ := f.ContextualFingerprint(v, "bitcoin")
	plain, _ := f.Fingerprint(v)

	assert.Equal(t, x, y)
	assert.NotEqual(t, x, z)
	assert.NotEqual(t, x, plain)
}
