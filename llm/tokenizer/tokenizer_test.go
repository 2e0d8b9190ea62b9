package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BaSui01/sriflow/types"
)

type failingTokenizer struct{ calls int }

func (f *failingTokenizer) CountTokens(string) (int, error) {
	f.calls++
	return 0, errors.New("encoding unavailable")
}

func (f *failingTokenizer) Name() string { return "failing" }

func TestCharEstimator_CountTokens(t *testing.T) {
	t.Parallel()

	e := NewCharEstimator()
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 8000), 2000},
		{"你好世界", 1}, // 按字符而非字节计数
		{"你好世界!", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.CountTokens(tt.text), "text %q", tt.text)
	}
	assert.Equal(t, NameEstimator, e.Name())
}

func TestNew(t *testing.T) {
	t.Parallel()

	c, err := New("", nil)
	require.NoError(t, err)
	assert.IsType(t, &CharEstimator{}, c)

	c, err = New(NameEstimator, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, c.CountTokens("0123456789"))

	c, err = New("tiktoken:gpt-4o-mini", nil)
	require.NoError(t, err)
	counter, ok := c.(*Counter)
	require.True(t, ok)
	assert.Equal(t, "tiktoken[o200k_base]", counter.Name())

	_, err = New("sentencepiece", nil)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrTokenizerError))
}

func TestNew_Registered(t *testing.T) {
	Register("always-failing", &failingTokenizer{})

	c, err := New("always-failing", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, c.CountTokens("12345678"))
}

func TestCounter_FallsBackAndWarnsOnce(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	ft := &failingTokenizer{}
	c := NewCounter(ft, zap.New(core))

	assert.Equal(t, 1, c.CountTokens("abc"))
	assert.Equal(t, 2, c.CountTokens("abcdefg"))
	assert.Equal(t, 2, ft.calls)
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "failing", logs.All()[0].ContextMap()["tokenizer"])
}

func TestEncodingForModel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "o200k_base", encodingForModel("gpt-4o"))
	assert.Equal(t, "o200k_base", encodingForModel("gpt-4o-2024-08-06"))
	assert.Equal(t, "cl100k_base", encodingForModel("gpt-4-0613"))
	assert.Equal(t, defaultEncoding, encodingForModel(""))
	assert.Equal(t, defaultEncoding, encodingForModel("llama-3"))
	assert.Equal(t, "cl100k_base", NewTiktokenTokenizer("").Encoding())
}
