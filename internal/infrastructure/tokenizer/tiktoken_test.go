package tokenizer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizer_CountAndTruncate(t *testing.T) {
	tok, err := Get()
	require.NoError(t, err)

	assert.Zero(t, tok.CountTokens(""))
	assert.Positive(t, tok.CountTokens("hello world"))

	short := "hello world"
	assert.Equal(t, short, tok.Truncate(short, 100))
	assert.Equal(t, short, tok.Truncate(short, 0))

	long := strings.Repeat("conversation search engine ", 200)
	truncated := tok.Truncate(long, 50)
	assert.Less(t, len(truncated), len(long))
	assert.LessOrEqual(t, tok.CountTokens(truncated), 50)
	assert.True(t, strings.HasPrefix(long, truncated))
}

func TestTokenizer_TruncateKeepsValidUTF8(t *testing.T) {
	tok, err := Get()
	require.NoError(t, err)

	text := strings.Repeat("会话检索引擎", 100)
	truncated := tok.Truncate(text, 7)
	assert.True(t, utf8.ValidString(truncated))
	assert.NotEmpty(t, truncated)
}

func TestTokenizer_FallbackWithoutEncoding(t *testing.T) {
	tok := &Tokenizer{}

	assert.Equal(t, 3, tok.CountTokens("abcdefghij"))
	assert.Equal(t, "abcdefgh", tok.Truncate("abcdefghijkl", 2))
	assert.Equal(t, "abc", tok.Truncate("abc", 2))
}
