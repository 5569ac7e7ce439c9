package utils

import (
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", TruncateString("hello", 10))
	assert.Equal(t, "hell…", TruncateString("hello world", 5))
	assert.Equal(t, "", TruncateString("hello", 0))
	assert.LessOrEqual(t, runewidth.StringWidth(TruncateString("日本語のテキスト", 7)), 7)
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", PadRight("ab", 5))
	assert.Equal(t, "abcd…", PadRight("abcdefgh", 5))
	assert.Equal(t, 6, runewidth.StringWidth(PadRight("日本", 6)))
}
