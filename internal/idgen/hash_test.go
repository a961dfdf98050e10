package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateHashIDIsHexAndStable(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first := GenerateHashID(PrefixElement, "Fix login", "details", "alice", ts, 6, 0)
	second := GenerateHashID(PrefixElement, "Fix login", "details", "alice", ts, 6, 0)
	assert.Equal(t, first, second, "same inputs must produce the same ID")
	assert.Regexp(t, `^el-[0-9a-f]{6}$`, first)

	withNonce := GenerateHashID(PrefixElement, "Fix login", "details", "alice", ts, 6, 1)
	assert.NotEqual(t, first, withNonce, "nonce must change the output on collision retry")
}

func TestGenerateHashIDClampsSuffixLength(t *testing.T) {
	ts := time.Now()
	tooShort := GenerateHashID(PrefixElement, "t", "", "a", ts, 1, 0)
	assert.Len(t, tooShort, len(PrefixElement)+1+MinSuffixLength)

	tooLong := GenerateHashID(PrefixElement, "t", "", "a", ts, 99, 0)
	assert.Len(t, tooLong, len(PrefixElement)+1+MaxSuffixLength)
}

func TestPrefixFor(t *testing.T) {
	assert.Equal(t, PrefixEntity, PrefixFor("entity"))
	assert.Equal(t, PrefixElement, PrefixFor("task"))
	assert.Equal(t, PrefixElement, PrefixFor("plan"))
}
