package interceptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesSentinelPathExact(t *testing.T) {
	assert.True(t, matchesSentinelPath(append([]byte("/dev/random"), 0, 0)))
	assert.True(t, matchesSentinelPath(append([]byte("/dev/urandom"), 0)))
}

func TestMatchesSentinelPathRejectsLookalikes(t *testing.T) {
	assert.False(t, matchesSentinelPath([]byte("/dev/urandomX\x00")))
	assert.False(t, matchesSentinelPath([]byte("/dev/null\x00\x00\x00\x00")))
	assert.False(t, matchesSentinelPath([]byte("/dev/random2\x00")))
	assert.False(t, matchesSentinelPath([]byte("random\x00")))
}

func TestMatchesSentinelPathRequiresNulAtExactLength(t *testing.T) {
	// "/dev/random" followed by a non-NUL byte before any terminator
	// must not match, even though it's a byte-exact prefix.
	assert.False(t, matchesSentinelPath([]byte("/dev/randomx")))
}

func TestIsSuccess(t *testing.T) {
	assert.True(t, isSuccess(0))
	assert.True(t, isSuccess(16))
	// -1 (EPERM) as a raw uint64 return value.
	assert.False(t, isSuccess(^uint64(0)))
	// -4095, the edge of the errno range.
	assert.False(t, isSuccess(^uint64(4095-1)))
}
