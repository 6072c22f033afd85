package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/roundbot/internal/application/engine"
	"github.com/stretchr/testify/assert"
)

func TestWait_Elapses(t *testing.T) {
	assert.True(t, engine.Wait(context.Background(), time.Millisecond))
}

func TestWait_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, engine.Wait(ctx, time.Hour))
	assert.False(t, engine.Wait(ctx, 0))
}

func TestShortAddr(t *testing.T) {
	assert.Equal(t, "0x4A7b…62c2", engine.ShortAddr("0x4A7b5Da61326A6379179b40d00F57E5bbDC962c2"))
	assert.Equal(t, "0xabc", engine.ShortAddr("0xabc"))
}

func TestTruncateStr(t *testing.T) {
	assert.Equal(t, "abcdefg...", engine.TruncateStr("abcdefghijklmnop", 10))
	assert.Equal(t, "short", engine.TruncateStr("short", 10))
}
