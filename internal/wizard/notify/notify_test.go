package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInbox(t *testing.T) {
	ctx := context.Background()
	inbox := NewInbox(0)
	inbox.NotifyInfo(ctx, "s1", "Please select Face Image again to retry")
	inbox.NotifyError(ctx, "s1", "Please upload all required images")
	inbox.NotifySuccess(ctx, "s2", "Verification completed")

	got := inbox.Drain("s1")
	require.Len(t, got, 2)
	assert.Equal(t, LevelInfo, got[0].Level)
	assert.Equal(t, LevelError, got[1].Level)
	assert.Less(t, got[0].ID, got[1].ID)

	assert.Empty(t, inbox.Drain("s1"), "drain clears the queue")
	assert.Len(t, inbox.Drain("s2"), 1)
}

func TestInboxDropsOldest(t *testing.T) {
	inbox := NewInbox(3)
	for i := range 5 {
		inbox.NotifyInfo(context.Background(), "s1", fmt.Sprintf("m%d", i))
	}
	got := inbox.Drain("s1")
	require.Len(t, got, 3)
	assert.Equal(t, "m2", got[0].Message)
	assert.Equal(t, "m4", got[2].Message)
}

func TestInboxForget(t *testing.T) {
	inbox := NewInbox(3)
	inbox.NotifyInfo(context.Background(), "s1", "hello")
	inbox.Forget("s1")
	assert.Empty(t, inbox.Drain("s1"))
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	inbox := NewInbox(4)
	n := WithLogging(inbox, logger)

	n.NotifyError(context.Background(), "s1", "Verification timed out. Please try again.")
	assert.Contains(t, buf.String(), `"session_id":"s1"`)
	assert.Contains(t, buf.String(), `"kind":"error"`)
	assert.Len(t, inbox.Drain("s1"), 1)
}
