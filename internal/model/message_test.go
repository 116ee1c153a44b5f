package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClassify_NotificationOnlyTakesPrecedence(t *testing.T) {
	m := &Message{MessageTypeLabel: "text", NotificationOnly: true}
	m.Classify()
	require.Equal(t, Notification, m.Class)
}

func TestClassify_LabelImpliesNotification(t *testing.T) {
	for _, label := range []string{"notification", "typing", "system_event"} {
		m := &Message{MessageTypeLabel: label}
		m.Classify()
		require.Equal(t, Notification, m.Class, label)
	}
}

func TestClassify_DefaultsToNormal(t *testing.T) {
	m := &Message{MessageTypeLabel: "text", ContentType: "text"}
	m.Classify()
	require.Equal(t, Normal, m.Class)
	require.True(t, m.NeedsPersistence())
	require.True(t, m.NeedsWAL())
}

func TestClassify_NotificationNeverPersists(t *testing.T) {
	m := &Message{NotificationOnly: true}
	m.Classify()
	require.False(t, m.NeedsPersistence())
	require.False(t, m.NeedsWAL())
}

func TestTimeline_NeverOverwritesEarlierStage(t *testing.T) {
	var tl Timeline
	first := time.Unix(100, 0)
	second := time.Unix(200, 0)

	tl.SetPersisted(first)
	tl.SetPersisted(second)

	require.Equal(t, first, *tl.PersistedTS)
}

func TestUnreadCount(t *testing.T) {
	require.Equal(t, int64(0), UnreadCount(5, 5))
	require.Equal(t, int64(0), UnreadCount(3, 5))
	require.Equal(t, int64(2), UnreadCount(7, 5))
}

func TestNormalize_FillsDefaults(t *testing.T) {
	m := &Message{ConversationID: "c1"}
	m.Normalize()
	require.Equal(t, SenderUser, m.SenderSource)
	require.Equal(t, ConversationSingle, m.ConversationType)
	require.Equal(t, StatusCreated, m.Status)
	require.Equal(t, "c1", m.ShardKey)
}
