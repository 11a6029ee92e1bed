package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(sec int) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

func TestSummarizeConversations(t *testing.T) {
	const me = 1

	t.Run("no messages", func(t *testing.T) {
		summaries := summarizeConversations(me, nil, nil)
		assert.Empty(t, summaries, "expected no summaries for empty message log")
	})

	t.Run("groups by counterpart with newest preview", func(t *testing.T) {
		// newest first, as the query returns them
		messages := []Message{
			{Id: "m3", SenderId: 2, RecipientId: me, Content: "found it!", CreatedAt: ts(3)},
			{Id: "m2", SenderId: me, RecipientId: 3, Content: "is it blue?", CreatedAt: ts(2)},
			{Id: "m1", SenderId: me, RecipientId: 2, Content: "still looking", CreatedAt: ts(1)},
		}
		names := []string{"bob", "carol", "bob"}

		summaries := summarizeConversations(me, messages, names)
		assert.Len(t, summaries, 2, "expected one summary per counterpart")

		assert.Equal(t, 2, summaries[0].CounterpartId, "expected most recent conversation first")
		assert.Equal(t, "bob", summaries[0].CounterpartName, "expected counterpart name")
		assert.Equal(t, "found it!", summaries[0].LastMessage, "expected newest message as preview")
		assert.Equal(t, ts(3), summaries[0].LastMessageTime, "expected newest message timestamp")

		assert.Equal(t, 3, summaries[1].CounterpartId, "expected older conversation second")
		assert.Equal(t, "is it blue?", summaries[1].LastMessage, "expected preview for second counterpart")
	})

	t.Run("unread counts only messages addressed to the user", func(t *testing.T) {
		messages := []Message{
			{Id: "m4", SenderId: 2, RecipientId: me, Content: "d", CreatedAt: ts(4)},
			{Id: "m3", SenderId: me, RecipientId: 2, Content: "c", CreatedAt: ts(3)},
			{Id: "m2", SenderId: 2, RecipientId: me, Content: "b", Read: true, CreatedAt: ts(2)},
			{Id: "m1", SenderId: 2, RecipientId: me, Content: "a", CreatedAt: ts(1)},
		}
		names := []string{"bob", "bob", "bob", "bob"}

		summaries := summarizeConversations(me, messages, names)
		assert.Len(t, summaries, 1, "expected a single summary")
		assert.Equal(t, 2, summaries[0].UnreadCount, "expected unread to exclude read and own messages")
	})

	t.Run("item linkage comes from the most recent message carrying one", func(t *testing.T) {
		messages := []Message{
			{Id: "m3", SenderId: 2, RecipientId: me, Content: "c", CreatedAt: ts(3)},
			{Id: "m2", SenderId: me, RecipientId: 2, Content: "b", ItemId: "item-2", ItemTitle: "Blue Backpack", CreatedAt: ts(2)},
			{Id: "m1", SenderId: 2, RecipientId: me, Content: "a", ItemId: "item-1", ItemTitle: "Old Umbrella", CreatedAt: ts(1)},
		}
		names := []string{"bob", "bob", "bob"}

		summaries := summarizeConversations(me, messages, names)
		assert.Len(t, summaries, 1, "expected a single summary")
		assert.Equal(t, "item-2", summaries[0].ItemId, "expected most recent item linkage")
		assert.Equal(t, "Blue Backpack", summaries[0].ItemTitle, "expected most recent item title")
	})
}
