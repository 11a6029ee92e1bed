package database

// summarizeConversations folds a newest-first message listing into one
// summary per counterpart. names carries the counterpart's username for
// the message at the same index. The first message seen per counterpart
// is the preview; unread counts only messages addressed to the user;
// item linkage comes from the most recent message that carries one.
func summarizeConversations(userId int, messages []Message, names []string) []ConversationSummary {
	var order []int
	summaries := make(map[int]*ConversationSummary)

	for i, msg := range messages {
		counterpart := msg.SenderId
		if counterpart == userId {
			counterpart = msg.RecipientId
		}

		summary, ok := summaries[counterpart]
		if !ok {
			summary = &ConversationSummary{
				CounterpartId:   counterpart,
				CounterpartName: names[i],
				LastMessage:     msg.Content,
				LastMessageTime: msg.CreatedAt,
			}
			summaries[counterpart] = summary
			order = append(order, counterpart)
		}

		if msg.RecipientId == userId && !msg.Read {
			summary.UnreadCount++
		}

		if summary.ItemId == "" && msg.ItemId != "" {
			summary.ItemId = msg.ItemId
			summary.ItemTitle = msg.ItemTitle
		}
	}

	result := make([]ConversationSummary, 0, len(order))
	for _, counterpart := range order {
		result = append(result, *summaries[counterpart])
	}

	return result
}
