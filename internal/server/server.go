package server

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/unifound/lostfound-chat/internal/database"
	"github.com/unifound/lostfound-chat/internal/stats"
	"github.com/unifound/lostfound-chat/internal/types"
)

const (
	historyFetchTimeout = 5 * time.Second
	storeWriteTimeout   = 5 * time.Second
	maxContentLength    = 1000
)

type stopReq struct {
	done chan struct{}
}

type unreadReq struct {
	userId int
	reply  chan map[int]UnreadState
}

type dropConversationReq struct {
	userA int
	userB int
	done  chan struct{}
}

type clearUnreadReq struct {
	userId      int
	counterpart int
	done        chan struct{}
}

// ChatServer routes chat events between live connections. A single Run
// goroutine owns the registry and the room subscription maps; store calls
// are awaited inline so a message is never broadcast before its durable
// write completes.
type ChatServer struct {
	log            *log.Logger
	db             database.ChatRepository
	stats          stats.StatsProvider
	registry       *Registry
	rooms          map[string]map[*Client]struct{}
	activeRoom     map[*Client]string
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	eventChan      chan *ClientMessage
	unreadChan     chan *unreadReq
	clearChan      chan *clearUnreadReq
	dropConvChan   chan *dropConversationReq
	stop           chan stopReq
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, su stats.StatsProvider) (*ChatServer, error) {
	su.RegisterMetric(stats.RegistrySize)
	su.RegisterMetric(stats.NumActiveRooms)
	su.RegisterMetric(stats.NumMessagesPersisted)
	su.RegisterMetric(stats.NumNotificationsSent)

	return &ChatServer{
		log:            logger,
		db:             db,
		stats:          su,
		registry:       newRegistry(),
		rooms:          make(map[string]map[*Client]struct{}),
		activeRoom:     make(map[*Client]string),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client, 256),
		eventChan:      make(chan *ClientMessage, 256),
		unreadChan:     make(chan *unreadReq),
		clearChan:      make(chan *clearUnreadReq),
		dropConvChan:   make(chan *dropConversationReq),
		stop:           make(chan stopReq),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.RegisterChan:
			cs.handleRegister(client)
		case client := <-cs.deRegisterChan:
			cs.handleDeregister(client)
		case msg := <-cs.eventChan:
			cs.handleEvent(msg)
		case req := <-cs.unreadChan:
			cs.handleUnreadReq(req)
		case req := <-cs.clearChan:
			cs.handleClearUnread(req)
		case req := <-cs.dropConvChan:
			cs.handleDropConversation(req)
		case req := <-cs.stop:
			cs.log.Println("chat server stopping")
			for _, c := range cs.registry.clients {
				c.stopClient()
			}
			close(req.done)
			return
		}
	}
}

// RegisterClient hands a freshly upgraded connection to the event loop.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.RegisterChan <- c
}

// SessionUnread returns a copy of the live session unread tallies for the
// user's registered connection, keyed by counterpart id.
func (cs *ChatServer) SessionUnread(ctx context.Context, userId int) (map[int]UnreadState, error) {
	req := &unreadReq{
		userId: userId,
		reply:  make(chan map[int]UnreadState, 1),
	}

	select {
	case cs.unreadChan <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case unread := <-req.reply:
		return unread, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ClearSessionUnread drops the live unread tally a user holds for one
// counterpart, after the read flags were flipped in the store.
func (cs *ChatServer) ClearSessionUnread(ctx context.Context, userId, counterpart int) error {
	req := &clearUnreadReq{
		userId:      userId,
		counterpart: counterpart,
		done:        make(chan struct{}),
	}

	select {
	case cs.clearChan <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DropConversation clears any live room and unread state for the pair
// after their conversation has been deleted from the store.
func (cs *ChatServer) DropConversation(ctx context.Context, userA, userB int) error {
	req := &dropConversationReq{
		userA: userA,
		userB: userB,
		done:  make(chan struct{}),
	}

	select {
	case cs.dropConvChan <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *ChatServer) handleRegister(c *Client) {
	cs.log.Printf("registering connection %s for user %q", c.sessionId, c.user.Username)
	displaced := cs.registry.Register(c.user.Id, c)
	if displaced != nil {
		// last connect wins: the replaced connection must not receive
		// anything delivered from here on
		cs.log.Printf("displacing connection %s for user %q", displaced.sessionId, displaced.user.Username)
		cs.unsubscribe(displaced, cs.activeRoom[displaced], false)
		delete(cs.activeRoom, displaced)
		displaced.stopClient()
	} else {
		cs.stats.Incr(stats.RegistrySize)
	}
}

func (cs *ChatServer) handleDeregister(c *Client) {
	cs.log.Printf("removing connection %s for user %q", c.sessionId, c.user.Username)
	if cs.registry.Unregister(c.user.Id, c) {
		cs.stats.Decr(stats.RegistrySize)
	}

	cs.unsubscribe(c, cs.activeRoom[c], false)
	delete(cs.activeRoom, c)
}

func (cs *ChatServer) handleEvent(msg *ClientMessage) {
	switch {
	case msg.Join != nil:
		cs.handleJoin(msg.client, msg.Join)
	case msg.Send != nil:
		cs.handleSend(msg.client, msg.Send)
	case msg.Read != nil:
		cs.handleRead(msg.client, msg.Read)
	case msg.Leave != nil:
		cs.handleLeave(msg.client, msg.Leave)
	default:
		msg.client.queueMessage(errorMessage("invalid message format"))
	}
}

func (cs *ChatServer) handleJoin(c *Client, join *JoinChat) {
	if join.RecipientId <= 0 {
		c.queueMessage(errorMessage("missing participant id"))
		return
	}
	if join.RecipientId == c.user.Id {
		c.queueMessage(errorMessage("cannot chat with yourself"))
		return
	}

	roomId := RoomId(c.user.Id, join.RecipientId)
	cs.subscribe(c, roomId)

	// joining the room resets the live unread tally for this counterpart
	delete(c.unread, join.RecipientId)

	ctx, cancel := context.WithTimeout(context.Background(), historyFetchTimeout)
	defer cancel()

	// a failed history fetch degrades to an empty backlog, the chat
	// itself stays usable
	msgs, err := cs.db.ConversationMessages(ctx, c.user.Id, join.RecipientId, database.DefaultHistoryLimit)
	if err != nil {
		cs.log.Printf("history fetch for room %q: %v", roomId, err)
		msgs = nil
	}

	history := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		senderName := join.RecipientName
		if msg.SenderId == c.user.Id {
			senderName = c.user.Username
		}

		history = append(history, types.Message{
			Id:          msg.Id,
			SenderId:    msg.SenderId,
			SenderName:  senderName,
			RecipientId: msg.RecipientId,
			Content:     msg.Content,
			Read:        msg.Read,
			ItemId:      msg.ItemId,
			ItemTitle:   msg.ItemTitle,
			Timestamp:   msg.CreatedAt,
		})
	}

	c.queueMessage(&ServerMessage{
		History: &MessageHistory{
			RoomId:   roomId,
			Messages: history,
		},
	})

	cs.broadcast(roomId, &ServerMessage{
		Joined: &PresenceChange{
			UserId:   c.user.Id,
			UserName: c.user.Username,
		},
	}, c)
}

func (cs *ChatServer) handleSend(c *Client, send *SendMessage) {
	if send.SenderId != 0 && send.SenderId != c.user.Id {
		c.queueMessage(errorMessage("sender does not match connection identity"))
		return
	}
	if send.RecipientId <= 0 {
		c.queueMessage(errorMessage("missing participant id"))
		return
	}
	if send.RecipientId == c.user.Id {
		c.queueMessage(errorMessage("cannot send message to yourself"))
		return
	}

	content := strings.TrimSpace(send.Content)
	if content == "" {
		c.queueMessage(errorMessage("message content cannot be empty"))
		return
	}
	if len(content) > maxContentLength {
		c.queueMessage(errorMessage("message content too long"))
		return
	}

	timestamp := send.Timestamp
	if timestamp.IsZero() {
		timestamp = Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	dbMsg, err := cs.db.CreateMessage(ctx, database.CreateMessageParams{
		SenderId:    c.user.Id,
		RecipientId: send.RecipientId,
		Content:     content,
		ItemId:      send.ItemId,
		ItemTitle:   send.ItemTitle,
		CreatedAt:   timestamp,
	})
	if err != nil {
		// never broadcast a message that did not commit
		cs.log.Println("error saving message:", err)
		c.queueMessage(errorMessage("could not send message"))
		return
	}

	cs.stats.Incr(stats.NumMessagesPersisted)

	m := types.Message{
		Id:          dbMsg.Id,
		SenderId:    c.user.Id,
		SenderName:  c.user.Username,
		RecipientId: send.RecipientId,
		Content:     content,
		ItemId:      send.ItemId,
		ItemTitle:   send.ItemTitle,
		Timestamp:   dbMsg.CreatedAt,
	}

	roomId := RoomId(c.user.Id, send.RecipientId)
	cs.broadcast(roomId, &ServerMessage{Message: &m}, nil)

	recipient, ok := cs.registry.Lookup(send.RecipientId)
	if !ok {
		// unreachable peer is not an error: the message is durable and
		// will surface via history on their next connect
		return
	}

	if _, subscribed := cs.rooms[roomId][recipient]; !subscribed {
		recipient.queueMessage(&ServerMessage{
			Notification: &MessageNotification{
				SenderId:   m.SenderId,
				SenderName: m.SenderName,
				Content:    m.Content,
				Message:    &m,
			},
		})

		state := recipient.unread[c.user.Id]
		state.Count++
		state.UpdatedAt = m.Timestamp
		recipient.unread[c.user.Id] = state

		cs.stats.Incr(stats.NumNotificationsSent)
	}
}

func (cs *ChatServer) handleRead(c *Client, read *MarkAsRead) {
	counterpart, err := Counterpart(read.RoomId, c.user.Id)
	if err != nil {
		c.queueMessage(errorMessage("invalid room id"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	defer cancel()

	if err := cs.db.MarkMessagesRead(ctx, c.user.Id, counterpart); err != nil {
		cs.log.Println("MarkMessagesRead:", err)
		c.queueMessage(errorMessage("could not mark messages as read"))
		return
	}

	delete(c.unread, counterpart)

	cs.broadcast(read.RoomId, &ServerMessage{
		Read: &MessagesRead{RoomId: read.RoomId},
	}, nil)
}

func (cs *ChatServer) handleLeave(c *Client, leave *LeaveChat) {
	if leave.RecipientId <= 0 {
		c.queueMessage(errorMessage("missing participant id"))
		return
	}

	roomId := RoomId(c.user.Id, leave.RecipientId)
	cs.unsubscribe(c, roomId, true)
	if cs.activeRoom[c] == roomId {
		delete(cs.activeRoom, c)
	}
}

func (cs *ChatServer) handleUnreadReq(req *unreadReq) {
	unread := make(map[int]UnreadState)
	if c, ok := cs.registry.Lookup(req.userId); ok {
		for counterpart, state := range c.unread {
			unread[counterpart] = state
		}
	}

	req.reply <- unread
}

func (cs *ChatServer) handleClearUnread(req *clearUnreadReq) {
	if c, ok := cs.registry.Lookup(req.userId); ok {
		delete(c.unread, req.counterpart)
	}

	close(req.done)
}

func (cs *ChatServer) handleDropConversation(req *dropConversationReq) {
	roomId := RoomId(req.userA, req.userB)
	if subs, ok := cs.rooms[roomId]; ok {
		for sub := range subs {
			if cs.activeRoom[sub] == roomId {
				delete(cs.activeRoom, sub)
			}
		}
		delete(cs.rooms, roomId)
		cs.stats.Decr(stats.NumActiveRooms)
	}

	if c, ok := cs.registry.Lookup(req.userA); ok {
		delete(c.unread, req.userB)
	}
	if c, ok := cs.registry.Lookup(req.userB); ok {
		delete(c.unread, req.userA)
	}

	close(req.done)
}

// subscribe adds c to the room, implicitly leaving c's previous active
// room: a connection is in at most one room for unread purposes.
func (cs *ChatServer) subscribe(c *Client, roomId string) {
	if prev := cs.activeRoom[c]; prev != "" && prev != roomId {
		cs.unsubscribe(c, prev, true)
	}

	subs, ok := cs.rooms[roomId]
	if !ok {
		subs = make(map[*Client]struct{})
		cs.rooms[roomId] = subs
		cs.stats.Incr(stats.NumActiveRooms)
	}

	subs[c] = struct{}{}
	cs.activeRoom[c] = roomId
}

func (cs *ChatServer) unsubscribe(c *Client, roomId string, notify bool) {
	if roomId == "" {
		return
	}

	subs, ok := cs.rooms[roomId]
	if !ok {
		return
	}
	if _, ok := subs[c]; !ok {
		return
	}

	delete(subs, c)
	if len(subs) == 0 {
		delete(cs.rooms, roomId)
		cs.stats.Decr(stats.NumActiveRooms)
	} else if notify {
		cs.broadcast(roomId, &ServerMessage{
			Left: &PresenceChange{
				UserId:   c.user.Id,
				UserName: c.user.Username,
			},
		}, nil)
	}
}

func (cs *ChatServer) broadcast(roomId string, msg *ServerMessage, skip *Client) {
	for sub := range cs.rooms[roomId] {
		if sub == skip {
			continue
		}

		sub.queueMessage(msg)
	}
}
