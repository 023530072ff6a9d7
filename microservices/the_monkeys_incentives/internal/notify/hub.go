// Package notify fans issued incentives out to websocket subscribers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

// ErrSlowSubscriber is reported for connections dropped because their send
// buffer was full.
var ErrSlowSubscriber = errors.New("websocket subscriber too slow")

// subscriber owns one connection. Only its writer goroutine touches the
// connection for writes; everyone else enqueues frames on send.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue never blocks. It reports false when the buffer is full or the
// subscriber is already closed.
func (s *subscriber) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *subscriber) writePump(log *zap.SugaredLogger) {
	defer s.close()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debugf("error writing to websocket subscriber: %v", err)
				return
			}
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Hub tracks live connections. A connection opened with a user_id receives
// only that user's incentives; one opened without receives all of them.
type Hub struct {
	mu     sync.Mutex
	byUser map[uuid.UUID]map[*subscriber]struct{}
	all    map[*subscriber]struct{}
	log    *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		byUser: make(map[uuid.UUID]map[*subscriber]struct{}),
		all:    make(map[*subscriber]struct{}),
		log:    log,
	}
}

// Broadcast queues inc for every subscriber interested in userID and returns
// without waiting on the network. Subscribers whose buffer is full are closed
// and dropped.
func (h *Hub) Broadcast(_ context.Context, inc models.Incentive, userID uuid.UUID, campaignName string) error {
	msg := models.IncentiveMessage{
		ID:           inc.ID,
		UserID:       userID,
		Type:         inc.Type,
		Amount:       inc.Amount,
		Currency:     inc.Currency,
		CampaignName: campaignName,
	}

	targets := h.targets(userID)
	if len(targets) == 0 {
		h.log.Debugw("no websocket subscribers", "user_id", userID)
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	dropped := 0
	for _, s := range targets {
		if !s.enqueue(data) {
			h.log.Warnf("dropping slow websocket subscriber for user %s", userID)
			h.remove(userID, s)
			s.close()
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: %d dropped", ErrSlowSubscriber, dropped)
	}
	return nil
}

// Subscribers reports the number of open connections.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.all)
	for _, set := range h.byUser {
		n += len(set)
	}
	return n
}

func (h *Hub) targets(userID uuid.UUID) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*subscriber, 0, len(h.all)+len(h.byUser[userID]))
	for s := range h.all {
		out = append(out, s)
	}
	for s := range h.byUser[userID] {
		out = append(out, s)
	}
	return out
}

func (h *Hub) add(userID uuid.UUID, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userID == uuid.Nil {
		h.all[s] = struct{}{}
		return
	}
	set, ok := h.byUser[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.byUser[userID] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) remove(userID uuid.UUID, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.all, s)
	if set, ok := h.byUser[userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.byUser, userID)
		}
	}
}

// ServeWS upgrades the request and keeps the connection registered until the
// client goes away. Text frames are echoed back.
func (h *Hub) ServeWS(ctx *gin.Context) {
	var userID uuid.UUID
	if raw := ctx.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		userID = id
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.Errorf("failed to upgrade to websocket: %v", err)
		return
	}
	s := newSubscriber(conn)
	h.add(userID, s)
	go s.writePump(h.log)
	h.log.Debugw("websocket connection established", "user_id", userID)

	defer func() {
		h.remove(userID, s)
		s.close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			h.log.Debugw("websocket connection closed", "user_id", userID, "err", err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if !s.enqueue(data) {
			return
		}
	}
}
