package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/marketman/internal/model"
)

const (
	// writeWait は1書き込みの許容時間。
	writeWait = 10 * time.Second
	// sendBufferSize はクライアントごとの送信キュー長。
	// キューが溢れた場合、メッセージは破棄される（ベストエフォート配信）。
	sendBufferSize = 64
	// maxMessageSize は受信メッセージの最大バイト数。
	maxMessageSize = 64 * 1024
)

// client は接続中の1クライアントを表す。
type client struct {
	userID string
	role   model.UserRole
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Hub はユーザーIDとWebSocket接続の対応表を管理し、イベントを配信する。
// 対応表はプロセスローカルで、配信はベストエフォート。
// 同一ユーザーの再登録は古い接続を置き換える。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client

	onCountChange func(count int)
}

// NewHub はHubを生成する。
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*client)}
}

// OnClientCountChange は接続数が変化するたびに呼ばれるコールバックを設定する。
// メトリクスのゲージ更新に使用する。接続受付開始前に設定すること。
func (h *Hub) OnClientCountChange(fn func(count int)) {
	h.onCountChange = fn
}

func (h *Hub) notifyCountChange() {
	if h.onCountChange != nil {
		h.onCountChange(h.ClientCount())
	}
}

// ClientCount は接続中のクライアント数を返す。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsConnected は指定ユーザーが接続中かどうかを返す。
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// register はクライアントを登録する。既存接続があれば置き換える。
func (h *Hub) register(c *client) {
	h.mu.Lock()
	old, ok := h.clients[c.userID]
	h.clients[c.userID] = c
	h.mu.Unlock()

	if ok {
		old.close()
	}
	h.notifyCountChange()
	slog.Info("websocket client registered",
		slog.String("user_id", c.userID),
	)
}

// unregister はクライアントの登録を解除する。
// 置き換え済みの接続は対応表から外さない。
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if current, ok := h.clients[c.userID]; ok && current == c {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()
	c.close()
	h.notifyCountChange()
}

// SendToUser は指定ユーザーへイベントを配信する。
// 未接続またはキュー溢れの場合はfalseを返す（配信はベストエフォート）。
func (h *Hub) SendToUser(userID, event string, data interface{}) bool {
	h.mu.RLock()
	c, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return h.enqueue(c, event, data)
}

// Broadcast は全接続クライアントへイベントを配信する。
// exceptUserIDが空でない場合、そのユーザーは除外する。
func (h *Hub) Broadcast(event string, data interface{}, exceptUserID string) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		if id == exceptUserID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, event, data)
	}
}

func (h *Hub) enqueue(c *client, event string, data interface{}) bool {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to marshal websocket payload",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return false
	}
	msg, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		// キュー溢れ。切断が近いクライアントとみなして破棄する。
		slog.Warn("websocket send queue full, dropping message",
			slog.String("user_id", c.userID),
			slog.String("event", event),
		)
		return false
	}
}

// HandleConnection はアップグレード済みのWebSocket接続を処理する。
// 認証済みクレームのユーザーIDで接続を登録し、切断まで読み取りループを回す。
func (h *Hub) HandleConnection(ctx context.Context, conn *websocket.Conn, userID string, role model.UserRole) {
	c := &client{
		userID: userID,
		role:   role,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()

	conn.SetReadLimit(maxMessageSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read error",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			slog.Warn("invalid websocket message",
				slog.String("user_id", userID),
			)
			continue
		}
		h.dispatch(c, &env)
	}
}

// dispatch はクライアントイベントをサーバーイベントへ変換して配信する。
func (h *Hub) dispatch(c *client, env *Envelope) {
	switch env.Event {
	case EventRegister:
		// 接続時に認証済みユーザーIDで登録済み。追加処理は不要。

	case EventPing:
		h.SendToUser(c.userID, EventPong, map[string]int64{"ts": time.Now().UnixMilli()})

	case EventPrivateMessage:
		var p PrivateMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		p.SenderID = c.userID
		h.SendToUser(p.To, EventReceivePrivateMessage, p)

	case EventBroadcastMessage:
		var p BroadcastPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		p.SenderID = c.userID
		h.Broadcast(EventReceiveBroadcast, p, c.userID)

	case EventNotifyUser:
		var p NotifyPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		h.SendToUser(p.UserID, EventNotification, p)

	case EventAdminBroadcast:
		if c.role != model.UserRoleAdmin {
			slog.Warn("admin_broadcast rejected for non-admin",
				slog.String("user_id", c.userID),
			)
			return
		}
		var p BroadcastPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		h.Broadcast(EventSystemMessage, p, "")

	case EventBatchEmit:
		var p BatchEmitPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		for _, userID := range p.Users {
			h.SendToUser(userID, p.Event, p.Data)
		}

	default:
		slog.Warn("unknown websocket event",
			slog.String("user_id", c.userID),
			slog.String("event", env.Event),
		)
	}
}

// writePump は送信キューのメッセージを接続へ書き込む。
func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		}
	}
}
