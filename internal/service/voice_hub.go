package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"mock_interview_backend/internal/config"
	"mock_interview_backend/internal/interview"
	"mock_interview_backend/pkg/logger"
	"mock_interview_backend/pkg/monitoring"
	"mock_interview_backend/pkg/security"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	shardCount      = 16
	presenceTTL     = 2 * time.Minute
	outboxSize      = 1024
	clientQueueSize = 256
)

const (
	FrameProviderEvent = "PROVIDER_EVENT"
	MessageCommand     = "COMMAND"

	CommandConnect    = "connect"
	CommandDisconnect = "disconnect"
	CommandMute       = "mute"
	CommandUnmute     = "unmute"
)

var ErrNoVoiceClient = errors.New("no browser voice client attached to session")

// WSMessage 下行消息：会话通知或语音命令
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// VoiceFrame 浏览器上行消息，转发语音 SDK 的事件
type VoiceFrame struct {
	Type  string                   `json:"type"`
	Event *interview.ProviderEvent `json:"event,omitempty"`
}

type VoiceCommand struct {
	Command   string                 `json:"command"`
	Agent     *interview.AgentConfig `json:"agent,omitempty"`
	Variables map[string]string      `json:"variables,omitempty"`
}

// EventHandler 接收浏览器转发的语音事件
type EventHandler func(sessionID string, ev interview.ProviderEvent)

type VoiceClient struct {
	Hub       *VoiceHub
	Conn      *websocket.Conn
	Send      chan []byte
	SessionID string
	UserID    uint
	Limiter   *rate.Limiter
	closeOnce sync.Once
}

func (c *VoiceClient) closeSend() {
	c.closeOnce.Do(func() { close(c.Send) })
}

func (c *VoiceClient) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.ctx.Done():
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(c.Hub.maxMessage)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.Hub.log.Warn("Voice socket unexpected close", zap.Error(err), zap.String("sessionId", c.SessionID))
			}
			break
		}

		var frame VoiceFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.Hub.log.Debug("Malformed voice frame", zap.Error(err), zap.String("sessionId", c.SessionID))
			continue
		}
		if frame.Type != FrameProviderEvent || frame.Event == nil {
			continue
		}

		// 只限流中间转写与说话状态，生命周期事件和最终转写必须送达
		if throttled(*frame.Event) && !c.Limiter.Allow() {
			monitoring.VoiceEventCounter.WithLabelValues("dropped", "in").Inc()
			continue
		}

		monitoring.VoiceEventCounter.WithLabelValues(string(frame.Event.Type), "in").Inc()
		c.Hub.dispatch(c.SessionID, *frame.Event)
	}
}

func throttled(ev interview.ProviderEvent) bool {
	switch ev.Type {
	case interview.EventSpeechStart, interview.EventSpeechEnd:
		return true
	case interview.EventMessage:
		return ev.Message != nil && ev.Message.TranscriptType == interview.TranscriptPartial
	}
	return false
}

func (c *VoiceClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type voiceShard struct {
	clients map[string]map[*VoiceClient]struct{}
	mu      sync.RWMutex
}

// PubSubMessage 多实例之间转发的下行消息
type PubSubMessage struct {
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}

// VoiceHub 会话维度的浏览器语音桥。一个会话可有多个标签页连接，命令与通知广播给全部连接
type VoiceHub struct {
	shards     [shardCount]*voiceShard
	register   chan *VoiceClient
	unregister chan *VoiceClient
	outbox     chan PubSubMessage
	Redis      *redis.Client
	channel    string
	upgrader   websocket.Upgrader
	maxMessage int64
	eventRate  rate.Limit
	eventBurst int
	log        *zap.Logger

	handlerMu sync.RWMutex
	handler   EventHandler

	ctx    context.Context
	cancel context.CancelFunc
}

func NewVoiceHub(rdb *redis.Client, cfg config.VoiceConfig) *VoiceHub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &VoiceHub{
		register:   make(chan *VoiceClient),
		unregister: make(chan *VoiceClient),
		outbox:     make(chan PubSubMessage, outboxSize),
		Redis:      rdb,
		channel:    cfg.RedisChannel,
		maxMessage: cfg.MaxMessageBytes,
		eventRate:  rate.Limit(cfg.EventsPerSecond),
		eventBurst: cfg.EventBurst,
		log:        logger.For("voice"),
		ctx:        ctx,
		cancel:     cancel,
	}
	if h.channel == "" {
		h.channel = "interview_channel"
	}
	if h.maxMessage <= 0 {
		h.maxMessage = 64 * 1024
	}
	if h.eventRate <= 0 {
		h.eventRate = 50
	}
	if h.eventBurst <= 0 {
		h.eventBurst = 100
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     security.OriginAllowed(cfg.AllowedOrigins),
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &voiceShard{clients: make(map[string]map[*VoiceClient]struct{})}
	}
	return h
}

func (h *VoiceHub) SetEventHandler(fn EventHandler) {
	h.handlerMu.Lock()
	h.handler = fn
	h.handlerMu.Unlock()
}

func (h *VoiceHub) dispatch(sessionID string, ev interview.ProviderEvent) {
	h.handlerMu.RLock()
	fn := h.handler
	h.handlerMu.RUnlock()
	if fn == nil {
		return
	}
	fn(sessionID, ev)
}

func (h *VoiceHub) getShard(sessionID string) *voiceShard {
	f := fnv.New32a()
	f.Write([]byte(sessionID))
	return h.shards[f.Sum32()%shardCount]
}

func presenceKey(sessionID string) string {
	return fmt.Sprintf("interview:voice:%s", sessionID)
}

// Run 处理连接注册与 Redis 转发，Stop 后返回
func (h *VoiceHub) Run() {
	if h.Redis != nil {
		pubsub := h.Redis.Subscribe(h.ctx, h.channel)
		defer pubsub.Close()
		go func() {
			for msg := range pubsub.Channel() {
				var psMsg PubSubMessage
				if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
					h.log.Error("PubSub unmarshal error", zap.Error(err))
					continue
				}
				h.pushToLocal(psMsg.SessionID, psMsg.Payload)
			}
		}()
		go h.publishLoop()
	}

	heartbeat := time.NewTicker(time.Minute)
	defer heartbeat.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			s := h.getShard(client.SessionID)
			s.mu.Lock()
			set, ok := s.clients[client.SessionID]
			if !ok {
				set = make(map[*VoiceClient]struct{})
				s.clients[client.SessionID] = set
			}
			set[client] = struct{}{}
			s.mu.Unlock()
			monitoring.VoiceConnections.Inc()
			if h.Redis != nil {
				h.Redis.Set(h.ctx, presenceKey(client.SessionID), client.UserID, presenceTTL)
			}
			h.log.Debug("Voice client attached", zap.String("sessionId", client.SessionID))

		case client := <-h.unregister:
			s := h.getShard(client.SessionID)
			s.mu.Lock()
			remaining := -1
			if set, ok := s.clients[client.SessionID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					client.closeSend()
					monitoring.VoiceConnections.Dec()
				}
				remaining = len(set)
				if remaining == 0 {
					delete(s.clients, client.SessionID)
				}
			}
			s.mu.Unlock()
			if remaining == 0 && h.Redis != nil {
				h.Redis.Del(h.ctx, presenceKey(client.SessionID))
			}

		case <-heartbeat.C:
			h.refreshPresence()
		}
	}
}

func (h *VoiceHub) publishLoop() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg := <-h.outbox:
			payload, _ := json.Marshal(msg)
			if err := h.Redis.Publish(h.ctx, h.channel, payload).Err(); err != nil {
				h.log.Error("Redis publish failed", zap.Error(err), zap.String("sessionId", msg.SessionID))
			}
		}
	}
}

// refreshPresence 为本实例上的会话连接续期
func (h *VoiceHub) refreshPresence() {
	if h.Redis == nil {
		return
	}
	pipe := h.Redis.Pipeline()
	count := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.RLock()
		for sessionID := range s.clients {
			pipe.Expire(h.ctx, presenceKey(sessionID), presenceTTL)
			count++
		}
		s.mu.RUnlock()
	}
	if count > 0 {
		if _, err := pipe.Exec(h.ctx); err != nil {
			h.log.Error("Redis pipeline error", zap.Error(err))
		}
	}
}

// Stop 关闭所有连接并清理在线状态
func (h *VoiceHub) Stop() {
	var sessions []string
	closed := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.Lock()
		for sessionID, set := range s.clients {
			sessions = append(sessions, sessionID)
			for client := range set {
				client.closeSend()
				closed++
			}
			delete(s.clients, sessionID)
		}
		s.mu.Unlock()
	}

	if len(sessions) > 0 && h.Redis != nil {
		pipe := h.Redis.Pipeline()
		for _, id := range sessions {
			pipe.Del(context.Background(), presenceKey(id))
		}
		pipe.Exec(context.Background())
	}
	h.cancel()

	monitoring.VoiceConnections.Set(0)
	h.log.Info("VoiceHub stopped", zap.Int("closedConnections", closed))
}

func (h *VoiceHub) localClients(sessionID string) int {
	s := h.getShard(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[sessionID])
}

// HasClient 本地或其他实例上存在该会话的浏览器连接
func (h *VoiceHub) HasClient(ctx context.Context, sessionID string) bool {
	if h.localClients(sessionID) > 0 {
		return true
	}
	if h.Redis == nil {
		return false
	}
	n, err := h.Redis.Exists(ctx, presenceKey(sessionID)).Result()
	return err == nil && n > 0
}

// PushToSession 不阻塞；多实例时经 Redis 转发
func (h *VoiceHub) PushToSession(sessionID string, msg WSMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	monitoring.VoiceEventCounter.WithLabelValues(msg.Type, "out").Inc()

	if h.Redis == nil {
		h.pushToLocal(sessionID, payload)
		return nil
	}
	select {
	case h.outbox <- PubSubMessage{SessionID: sessionID, Payload: payload}:
		return nil
	default:
		h.log.Warn("Voice outbox full, dropping message", zap.String("sessionId", sessionID), zap.String("type", msg.Type))
		return errors.New("voice outbox full")
	}
}

func (h *VoiceHub) pushToLocal(sessionID string, payload []byte) {
	s := h.getShard(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

// Publish 实现 interview.Notifier
func (h *VoiceHub) Publish(sessionID string, ev interview.SessionEvent) {
	h.PushToSession(sessionID, WSMessage{Type: ev.Type, Data: ev.Data})
}

// ForSession 返回绑定到该会话浏览器连接的语音控制端
func (h *VoiceHub) ForSession(sessionID string) interview.VoiceProvider {
	return &sessionVoice{hub: h, sessionID: sessionID}
}

func (h *VoiceHub) ServeWs(w http.ResponseWriter, r *http.Request, sessionID string, userID uint) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade failed", zap.Error(err), zap.String("sessionId", sessionID))
		return
	}
	client := &VoiceClient{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, clientQueueSize),
		SessionID: sessionID,
		UserID:    userID,
		Limiter:   rate.NewLimiter(h.eventRate, h.eventBurst),
	}
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

type sessionVoice struct {
	hub       *VoiceHub
	sessionID string
}

func (v *sessionVoice) command(ctx context.Context, cmd VoiceCommand, required bool) error {
	if !v.hub.HasClient(ctx, v.sessionID) {
		if required {
			return ErrNoVoiceClient
		}
		return nil
	}
	return v.hub.PushToSession(v.sessionID, WSMessage{Type: MessageCommand, Data: cmd})
}

func (v *sessionVoice) Connect(ctx context.Context, agent interview.AgentConfig, variables map[string]string) error {
	return v.command(ctx, VoiceCommand{Command: CommandConnect, Agent: &agent, Variables: variables}, true)
}

func (v *sessionVoice) Disconnect(ctx context.Context) error {
	return v.command(ctx, VoiceCommand{Command: CommandDisconnect}, false)
}

func (v *sessionVoice) Mute(ctx context.Context) error {
	return v.command(ctx, VoiceCommand{Command: CommandMute}, true)
}

func (v *sessionVoice) Unmute(ctx context.Context) error {
	return v.command(ctx, VoiceCommand{Command: CommandUnmute}, true)
}
