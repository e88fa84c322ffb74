// Package websocket 推送索引进度的 WebSocket 连接中心
package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/convomemory/recall/internal/domain/events"
	"github.com/convomemory/recall/internal/infrastructure/config"
	"github.com/convomemory/recall/internal/infrastructure/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Hub WebSocket 连接管理中心
// 连接集合只在 Run 协程中修改
type Hub struct {
	clients    map[*Connection]bool
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
	count      int
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// Connection 单个 WebSocket 连接
type Connection struct {
	conn *websocket.Conn
	Send chan []byte
}

// NewHub 创建 Hub
func NewHub(cfg *config.WebSocketConfig) *Hub {
	readSize, writeSize := 1024, 1024
	if cfg != nil {
		if cfg.ReadBufferSize > 0 {
			readSize = cfg.ReadBufferSize
		}
		if cfg.WriteBufferSize > 0 {
			writeSize = cfg.WriteBufferSize
		}
	}
	return &Hub{
		clients:    make(map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readSize,
			WriteBufferSize: writeSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // 只监听本机
			},
		},
		logger: log.NewModuleLogger("websocket", "hub"),
	}
}

// Run 运行 Hub（需要在 goroutine 中运行）
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for conn := range h.clients {
				delete(h.clients, conn)
				close(conn.Send)
			}
			h.setCount(0)
			return

		case conn := <-h.register:
			h.clients[conn] = true
			h.setCount(len(h.clients))

		case conn := <-h.unregister:
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				close(conn.Send)
				h.setCount(len(h.clients))
			}

		case data := <-h.broadcast:
			for conn := range h.clients {
				select {
				case conn.Send <- data:
				default:
					// 慢连接直接断开
					delete(h.clients, conn)
					close(conn.Send)
				}
			}
			h.setCount(len(h.clients))
		}
	}
}

// Start 启动 Hub（启动后台 goroutine）
func (h *Hub) Start() {
	go h.Run()
}

// Stop 关闭所有连接并停止 Hub
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Broadcast 向所有连接广播，Hub 已停止时丢弃
func (h *Hub) Broadcast(data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- jsonData:
	case <-h.done:
	}
	return nil
}

// HandleEvent 将索引进度事件转发给所有连接
func (h *Hub) HandleEvent(event events.Event) error {
	return h.Broadcast(event)
}

// ServeWS 升级 HTTP 连接并开始推送
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", "error", err)
		return
	}
	conn := &Connection{conn: ws, Send: make(chan []byte, sendBuffer)}

	select {
	case h.register <- conn:
	case <-h.done:
		_ = ws.Close()
		return
	}
	h.logger.Debug("Client connected", "remote", r.RemoteAddr)

	go h.writePump(conn)
	go h.readPump(conn)
}

// readPump 只处理控制帧，客户端消息被忽略
func (h *Hub) readPump(c *Connection) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("Connection read error", "error", err)
			}
			return
		}
	}
}

// writePump 发送广播消息与心跳
func (h *Hub) writePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
