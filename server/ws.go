package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10

	// DefaultPush websocket 指标推送间隔
	DefaultPush = time.Second
)

// hub 管理 websocket 连接，每个连接一把写锁
type hub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]*sync.Mutex
	logger   *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
		logger:  logger,
	}
}

// ws 连上后立即推一次当前指标，之后由 hub.run 定期推送
func (s *Server) ws(c *gin.Context) {
	conn, err := s.hub.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	writeMu := s.hub.add(conn)
	_ = s.hub.write(conn, writeMu, websocket.TextMessage, mustJSON(s.snapshot()))

	go s.hub.serve(conn, writeMu, s.snapshot)
}

func (h *hub) add(conn *websocket.Conn) *sync.Mutex {
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	writeMu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = writeMu
	h.mu.Unlock()
	return writeMu
}

// serve 读循环：处理 ping/pong 和客户端的 {"type":"snapshot_request"}
func (h *hub) serve(conn *websocket.Conn, writeMu *sync.Mutex, snapshot func() Status) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := h.write(conn, writeMu, websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()
	defer close(done)
	defer h.remove(conn)

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		var req struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			continue
		}
		if req.Type == "snapshot_request" {
			_ = h.write(conn, writeMu, websocket.TextMessage, mustJSON(snapshot()))
		}
	}
}

// run 定期广播，直到 ctx 结束
func (h *hub) run(ctx context.Context, every time.Duration, snapshot func() Status) {
	if every <= 0 {
		every = DefaultPush
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			if h.count() > 0 {
				h.broadcast(mustJSON(snapshot()))
			}
		}
	}
}

type client struct {
	conn    *websocket.Conn
	writeMu *sync.Mutex
}

// snapshotClients 复制连接表，写操作在锁外进行，慢客户端不会卡住 add/count
func (h *hub) snapshotClients() []client {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := make([]client, 0, len(h.clients))
	for conn, writeMu := range h.clients {
		clients = append(clients, client{conn: conn, writeMu: writeMu})
	}
	return clients
}

func (h *hub) broadcast(payload []byte) {
	for _, c := range h.snapshotClients() {
		if err := h.write(c.conn, c.writeMu, websocket.TextMessage, payload); err != nil {
			h.remove(c.conn)
		}
	}
}

func (h *hub) write(conn *websocket.Conn, writeMu *sync.Mutex, kind int, payload []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(kind, payload)
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *hub) closeAll() {
	for _, c := range h.snapshotClients() {
		h.remove(c.conn)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"error"}`)
	}
	return data
}
