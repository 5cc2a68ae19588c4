package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// 事件类型
const (
	EventReportCompleted = "report.completed"
	EventReportFailed    = "report.failed"
)

// Event 推送给 WebSocket 客户端的解析事件
type Event struct {
	Type        string `json:"type"`
	ReportID    string `json:"report_id,omitempty"`
	FileName    string `json:"file_name"`
	PackageName string `json:"package_name,omitempty"`
	VersionName string `json:"version_name,omitempty"`
	RiskLevel   string `json:"risk_level,omitempty"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
	Timestamp   int64  `json:"timestamp"`
}

type client struct {
	conn        *websocket.Conn
	packageName string // 为空时接收全部事件
	send        chan Event
}

func (c *client) wants(evt Event) bool {
	return c.packageName == "" || c.packageName == evt.PackageName
}

// Hub 解析事件广播中心
type Hub struct {
	logger    *logrus.Logger
	upgrader  websocket.Upgrader
	clients   map[*client]struct{}
	mu        sync.RWMutex
	broadcast chan Event
	done      chan struct{}
	stopOnce  sync.Once
}

// NewHub 创建事件广播中心
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*client]struct{}),
		broadcast: make(chan Event, 100),
		done:      make(chan struct{}),
	}
}

// Start 启动广播服务
func (h *Hub) Start() {
	go h.run()
}

// Stop 停止广播并断开所有客户端
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		for c := range h.clients {
			c.conn.Close()
		}
		h.mu.Unlock()
	})
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case evt := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(evt) {
					continue
				}
				select {
				case c.send <- evt:
				default:
					h.logger.WithField("remote", c.conn.RemoteAddr().String()).Warn("WebSocket client too slow, dropping event")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket 处理 WebSocket 连接
// GET /ws/reports?package=com.example.app
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	cl := &client{
		conn:        conn,
		packageName: c.Query("package"),
		send:        make(chan Event, 16),
	}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	h.logger.WithField("package_name", cl.packageName).Info("WebSocket client connected")

	go h.writeLoop(cl)

	// 只读取控制帧，客户端消息忽略
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).Warn("WebSocket error")
			}
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, cl)
	close(cl.send)
	h.mu.Unlock()
	conn.Close()

	h.logger.WithField("package_name", cl.packageName).Info("WebSocket client disconnected")
}

func (h *Hub) writeLoop(cl *client) {
	for evt := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := cl.conn.WriteJSON(evt); err != nil {
			h.logger.WithError(err).Warn("Failed to write to WebSocket client")
			cl.conn.Close()
			return
		}
	}
}

// Publish 投递事件，通道满时丢弃
func (h *Hub) Publish(evt Event) {
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().Unix()
	}

	select {
	case h.broadcast <- evt:
		h.logger.WithFields(logrus.Fields{
			"type":      evt.Type,
			"file_name": evt.FileName,
		}).Debug("Event broadcasted")
	default:
		h.logger.Warn("Broadcast channel is full, dropping event")
	}
}

// ParseSucceeded 广播解析完成事件
func (h *Hub) ParseSucceeded(report *domain.ApkReport, duration time.Duration) {
	h.Publish(Event{
		Type:        EventReportCompleted,
		ReportID:    report.ID,
		FileName:    report.FileName,
		PackageName: report.PackageName,
		VersionName: report.VersionName,
		RiskLevel:   report.RiskLevel,
		DurationMs:  duration.Milliseconds(),
	})
}

// ParseFailed 广播解析失败事件
func (h *Hub) ParseFailed(fileName string, err error, duration time.Duration) {
	h.Publish(Event{
		Type:       EventReportFailed,
		FileName:   fileName,
		Error:      err.Error(),
		DurationMs: duration.Milliseconds(),
	})
}
