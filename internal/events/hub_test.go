package events

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hub := NewHub(logger)
	hub.Start()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/reports", hub.HandleWebSocket)
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		hub.Stop()
		server.Close()
	})
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/reports" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastsCompletedReport(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.ParseSucceeded(&domain.ApkReport{
		ID:          "report-1",
		FileName:    "app.apk",
		PackageName: "com.example.app",
		VersionName: "2.3",
		RiskLevel:   "LOW",
	}, 1500*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, EventReportCompleted, evt.Type)
	assert.Equal(t, "report-1", evt.ReportID)
	assert.Equal(t, "com.example.app", evt.PackageName)
	assert.Equal(t, int64(1500), evt.DurationMs)
	assert.NotZero(t, evt.Timestamp)
}

func TestHub_PackageFilter(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "?package=com.example.wanted")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.ParseSucceeded(&domain.ApkReport{ID: "other", PackageName: "com.example.other"}, time.Millisecond)
	hub.ParseSucceeded(&domain.ApkReport{ID: "wanted", PackageName: "com.example.wanted"}, time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "wanted", evt.ReportID)
}

func TestHub_BroadcastsFailure(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.ParseFailed("broken.apk", errors.New("not a valid zip"), 20*time.Millisecond)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, EventReportFailed, evt.Type)
	assert.Equal(t, "broken.apk", evt.FileName)
	assert.Equal(t, "not a valid zip", evt.Error)
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hub := NewHub(logger)

	// 未启动时通道写满后直接丢弃
	assert.NotPanics(t, func() {
		for i := 0; i < 200; i++ {
			hub.Publish(Event{Type: EventReportCompleted, FileName: "app.apk"})
		}
	})
}
