// Package streamcamera はブラウザから WebSocket で送られるカメラ映像を CameraProvider として提供します。
//
// ブラウザは getUserMedia で取得した映像を JPEG のバイナリメッセージとして送信します。
// 権限が拒否された場合は {"type":"error"} のテキストメッセージを送信します。
package streamcamera

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"academy_backend/internal/feature/attendance/usecase"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// ControlMessage はテキストで送受信する制御メッセージです。
type ControlMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

const (
	messageTypeError = "error"
	messageTypeStop  = "stop"
)

var errStreamClosed = errors.New("camera stream disconnected")

// stream は1セッション分の接続と最新フレームです。
type stream struct {
	conn *websocket.Conn

	mu     sync.Mutex
	frame  []byte
	denied error

	ready     chan struct{} // 最初のフレームまたは拒否で close
	readyOnce sync.Once
	done      chan struct{} // 接続終了で close
	doneOnce  sync.Once
	stopOnce  sync.Once
}

func newStream(conn *websocket.Conn) *stream {
	return &stream{conn: conn, ready: make(chan struct{}), done: make(chan struct{})}
}

func (s *stream) setFrame(b []byte) {
	s.mu.Lock()
	s.frame = b
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *stream) deny(reason string) {
	s.mu.Lock()
	if reason == "" {
		reason = "permission denied"
	}
	s.denied = fmt.Errorf("%w: %s", usecase.ErrCameraUnavailable, reason)
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *stream) latest() ([]byte, error) {
	select {
	case <-s.done:
		return nil, fmt.Errorf("%w: %v", usecase.ErrCameraUnavailable, errStreamClosed)
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied != nil {
		return nil, s.denied
	}
	if len(s.frame) == 0 {
		return nil, usecase.ErrFrameNotReady
	}
	return s.frame, nil
}

func (s *stream) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// stop はブラウザに停止を通知して接続を閉じます。何度呼んでも安全です。
func (s *stream) stop() {
	s.stopOnce.Do(func() {
		msg, _ := json.Marshal(ControlMessage{Type: messageTypeStop})
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			slog.Debug("failed to send stop message", "error", err)
		}
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "camera stopped"),
			time.Now().Add(writeTimeout))
		if err := s.conn.Close(); err != nil {
			slog.Debug("failed to close websocket", "error", err)
		}
		s.finish()
	})
}

// Hub はセッションIDごとに最新のブラウザストリームを保持します。
type Hub struct {
	mu       sync.Mutex
	streams  map[string]*stream
	changed  chan struct{}
	upgrader websocket.Upgrader
}

// NewHub はHubの新しいインスタンスを生成します。
// checkOrigin が nil の場合は全てのオリジンを許可します（CORS は router 側で制御します）。
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		streams: make(map[string]*stream),
		changed: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Serve は接続を WebSocket にアップグレードし、切断までフレームを受信します。
// 同じセッションに新しい接続が来た場合、古い接続は閉じられます。
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	conn.SetReadLimit(usecase.MaxImageSize)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	s := newStream(conn)
	h.register(sessionID, s)
	defer h.unregister(sessionID, s)

	slog.Info("camera stream connected", "session_id", sessionID, "remote_addr", r.RemoteAddr)

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("camera stream read error", "session_id", sessionID, "error", err)
			}
			return nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch kind {
		case websocket.BinaryMessage:
			s.setFrame(msg)
		case websocket.TextMessage:
			var ctrl ControlMessage
			if err := json.Unmarshal(msg, &ctrl); err != nil {
				slog.Warn("invalid control message", "session_id", sessionID, "error", err)
				continue
			}
			if ctrl.Type == messageTypeError {
				slog.Warn("camera permission denied by client", "session_id", sessionID, "message", ctrl.Message)
				s.deny(ctrl.Message)
			}
		}
	}
}

// Disconnect はセッションのストリームを閉じます。セッション終了時に呼び出します。
func (h *Hub) Disconnect(sessionID string) {
	h.mu.Lock()
	s := h.streams[sessionID]
	h.mu.Unlock()
	if s != nil {
		s.stop()
	}
}

func (h *Hub) register(sessionID string, s *stream) {
	h.mu.Lock()
	old := h.streams[sessionID]
	h.streams[sessionID] = s
	close(h.changed)
	h.changed = make(chan struct{})
	h.mu.Unlock()

	if old != nil {
		old.stop()
	}
}

func (h *Hub) unregister(sessionID string, s *stream) {
	h.mu.Lock()
	if h.streams[sessionID] == s {
		delete(h.streams, sessionID)
	}
	h.mu.Unlock()
	s.finish()
	if err := s.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		slog.Debug("failed to close websocket", "error", err)
	}
	slog.Info("camera stream disconnected", "session_id", sessionID)
}

// lookup は現在のストリームと、次の登録で close されるチャネルを返します。
func (h *Hub) lookup(sessionID string) (*stream, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.streams[sessionID], h.changed
}
