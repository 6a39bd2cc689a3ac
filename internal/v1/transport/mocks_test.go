package transport

import (
	"sync"
	"time"

	"github.com/jobwars/server/internal/v1/session"
)

// MockConnection implements wsConnection
type MockConnection struct {
	ReadMessageFunc  func() (int, []byte, error)
	WriteMessageFunc func(int, []byte) error
	CloseFunc        func() error
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	if m.ReadMessageFunc != nil {
		return m.ReadMessageFunc()
	}
	return 0, nil, nil
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	if m.WriteMessageFunc != nil {
		return m.WriteMessageFunc(messageType, data)
	}
	return nil
}

func (m *MockConnection) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockConnection) SetWriteDeadline(_ time.Time) error {
	return nil
}

// recordingSessions implements SessionHandler and records every event.
type recordingSessions struct {
	mu          sync.Mutex
	connects    []session.Conn
	frames      [][]byte
	disconnects []session.Conn
}

func (s *recordingSessions) Connect(conn session.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects = append(s.connects, conn)
}

func (s *recordingSessions) HandleFrame(_ session.Conn, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(raw))
	copy(buf, raw)
	s.frames = append(s.frames, buf)
}

func (s *recordingSessions) Disconnect(conn session.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects = append(s.disconnects, conn)
}

func (s *recordingSessions) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *recordingSessions) disconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.disconnects)
}
