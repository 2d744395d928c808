package main

import (
	"net"
	"sync"
	"time"

	"github.com/myqueue/myqueue/internal/ipc"
	"github.com/myqueue/myqueue/internal/scheduler"
	"github.com/myqueue/myqueue/server/log"
)

// subscribers fans scheduler state-change events out to every connection
// that sent a Subscribe frame, for `myqueue watch`.
type subscribers struct {
	mu   sync.Mutex
	next int
	conn map[int]net.Conn
}

func newSubscribers() *subscribers {
	return &subscribers{conn: make(map[int]net.Conn)}
}

// handleConn registers conn as a subscriber until it is closed by the
// client or a write fails.
func (s *subscribers) handleConn(conn net.Conn) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.conn[id] = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conn, id)
		s.mu.Unlock()
		conn.Close()
	}()

	// A Subscribe connection is push-only; block here until the client
	// disconnects so the deferred cleanup runs at the right time.
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

// broadcast is installed as the scheduler's state-change callback.
func (s *subscribers) broadcast(c scheduler.StateChange) {
	event := ipc.SubscribeEvent{
		TaskID:    c.TaskID,
		OldStatus: c.Old.String(),
		NewStatus: c.New.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.conn))
	for _, conn := range s.conn {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if err := ipc.WriteFrame(conn, ipc.MsgSubscribe, event); err != nil {
			log.Warn("failed to push watch event, dropping subscriber", "error", err)
			conn.Close() // unblocks handleConn's Read, which unregisters it
		}
	}
}
