package http

import (
	"context"
	"sync"
)

// Connection is a live progress stream
type Connection struct {
	ID     string
	cancel context.CancelFunc
}

// ConnectionManager tracks progress streams so shutdown can abort them.
// Hijacked connections are invisible to http.Server.Shutdown.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
	}
}

// Register adds a stream; its cancel func is called by CloseAll
func (cm *ConnectionManager) Register(id string, cancel context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[id] = &Connection{ID: id, cancel: cancel}
}

// Unregister removes a stream without cancelling it
func (cm *ConnectionManager) Unregister(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	delete(cm.connections, id)
}

// Count returns the number of live streams
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return len(cm.connections)
}

// CloseAll cancels and forgets every stream
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for id, conn := range cm.connections {
		if conn.cancel != nil {
			conn.cancel()
		}
		delete(cm.connections, id)
	}
}
