package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fredcamaral/texdeck/internal/domain/entities"
	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum size of control chatter after the deck request
	maxMessageSize = 512

	// Outbound frames buffered ahead of the writer
	sendBuffer = 64
)

// createUpgrader creates a WebSocket upgrader with origin validation
func (s *Server) createUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return s.isValidOrigin(r)
		},
	}
}

// frame is one outbound WebSocket message
type frame struct {
	messageType int
	data        []byte
}

// streamError is the last text frame of a failed stream
type streamError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// streamClient owns one /ws/ppt connection. Only writePump writes to conn.
type streamClient struct {
	id     string
	conn   *websocket.Conn
	send   chan frame
	done   chan struct{}
	cancel context.CancelFunc
	logger *HTTPLogger
}

// handleProgressStream accepts one DeckRequest, streams progress events as
// JSON text frames and finishes with the document as a binary frame
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	format, err := entities.ParseOutputFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	upgrader := s.createUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}

	if m := s.getMonitor(); m != nil {
		m.RecordStreamConnection()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &streamClient{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan frame, sendBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
		logger: s.logger,
	}

	s.streams.Register(client.id, cancel)
	defer s.streams.Unregister(client.id)

	req, err := client.readRequest(s.config.Server.GetMaxRequestBytes())
	if err != nil {
		s.logger.Warn("Stream %s: %v", client.id, err)
		client.closeWith(websocket.CloseUnsupportedData, "invalid deck request")
		return
	}

	go client.writePump()
	go client.readPump()

	deck, err := s.decks.Generate(ctx, req, format, client.progress)
	if err != nil {
		client.enqueue(client.errorFrame(err))
		s.logger.Error("Stream %s generation failed: %v", client.id, err)
	} else {
		client.enqueue(frame{messageType: websocket.BinaryMessage, data: deck.Data})
		s.logger.Info("Stream %s delivered deck %s (%d bytes)", client.id, deck.ID, len(deck.Data))
	}

	close(client.send)
	<-client.done
}

// readRequest reads the single deck request that opens a stream
func (c *streamClient) readRequest(limit int64) (*entities.DeckRequest, error) {
	c.conn.SetReadLimit(limit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	_, message, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var req entities.DeckRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return nil, &entities.ValidationError{Field: "body", Reason: err.Error()}
	}
	return &req, nil
}

// progress forwards generation events to the peer
func (c *streamClient) progress(event ports.ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("Encoding progress event: %v", err)
		return
	}
	c.enqueue(frame{messageType: websocket.TextMessage, data: data})
}

// enqueue hands a frame to the writer; it gives up once the writer is gone
func (c *streamClient) enqueue(f frame) bool {
	select {
	case c.send <- f:
		return true
	case <-c.done:
		return false
	}
}

func (c *streamClient) errorFrame(err error) frame {
	message := generationFailedMessage
	var validationErr *entities.ValidationError
	if errors.As(err, &validationErr) {
		message = validationErr.Error()
	}

	data, _ := json.Marshal(streamError{Type: "error", Message: message})
	return frame{messageType: websocket.TextMessage, data: data}
}

// closeWith sends a close frame and drops the connection. Only valid before writePump starts.
func (c *streamClient) closeWith(code int, reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	_ = c.conn.Close()
}

// readPump watches for the peer going away and cancels generation if it does
func (c *streamClient) readPump() {
	defer c.cancel()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Stream %s read ended: %v", c.id, err)
			}
			return
		}
	}
}

// writePump pumps frames to the WebSocket connection
func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
		c.cancel()
	}()

	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
				c.logger.Debug("Stream %s write failed: %v", c.id, err)
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

// isValidOrigin validates WebSocket connection origins based on environment
func (s *Server) isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Same-origin and non-browser clients send none
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		s.logger.Warn("WebSocket connection rejected: invalid origin URL %q: %v", origin, err)
		return false
	}

	if s.config.Server.IsDevelopment() {
		return isDevelopmentOrigin(originURL)
	}

	return s.isProductionOrigin(originURL)
}

// isDevelopmentOrigin allows localhost and private network addresses
func isDevelopmentOrigin(originURL *url.URL) bool {
	hostname := originURL.Hostname()
	if hostname == "localhost" {
		return true
	}

	ip := net.ParseIP(hostname)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified())
}

// isProductionOrigin checks the origin against the configured CORS whitelist
func (s *Server) isProductionOrigin(originURL *url.URL) bool {
	for _, allowedOrigin := range s.config.Server.GetCORSOrigins() {
		if allowedOrigin == "*" || originURL.String() == allowedOrigin {
			return true
		}

		// Wildcard subdomains (*.example.com)
		if strings.HasPrefix(allowedOrigin, "*.") {
			domain := strings.TrimPrefix(allowedOrigin, "*")
			if strings.HasSuffix(originURL.Hostname(), domain) {
				return true
			}
		}
	}

	s.logger.Warn("WebSocket connection rejected: origin %s not in whitelist %v",
		originURL.String(), s.config.Server.GetCORSOrigins())
	return false
}
