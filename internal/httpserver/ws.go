package httpserver

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/imbanker-naver/cursor-pjt/internal/game"
	"github.com/imbanker-naver/cursor-pjt/internal/protocol"
)

const (
	wsReadLimit    = 4 << 10
	wsPongWait     = 60 * time.Second
	wsPingEvery    = 25 * time.Second
	wsWriteWait    = 10 * time.Second
	wsSendBuffered = 64
)

// subscriber is one WebSocket connection watching a round.
type subscriber struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newSubscriber() *subscriber {
	return &subscriber{send: make(chan []byte, wsSendBuffered), done: make(chan struct{})}
}

func (c *subscriber) close() { c.once.Do(func() { close(c.done) }) }

// offer queues b without blocking; a full buffer drops the subscriber.
func (c *subscriber) offer(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		c.close()
		return false
	}
}

// hub fans engine events out to the subscribers of each round.
type hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *hub) subscribe(id string, c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[id]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[id] = set
	}
	set[c] = struct{}{}
}

func (h *hub) unsubscribe(id string, c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[id]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

func (h *hub) count(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[id])
}

func (h *hub) publish(id string, ev game.Event) {
	h.mu.RLock()
	set := h.subs[id]
	if len(set) == 0 {
		h.mu.RUnlock()
		return
	}
	targets := make([]*subscriber, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	b, err := protocol.EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("gameId", id).Msg("encode event")
		return
	}
	for _, c := range targets {
		if !c.offer(b) {
			log.Warn().Str("gameId", id).Msg("dropping slow subscriber")
		}
	}
}

// closeRound disconnects everyone watching id.
func (h *hub) closeRound(id string) {
	h.mu.Lock()
	set := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	for c := range set {
		c.close()
	}
}

// handleWS streams round events and accepts pointer/control messages.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	e, ok := s.round(w, r)
	if !ok {
		return
	}
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade")
		return
	}

	id := chi.URLParam(r, "id")
	c := newSubscriber()
	// The initial state goes out before any event produced after it.
	e.Observe(func(snap game.Snapshot) {
		if b, err := protocol.Encode(protocol.MsgState, snap); err == nil {
			c.offer(b)
		}
		s.hub.subscribe(id, c)
	})
	defer s.hub.unsubscribe(id, c)
	defer c.close()

	go writePump(conn, c)
	s.readPump(conn, c, e)
}

// checkOrigin accepts same-origin requests, tools that send no Origin, and
// the configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// readPump applies client messages until the connection fails.
func (s *Server) readPump(conn *websocket.Conn, c *subscriber, e *game.Engine) {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("gameId", e.ID()).Msg("ws read")
			}
			return
		}
		if err := dispatch(e, msg); err != nil {
			_, code := errorStatus(err)
			if b, encErr := protocol.Encode(protocol.MsgError, protocol.Error{Error: code}); encErr == nil {
				c.offer(b)
			}
		}
	}
}

var errBadMessage = errors.New("malformed message")

// dispatch decodes one client envelope and applies it to the round.
func dispatch(e *game.Engine, msg []byte) error {
	env, err := protocol.DecodeEnvelope(msg)
	if err != nil {
		return errBadMessage
	}
	switch env.T {
	case protocol.MsgPointer:
		p, err := protocol.DecodePayload[protocol.Pointer](env)
		if err != nil {
			return errBadMessage
		}
		return applyPointer(e, p)
	case protocol.MsgStart:
		return e.Start()
	case protocol.MsgReset:
		return e.Reset()
	case protocol.MsgAbort:
		return e.Abort()
	default:
		return errBadMessage
	}
}

// writePump is the only writer on conn: queued messages plus keepalive pings.
func writePump(conn *websocket.Conn, c *subscriber) {
	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()
	defer conn.Close()

	for {
		select {
		case <-c.done:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case b := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.close()
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
