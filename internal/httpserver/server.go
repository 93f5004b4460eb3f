// internal/httpserver/server.go
//
// HTTP server wiring for the apple game backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health".
//   - Round creation: POST /game/new (guests; an anonymous owner cookie is set).
//   - Re-attach after reload: GET /rounds/current (needs the round registry).
//   - Round endpoints under /game/{id}, gated by a per-round JWT:
//     snapshot, start/reset/abort, pointer input, WebSocket stream.
//
// Notes:
//   - The engine is the source of truth; handlers only translate requests into
//     engine calls and return the resulting snapshot.
//   - Engine events fan out to WebSocket subscribers and, for lifecycle
//     changes, to the registry (best effort, failures are logged).

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/imbanker-naver/cursor-pjt/internal/clock"
	"github.com/imbanker-naver/cursor-pjt/internal/config"
	"github.com/imbanker-naver/cursor-pjt/internal/game"
	"github.com/imbanker-naver/cursor-pjt/internal/protocol"
	"github.com/imbanker-naver/cursor-pjt/internal/registry"
	"github.com/imbanker-naver/cursor-pjt/internal/store"
)

// Server bundles router, round store, registry and WebSocket hub.
type Server struct {
	r     *chi.Mux
	store store.Store
	reg   *registry.Registry // nil when DATABASE_PATH is empty
	cfg   config.Config
	hub   *hub

	// engine dependencies; nil picks the engine defaults
	clock     clock.Clock
	randomInt game.RandomInt
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, reg *registry.Registry, cfg config.Config) *Server {
	s := &Server{r: chi.NewRouter(), store: st, reg: reg, cfg: cfg, hub: newHub()}

	// --- middleware ---
	s.r.Use(chimw.RequestID)        // add X-Request-ID
	s.r.Use(chimw.RealIP)           // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(accessLog)              // one zerolog line per request
	s.r.Use(chimw.Recoverer)        // recover from panics
	s.r.Use(jsonContentType)        // default JSON responses
	s.r.Use(cors(cfg.ClientOrigin)) // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"apple-game","endpoints":["/health","POST /game/new","GET /rounds/current","/game/{id}/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.With(chimw.Timeout(10 * time.Second)).Post("/game/new", s.handleNewGame)
	s.r.With(chimw.Timeout(10 * time.Second)).Get("/rounds/current", s.handleCurrentRound)

	// Round endpoints (round token required)
	s.r.Route("/game/{id}", func(r chi.Router) {
		r.Use(s.requireRoundToken)
		r.Get("/ws", s.handleWS) // long-lived, no handler timeout
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(10 * time.Second))
			r.Get("/", s.handleSnapshot)
			r.Post("/start", s.handleStart)
			r.Post("/reset", s.handleReset)
			r.Post("/abort", s.handleAbort)
			r.Post("/pointer", s.handlePointer)
		})
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Router exposes the internal router (useful for tests and http.Server).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// accessLog writes method, path, status, size and duration for each request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("reqId", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("dur", time.Since(start)).
			Msg("http")
	})
}

// writeError writes {"error":code} with the given status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// errorStatus maps engine contract errors to HTTP responses.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrRoundRunning):
		return http.StatusConflict, "round_running"
	case errors.Is(err, game.ErrRoundNotRunning):
		return http.StatusConflict, "round_not_running"
	case errors.Is(err, game.ErrNoSelection):
		return http.StatusConflict, "no_selection"
	case errors.Is(err, errBadPointer):
		return http.StatusBadRequest, "bad_pointer"
	case errors.Is(err, errBadMessage):
		return http.StatusBadRequest, "bad_message"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// ------------------------------ ROUNDS -------------------------------------

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Layout *game.GridLayout `json:"layout"` // board geometry in client pixels; default lattice when nil
	Start  bool             `json:"start"`  // start the countdown right away
}
type roundRes struct {
	GameID    string        `json:"gameId"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	State     game.Snapshot `json:"state"`
}

// handleNewGame creates an idle round (optionally started), records its owner,
// and returns a token scoped to it.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	var layout game.Layout = game.DefaultLayout
	if req.Layout != nil {
		if !req.Layout.Valid() {
			writeError(w, http.StatusBadRequest, "bad_layout")
			return
		}
		layout = *req.Layout
	}

	owner := s.ensureAnonID(w, r)
	e := game.New(game.Options{
		Layout:    layout,
		Clock:     s.clock,
		RandomInt: s.randomInt,
		OnEvent:   s.onRoundEvent,
	})
	if err := s.store.Save(r.Context(), e); err != nil {
		log.Error().Err(err).Msg("save round")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	if s.reg != nil {
		if err := s.reg.Create(r.Context(), e.ID(), owner, game.PhaseIdle); err != nil {
			log.Warn().Err(err).Str("gameId", e.ID()).Msg("register round")
		}
	}
	if req.Start {
		if err := e.Start(); err != nil {
			log.Warn().Err(err).Str("gameId", e.ID()).Msg("start new round")
		}
	}
	log.Info().Str("gameId", e.ID()).Str("owner", owner).Bool("started", req.Start).Msg("round created")

	s.writeRound(w, e, owner)
}

// handleCurrentRound finds the caller's latest running round so a reloaded
// page can re-attach, and issues a fresh token for it.
func (s *Server) handleCurrentRound(w http.ResponseWriter, r *http.Request) {
	if s.reg == nil {
		writeError(w, http.StatusNotFound, "registry_disabled")
		return
	}
	owner := anonID(r)
	if owner == "" {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	entry, err := s.reg.Latest(r.Context(), owner, game.PhaseRunning)
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("owner", owner).Msg("lookup current round")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	e, err := s.store.Get(r.Context(), entry.ID)
	if err != nil || e.State().Phase != game.PhaseRunning {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	s.writeRound(w, e, owner)
}

func (s *Server) writeRound(w http.ResponseWriter, e *game.Engine, owner string) {
	tok, exp, err := s.signRoundToken(e.ID(), owner)
	if err != nil {
		log.Error().Err(err).Msg("sign round token")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	_ = json.NewEncoder(w).Encode(roundRes{GameID: e.ID(), Token: tok, ExpiresAt: exp, State: e.Snapshot()})
}

// round loads the engine named by the {id} URL param or writes a 404.
func (s *Server) round(w http.ResponseWriter, r *http.Request) (*game.Engine, bool) {
	e, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	return e, true
}

// act runs op against the round and replies with the resulting snapshot.
func (s *Server) act(w http.ResponseWriter, r *http.Request, op func(e *game.Engine) error) {
	e, ok := s.round(w, r)
	if !ok {
		return
	}
	if err := op(e); err != nil {
		status, code := errorStatus(err)
		writeError(w, status, code)
		return
	}
	_ = json.NewEncoder(w).Encode(e.Snapshot())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, func(*game.Engine) error { return nil })
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, (*game.Engine).Start)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, (*game.Engine).Reset)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.act(w, r, (*game.Engine).Abort)
}

// handlePointer applies one pointer event: {"kind":"down|move|up","x":..,"y":..}.
func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	var p protocol.Pointer
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	s.act(w, r, func(e *game.Engine) error { return applyPointer(e, p) })
}

var errBadPointer = errors.New("unknown pointer kind")

// applyPointer maps a pointer event onto the selection operations.
func applyPointer(e *game.Engine, p protocol.Pointer) error {
	switch p.Kind {
	case protocol.PointerDown:
		return e.BeginSelection(p.Point())
	case protocol.PointerMove:
		return e.UpdateSelection(p.Point())
	case protocol.PointerUp:
		return e.EndSelection()
	default:
		return errBadPointer
	}
}

// onRoundEvent fans engine events out to subscribers and the registry.
func (s *Server) onRoundEvent(ev game.Event) {
	id := ev.Snapshot.ID
	s.hub.publish(id, ev)

	if s.reg == nil || (ev.Kind != game.EventStarted && ev.Kind != game.EventEnded) {
		return
	}
	if err := s.reg.UpdatePhase(context.Background(), id, ev.Snapshot.Phase, ev.Snapshot.Generation); err != nil {
		log.Warn().Err(err).Str("gameId", id).Str("phase", string(ev.Snapshot.Phase)).Msg("update round phase")
	}
	if ev.Kind == game.EventEnded && ev.Outcome != nil {
		log.Info().Str("gameId", id).Int("score", ev.Outcome.Score).Str("tier", string(ev.Outcome.Tier)).Msg("round ended")
	}
}

// Sweep evicts finished rounds idle for longer than idle, disconnects their
// subscribers and prunes the registry.
func (s *Server) Sweep(ctx context.Context, idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	if s.clock != nil {
		cutoff = s.clock.Now().Add(-idle)
	}
	ids, err := s.store.Sweep(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("sweep rounds")
	}
	for _, id := range ids {
		s.hub.closeRound(id)
	}
	if s.reg != nil {
		if err := s.reg.Delete(ctx, ids...); err != nil {
			log.Warn().Err(err).Msg("delete swept rounds")
		}
		if n, err := s.reg.Prune(ctx, cutoff); err != nil {
			log.Warn().Err(err).Msg("prune registry")
		} else if n > 0 {
			log.Debug().Int64("rows", n).Msg("pruned registry")
		}
	}
	if len(ids) > 0 {
		log.Info().Int("rounds", len(ids)).Int("live", s.store.Len()).Msg("swept idle rounds")
	}
}
