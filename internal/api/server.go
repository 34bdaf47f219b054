package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tycoon/internal/config"
	"tycoon/internal/game"
	"tycoon/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const sessionContextKey contextKey = "session"

var (
	ErrSessionNotFound = errors.New("game session not found")
	ErrTooManySessions = errors.New("too many live game sessions")
)

type Server struct {
	cfg      config.APIConfig
	gameCfg  game.Config
	log      *slog.Logger
	saves    store.Store
	sessions *sessionStore
	limiter  *clientLimiter
	mux      *chi.Mux
}

func New(cfg config.APIConfig, gameCfg game.Config, logger *slog.Logger, saves store.Store) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		gameCfg:  gameCfg,
		log:      logger,
		saves:    saves,
		sessions: newSessionStore(cfg.SessionTTL, cfg.MaxSessions),
		limiter:  newClientLimiter(cfg.RateLimit, cfg.RateBurst),
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.sessions.count()})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limiter.middleware)

		r.Post("/games", s.handleCreateGame)
		r.Get("/saves", s.handleListSaves)
		r.Get("/saves/{name}", s.handleSaveStandings)
		r.Post("/saves/{name}/load", s.handleLoadSave)

		r.Route("/games/{id}", func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Get("/", s.handleGameState)
			r.Delete("/", s.handleEndGame)
			r.Post("/turns", s.handlePlayTurn)
			r.Post("/preview", s.handlePreview)
			r.Get("/snapshot", s.handleSnapshot)
			r.Post("/save", s.handleSaveGame)
		})
	})
}

// sessionMiddleware resolves {id} and checks the bearer token issued with it.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.get(chi.URLParam(r, "id"))
		if !ok {
			writeDomainError(w, ErrSessionNotFound)
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if !sess.authorized(token) {
			writeError(w, http.StatusForbidden, "token does not match this game")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (*session, error) {
	sess, ok := ctx.Value(sessionContextKey).(*session)
	if !ok || sess == nil {
		return nil, errors.New("missing session context")
	}
	return sess, nil
}

type CreateGameRequest struct {
	Seed       *int64       `json:"seed,omitempty"`
	PlayerName string       `json:"player_name,omitempty"`
	Config     *game.Config `json:"config,omitempty"`
}

type SessionResponse struct {
	ID        string         `json:"id"`
	Token     string         `json:"token,omitempty"`
	Seed      int64          `json:"seed"`
	Save      string         `json:"save,omitempty"`
	Dashboard game.Dashboard `json:"dashboard"`
	Last      *TurnResult    `json:"last,omitempty"`
}

// TurnResult is the player's side of a settled turn. Rival books stay on
// the server.
type TurnResult struct {
	Turn       int             `json:"turn"`
	Conditions game.Conditions `json:"conditions"`
	Command    game.Command    `json:"command"`
	Statement  game.Statement  `json:"statement"`
	Market     MarketSummary   `json:"market"`
	Respawns   []game.Respawn  `json:"respawns,omitempty"`
	Outcome    game.Outcome    `json:"outcome"`
	Next       game.Conditions `json:"next"`
	Dashboard  game.Dashboard  `json:"dashboard"`
}

type MarketSummary struct {
	TotalDemand  int     `json:"total_demand"`
	LostDemand   int     `json:"lost_demand"`
	UnitsSold    int     `json:"units_sold"`
	AveragePrice float64 `json:"average_price"`
	Multiplier   float64 `json:"multiplier"`
}

type TurnRequest struct {
	Decision  *game.Decision `json:"decision,omitempty"`
	Autopilot bool           `json:"autopilot,omitempty"`
}

type SaveRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var in CreateGameRequest
	if err := decodeOptionalJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg := s.gameCfg
	if in.Config != nil {
		cfg = *in.Config
	}
	opts := []game.Option{game.WithLogger(s.log)}
	if in.Seed != nil {
		opts = append(opts, game.WithSeed(*in.Seed))
	}
	if name := strings.TrimSpace(in.PlayerName); name != "" {
		opts = append(opts, game.WithPlayerName(name))
	}
	g, err := game.New(cfg, opts...)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.startSession(w, g, "")
}

func (s *Server) startSession(w http.ResponseWriter, g *game.Game, saveName string) {
	sess := newSession(g)
	sess.loadedAs = saveName
	if !s.sessions.add(sess) {
		writeDomainError(w, ErrTooManySessions)
		return
	}
	s.log.Info("game session started", "session", sess.ID, "seed", g.Seed(), "turn", g.Turn(), "save", saveName)
	writeJSON(w, http.StatusCreated, SessionResponse{
		ID:        sess.ID,
		Token:     sess.token,
		Seed:      g.Seed(),
		Save:      saveName,
		Dashboard: g.View(),
	})
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	writeJSON(w, http.StatusOK, SessionResponse{
		ID:        sess.ID,
		Seed:      sess.game.Seed(),
		Save:      sess.loadedAs,
		Dashboard: sess.game.View(),
		Last:      sess.last,
	})
}

func (s *Server) handleEndGame(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sessions.remove(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayTurn(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var in TurnRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Decision == nil && !in.Autopilot {
		writeError(w, http.StatusBadRequest, "decision or autopilot is required")
		return
	}
	if in.Decision != nil && in.Autopilot {
		writeError(w, http.StatusBadRequest, "decision and autopilot are mutually exclusive")
		return
	}
	if in.Decision != nil {
		if _, err := game.ParseBreakthroughChoice(string(in.Decision.Breakthrough)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	key := idempotencyKey(r)
	if key != "" && key == sess.lastKey && sess.last != nil {
		writeJSON(w, http.StatusOK, sess.last)
		return
	}

	decision := sess.game.Autopilot()
	if in.Decision != nil {
		decision = *in.Decision
	}
	report, err := sess.game.PlayTurn(r.Context(), decision)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	result := NewTurnResult(report, sess.game.View())
	sess.last = &result
	sess.lastKey = key

	s.log.Info("turn played",
		"session", sess.ID,
		"turn", report.Turn,
		"net_income", report.PlayerStatement().NetIncome,
		"outcome", report.Outcome,
		"respawns", len(report.Respawns),
	)
	writeJSON(w, http.StatusOK, result)
}

// NewTurnResult keeps the player's command and statement from report.
func NewTurnResult(report game.TurnReport, view game.Dashboard) TurnResult {
	res := TurnResult{
		Turn:       report.Turn,
		Conditions: report.Conditions,
		Statement:  report.PlayerStatement(),
		Market: MarketSummary{
			TotalDemand:  report.Settlement.Market.TotalDemand,
			LostDemand:   report.Settlement.Market.LostDemand,
			UnitsSold:    report.Settlement.Market.UnitsSold(),
			AveragePrice: report.Settlement.Market.AveragePrice,
			Multiplier:   report.Settlement.Market.Multiplier,
		},
		Respawns:  report.Respawns,
		Outcome:   report.Outcome,
		Next:      report.Next,
		Dashboard: view,
	}
	if len(report.Commands) > 0 {
		res.Command = report.Commands[0]
	}
	return res
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var in game.Decision
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := game.ParseBreakthroughChoice(string(in.Breakthrough)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.game.Outcome().Over() {
		writeDomainError(w, game.ErrGameOver)
		return
	}
	writeJSON(w, http.StatusOK, sess.game.Preview(in))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	writeJSON(w, http.StatusOK, sess.game.Snapshot())
}

func (s *Server) handleSaveGame(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var in SaveRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name, err := store.NormalizeName(in.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sess.mu.Lock()
	snap := sess.game.Snapshot()
	sess.mu.Unlock()

	if err := s.saves.Save(r.Context(), name, snap); err != nil {
		writeDomainError(w, fmt.Errorf("save %q: %w", name, err))
		return
	}
	s.log.Info("game saved", "session", sess.ID, "name", name, "turn", snap.Turn)
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "turn": snap.Turn})
}

func (s *Server) handleListSaves(w http.ResponseWriter, r *http.Request) {
	saves, err := s.saves.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if saves == nil {
		saves = []store.SaveInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"saves": saves})
}

func (s *Server) handleSaveStandings(w http.ResponseWriter, r *http.Request) {
	standings, err := s.saves.Standings(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"standings": standings})
}

func (s *Server) handleLoadSave(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := s.saves.Load(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	g, err := game.Restore(snap.Config, snap, game.WithLogger(s.log))
	if err != nil {
		writeDomainError(w, fmt.Errorf("restore %q: %w", name, err))
		return
	}
	s.startSession(w, g, strings.TrimSpace(name))
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, store.ErrSaveNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrGameOver):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInvalidConfig), errors.Is(err, store.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrInvalidState):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrTooManySessions):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON(r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := decodeJSON(r, out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
