package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type StatusResponse struct {
	Settings        SessionSettings `json:"settings"`
	Config          Config          `json:"config"`
	FEN             string          `json:"fen"`
	Status          string          `json:"status"`
	History         []HistoryEntry  `json:"history"`
	EngineThinking  bool            `json:"engine_thinking"`
	TurnStartedAtMs int64           `json:"turn_started_at_ms"`
}

type apiMovePayload struct {
	Move string `json:"move"`
}

type observePayload struct {
	Category    string             `json:"category"`
	Hit         bool               `json:"hit"`
	Severity    float64            `json:"severity"`
	Fingerprint ContextFingerprint `json:"fingerprint"`
}

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	config := GetConfig()
	store, err := OpenWeaknessStore(config.WeaknessStorePath, config.WeaknessStoreCap, log)
	if err != nil {
		log.Fatal().Err(err).Msg("weakness store open failed")
	}
	defer store.Close()

	session, err := NewSession(SessionSettings{Level: 4}, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("session init failed")
	}
	controller := NewSessionController(session)

	hub := NewHub()
	searchHub := NewSearchHub()
	controller.SetProgressSink(func(ev ProgressEvent) {
		searchHub.PublishProgress(ev, true)
	})

	// Standalone engine for direct move requests, separate from the
	// session's so an API caller never supersedes a live game search.
	moveEngine := NewEnginePlayer(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx.Done())
	go searchHub.Run(ctx.Done())

	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if controller.Tick() {
					if entry, ok := controller.LatestHistoryEntry(); ok {
						hub.broadcastHistory <- historyPayload{History: []HistoryEntry{entry}}
					}
					hub.broadcastStatus <- controllerStatus(controller)
				}
			}
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, controllerStatus(controller))
	})

	r.Post("/api/game/start", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Settings SessionSettings `json:"settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		controller.CancelEngine()
		if err := controller.StartGame(payload.Settings); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, controllerStatus(controller))
		hub.broadcastReset <- controllerStatus(controller)
	})

	r.Post("/api/move", func(w http.ResponseWriter, r *http.Request) {
		var payload apiMovePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		if err := controller.ApplyPlayerMove(payload.Move); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if entry, ok := controller.LatestHistoryEntry(); ok {
			hub.broadcastHistory <- historyPayload{History: []HistoryEntry{entry}}
		}
		hub.broadcastStatus <- controllerStatus(controller)
		writeJSON(w, http.StatusOK, controllerStatus(controller))
	})

	r.Post("/api/engine/move", func(w http.ResponseWriter, r *http.Request) {
		var req MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		if len(req.Signatures) == 0 {
			if signatures, err := store.Read(GetConfig().BiasTopSignatures); err == nil {
				req.Signatures = signatures
			}
		}
		resp, err := moveEngine.ComputeMove(req)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, ErrNoLegalMoves) || errors.Is(err, ErrCancelled) {
				status = http.StatusConflict
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/api/settings", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Config *Config `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		if payload.Config != nil {
			configStore.Update(*payload.Config)
			controller.CancelEngine()
		}
		hub.broadcastConfig <- configPayload{Config: GetConfig()}
		writeJSON(w, http.StatusOK, controllerStatus(controller))
	})

	r.Get("/api/weaknesses", func(w http.ResponseWriter, r *http.Request) {
		signatures, err := store.Read(0)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"signatures": signatures})
	})

	r.Post("/api/weaknesses/observe", func(w http.ResponseWriter, r *http.Request) {
		var payload observePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Category == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		sig := findOrNewSignature(store, payload)
		sig.Observe(payload.Hit, time.Now(), GetConfig())
		if err := store.Append(sig); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, sig)
	})

	r.Get("/ws/", func(w http.ResponseWriter, r *http.Request) {
		serveWS(hub, controller, w, r)
	})
	r.Get("/ws/search", func(w http.ResponseWriter, r *http.Request) {
		serveSearchWS(searchHub, w, r)
	})

	server := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log.Info().Str("addr", server.Addr).Msg("backend listening")
	select {
	case <-sigCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err, ok := <-serverErrCh:
		if ok {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("graceful shutdown failed")
		if closeErr := server.Close(); closeErr != nil && !errors.Is(closeErr, http.ErrServerClosed) {
			log.Error().Err(closeErr).Msg("forced close failed")
		}
	}
	cancel()
	controller.CancelEngine()
}

// findOrNewSignature loads the tracked signature for a category, or
// seeds a fresh one from the observation payload.
func findOrNewSignature(store *WeaknessStore, payload observePayload) WeaknessSignature {
	signatures, err := store.Read(0)
	if err == nil {
		for _, sig := range signatures {
			if sig.Category == payload.Category {
				if payload.Severity > 0 {
					sig.Severity = payload.Severity
				}
				return sig
			}
		}
	}
	return WeaknessSignature{
		Category:    payload.Category,
		Severity:    payload.Severity,
		Fingerprint: payload.Fingerprint,
	}
}

func serveWS(hub *Hub, controller *SessionController, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{hub: hub, send: make(chan []byte, 16)}
	hub.Register(client)

	client.sendJSON(wsMessage{Type: "status", Payload: mustMarshal(controllerStatus(controller))})

	go func() {
		defer conn.Close()
		if err := pumpWS(conn, client.send); err != nil {
			return
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			hub.Unregister(client)
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "request_status":
			client.sendJSON(wsMessage{Type: "status", Payload: mustMarshal(controllerStatus(controller))})
		}
	}
}

func controllerStatus(controller *SessionController) StatusResponse {
	return StatusResponse{
		Settings:        controller.Settings(),
		Config:          GetConfig(),
		FEN:             controller.FEN(),
		Status:          string(controller.Status()),
		History:         controller.History().All(),
		EngineThinking:  controller.EngineThinking(),
		TurnStartedAtMs: controller.TurnStartedAtMs(),
	}
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
