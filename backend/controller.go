package main

import "sync"

// SessionController serializes all access to the session from the HTTP
// handlers, the tick loop and the websocket layer.
type SessionController struct {
	mu      sync.Mutex
	session *Session
}

func NewSessionController(session *Session) *SessionController {
	return &SessionController{session: session}
}

func (sc *SessionController) StartGame(settings SessionSettings) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if err := sc.session.Reset(settings); err != nil {
		return err
	}
	sc.session.Start()
	return nil
}

func (sc *SessionController) ApplyPlayerMove(uci string) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session.ApplyPlayerMove(uci)
}

func (sc *SessionController) Tick() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session.Tick()
}

func (sc *SessionController) FEN() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session.Position().String()
}

func (sc *SessionController) Status() SessionStatus {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session.Status()
}

func (sc *SessionController) Settings() SessionSettings {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session.settings
}

func (sc *SessionController) History() MoveHistory {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session.History()
}

func (sc *SessionController) LatestHistoryEntry() (HistoryEntry, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	history := sc.session.History()
	if history.Size() == 0 {
		return HistoryEntry{}, false
	}
	entries := history.All()
	return entries[len(entries)-1], true
}

func (sc *SessionController) EngineThinking() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session.EngineThinking()
}

func (sc *SessionController) TurnStartedAtMs() int64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.session.TurnStartedAtMs()
}

// SetProgressSink wires the engine's per-depth progress events to the
// search websocket hub.
func (sc *SessionController) SetProgressSink(sink func(ProgressEvent)) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.session.Engine().ProgressSink = sink
}

// CancelEngine aborts the in-flight search, used when a new game starts
// under a running one.
func (sc *SessionController) CancelEngine() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.session.Engine().Cancel()
}
