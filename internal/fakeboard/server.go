// Package fakeboard provides a fake board server for testing purposes.
// It serves the REST mutation API and the JSON patch streams over
// WebSocket on an httptest server, backed by in-memory collections.
//
// REST mutations change the stored state and broadcast the matching patch
// to every stream subscriber, so a client under test observes the same
// write-then-echo flow the real server produces. Tests can also script
// streams directly (PushPatch, PushRaw, FinishStream, DropStream) and
// inject failures into the next mutation.
//
// The WebSocket side is implemented with the `gws` library; the REST side
// with `gorilla/mux`.
package fakeboard

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lxzan/gws"

	"github.com/taskboard/taskboard.go/boardjson"
	"github.com/taskboard/taskboard.go/internal/codec"
	"github.com/taskboard/taskboard.go/pkg/models"
	"github.com/taskboard/taskboard.go/pkg/patch"
	"github.com/taskboard/taskboard.go/pkg/stream"
)

// Collection names double as stream keys and as the document root token
// of their patch paths.
const (
	CollTasks      = "tasks"
	CollWorkspaces = "workspaces"
	CollScratch    = "scratch"
)

// LogStreamKey returns the stream key of a process's raw log stream.
func LogStreamKey(processID string) string {
	return "logs:" + processID
}

// TerminalStreamKey returns the stream key of a terminal session.
func TerminalStreamKey(sessionID string) string {
	return "terminal:" + sessionID
}

// FailureType selects what Inject breaks.
type FailureType string

const (
	// FailureRejectMutation makes the next REST mutation fail with the
	// configured status and message.
	FailureRejectMutation FailureType = "reject_mutation"

	// FailureDropStream abruptly closes the network connection of every
	// current subscriber of the configured stream, with no close frame.
	FailureDropStream FailureType = "drop_stream"

	// FailureGarbageMessage sends an undecodable text message to every
	// current subscriber of the configured stream.
	FailureGarbageMessage FailureType = "garbage_message"
)

// FailureConfig describes one injected failure.
type FailureConfig struct {
	Type FailureType

	// Status and Message shape the response of FailureRejectMutation.
	// Status defaults to 409.
	Status  int
	Message string

	// Stream keys the target of FailureDropStream and
	// FailureGarbageMessage, e.g. CollTasks.
	Stream string
}

type rejection struct {
	status  int
	message string
}

// Server is the fake board server. Create one with NewServer, call Start,
// and point the client at URL().
type Server struct {
	router     *mux.Router
	upgrader   *gws.Upgrader
	httpServer *httptest.Server

	marshaler   codec.Marshaler
	unmarshaler codec.Unmarshaler

	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subscribers map[string]map[*gws.Conn]bool
	connKeys    map[*gws.Conn]string
	directories map[string][]models.DirectoryEntry

	reject       *rejection
	refreshToken string
	refreshCount int

	terminalInputs  map[string][]string
	terminalResizes map[string][][2]int
}

// NewServer builds a stopped server with empty collections.
func NewServer() *Server {
	c := boardjson.New()
	s := &Server{
		marshaler:   c,
		unmarshaler: c,
		collections: map[string]map[string]map[string]any{
			CollTasks:      {},
			CollWorkspaces: {},
			CollScratch:    {},
		},
		subscribers:     make(map[string]map[*gws.Conn]bool),
		connKeys:        make(map[*gws.Conn]string),
		directories:     make(map[string][]models.DirectoryEntry),
		refreshToken:    "fresh-token",
		terminalInputs:  make(map[string][]string),
		terminalResizes: make(map[string][][2]int),
	}
	s.upgrader = gws.NewUpgrader(&handler{server: s}, &gws.ServerOption{})
	s.router = mux.NewRouter()
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/api/tasks/stream/ws", s.handleStream(CollTasks)).Methods(http.MethodGet)
	r.HandleFunc("/api/workspaces/stream/ws", s.handleStream(CollWorkspaces)).Methods(http.MethodGet)
	r.HandleFunc("/api/scratch/stream/ws", s.handleStream(CollScratch)).Methods(http.MethodGet)
	r.HandleFunc("/api/execution-processes/{id}/raw-logs/ws", s.handleLogStream).Methods(http.MethodGet)
	r.HandleFunc("/api/terminal/{session}/ws", s.handleTerminal).Methods(http.MethodGet)

	r.HandleFunc("/api/tasks", s.handleList(CollTasks)).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks", s.handleCreate(CollTasks)).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{id}", s.handleGet(CollTasks)).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{id}", s.handlePatch(CollTasks)).Methods(http.MethodPatch)
	r.HandleFunc("/api/tasks/{id}", s.handleDelete(CollTasks)).Methods(http.MethodDelete)

	r.HandleFunc("/api/scratch", s.handleList(CollScratch)).Methods(http.MethodGet)
	r.HandleFunc("/api/scratch", s.handleCreate(CollScratch)).Methods(http.MethodPost)
	r.HandleFunc("/api/scratch/{id}", s.handleGet(CollScratch)).Methods(http.MethodGet)
	r.HandleFunc("/api/scratch/{id}", s.handlePatch(CollScratch)).Methods(http.MethodPatch)
	r.HandleFunc("/api/scratch/{id}", s.handleDelete(CollScratch)).Methods(http.MethodDelete)

	r.HandleFunc("/api/filesystem/directory", s.handleDirectory).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
}

// Start begins serving on a random local port.
func (s *Server) Start() {
	s.httpServer = httptest.NewServer(s.router)
}

// URL returns the http base URL of the running server.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Stop shuts the server down and drops every open stream.
func (s *Server) Stop() {
	s.mu.Lock()
	conns := make([]*gws.Conn, 0, len(s.connKeys))
	for conn := range s.connKeys {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.NetConn().Close()
	}
	s.httpServer.Close()
}

// wireFields round-trips an entity through the codec so the server only
// ever handles wire-shaped objects.
func (s *Server) wireFields(entity any) (map[string]any, error) {
	data, err := s.marshaler.Marshal(entity)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := s.unmarshaler.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Seed stores an entity without emitting a patch, for arranging state
// before a client connects. The entity must carry a non-empty id field;
// it is returned for convenience.
func (s *Server) Seed(coll string, entity any) (string, error) {
	fields, err := s.wireFields(entity)
	if err != nil {
		return "", err
	}
	id, _ := fields["id"].(string)
	if id == "" {
		return "", fmt.Errorf("fakeboard: seed entity for %q has no id", coll)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entities, ok := s.collections[coll]
	if !ok {
		return "", fmt.Errorf("fakeboard: unknown collection %q", coll)
	}
	entities[id] = fields
	return id, nil
}

// Entity returns a stored entity's wire fields, or nil when absent.
func (s *Server) Entity(coll, id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.collections[coll][id]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(entity))
	for k, v := range entity {
		out[k] = v
	}
	return out
}

// SetDirectory makes GET /api/filesystem/directory?path=<path> list the
// given entries.
func (s *Server) SetDirectory(path string, entries []models.DirectoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directories[path] = entries
}

// SetRefreshToken sets the token handed out by POST /api/auth/refresh.
func (s *Server) SetRefreshToken(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshToken = tok
}

// RefreshCount returns how many refresh calls the server has served.
func (s *Server) RefreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCount
}

// Inject arms one failure. FailureRejectMutation is one-shot and consumed
// by the next REST mutation; the stream failures apply immediately to the
// current subscribers of the configured stream.
func (s *Server) Inject(f FailureConfig) {
	switch f.Type {
	case FailureRejectMutation:
		status := f.Status
		if status == 0 {
			status = http.StatusConflict
		}
		s.mu.Lock()
		s.reject = &rejection{status: status, message: f.Message}
		s.mu.Unlock()
	case FailureDropStream:
		s.DropStream(f.Stream)
	case FailureGarbageMessage:
		s.PushRaw(f.Stream, "this is not a board envelope")
	}
}

// PushPatch broadcasts a patch batch to every subscriber of the stream.
func (s *Server) PushPatch(streamKey string, batch patch.Batch) {
	s.broadcast(streamKey, stream.Envelope{JSONPatch: &batch})
}

// PushStdout broadcasts one stdout line to a raw log stream.
func (s *Server) PushStdout(streamKey, line string) {
	s.broadcast(streamKey, stream.Envelope{Stdout: &line})
}

// PushStderr broadcasts one stderr line to a raw log stream.
func (s *Server) PushStderr(streamKey, line string) {
	s.broadcast(streamKey, stream.Envelope{Stderr: &line})
}

// PushSessionID announces a session id on a raw log stream.
func (s *Server) PushSessionID(streamKey, sessionID string) {
	s.broadcast(streamKey, stream.Envelope{SessionID: &sessionID})
}

// FinishStream sends the end-of-stream marker to every subscriber.
func (s *Server) FinishStream(streamKey string) {
	finished := true
	s.broadcast(streamKey, stream.Envelope{Finished: &finished})
}

// PushRaw sends a raw text message to every subscriber of the stream.
func (s *Server) PushRaw(streamKey, raw string) {
	for _, conn := range s.subscribersOf(streamKey) {
		_ = conn.WriteMessage(gws.OpcodeText, []byte(raw))
	}
}

// DropStream abruptly closes every subscriber of the stream without a
// close frame, as if the server crashed.
func (s *Server) DropStream(streamKey string) {
	for _, conn := range s.subscribersOf(streamKey) {
		_ = conn.NetConn().Close()
	}
}

// ExitTerminal sends an exit frame to a terminal session and closes it.
func (s *Server) ExitTerminal(sessionID string, code int) {
	raw := fmt.Sprintf(`{"type":"exit","data":"%d"}`, code)
	for _, conn := range s.subscribersOf(TerminalStreamKey(sessionID)) {
		_ = conn.WriteMessage(gws.OpcodeText, []byte(raw))
		_ = conn.WriteClose(1000, nil)
	}
}

// TerminalInputs returns the decoded input writes a session received.
func (s *Server) TerminalInputs(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.terminalInputs[sessionID]...)
}

// TerminalResizes returns the (cols, rows) pairs a session received.
func (s *Server) TerminalResizes(sessionID string) [][2]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]int(nil), s.terminalResizes[sessionID]...)
}

func (s *Server) broadcast(streamKey string, env stream.Envelope) {
	data, err := s.marshaler.Marshal(env)
	if err != nil {
		return
	}
	for _, conn := range s.subscribersOf(streamKey) {
		_ = conn.WriteMessage(gws.OpcodeText, data)
	}
}

// Subscribers reports how many sockets are attached to streamKey. Tests
// use it to wait for a subscriber before pushing frames at streams that
// send no initial message, such as log streams.
func (s *Server) Subscribers(streamKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers[streamKey])
}

func (s *Server) subscribersOf(streamKey string) []*gws.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*gws.Conn, 0, len(s.subscribers[streamKey]))
	for conn := range s.subscribers[streamKey] {
		out = append(out, conn)
	}
	return out
}

func (s *Server) addSubscriber(streamKey string, conn *gws.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribers[streamKey] == nil {
		s.subscribers[streamKey] = make(map[*gws.Conn]bool)
	}
	s.subscribers[streamKey][conn] = true
	s.connKeys[conn] = streamKey
}

func (s *Server) dropConn(conn *gws.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.connKeys[conn]; ok {
		delete(s.subscribers[key], conn)
		delete(s.connKeys, conn)
	}
}

func (s *Server) connKey(conn *gws.Conn) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connKeys[conn]
}

// handleStream upgrades a patch-stream subscription and sends the initial
// whole-collection replace, mirroring how the real server seeds clients.
// Registration and the initial write share one critical section so a
// concurrent mutation broadcast cannot slip in between them.
func (s *Server) handleStream(coll string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		socket, err := s.upgrader.Upgrade(w, r)
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.subscribers[coll] == nil {
			s.subscribers[coll] = make(map[*gws.Conn]bool)
		}
		s.subscribers[coll][socket] = true
		s.connKeys[socket] = coll

		value := make(map[string]any, len(s.collections[coll]))
		for id, entity := range s.collections[coll] {
			value[id] = entity
		}
		batch := patch.Batch{{Op: patch.OpReplace, Path: "/" + coll, Value: value}}
		env := stream.Envelope{JSONPatch: &batch}
		if data, err := s.marshaler.Marshal(env); err == nil {
			_ = socket.WriteMessage(gws.OpcodeText, data)
		}
		s.mu.Unlock()

		go socket.ReadLoop()
	}
}

func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	processID := mux.Vars(r)["id"]
	socket, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		return
	}
	s.addSubscriber(LogStreamKey(processID), socket)
	go socket.ReadLoop()
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session"]
	socket, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		return
	}
	s.addSubscriber(TerminalStreamKey(sessionID), socket)
	go socket.ReadLoop()
}

func (s *Server) handleList(coll string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		ids := make([]string, 0, len(s.collections[coll]))
		for id := range s.collections[coll] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		entities := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			entities = append(entities, s.collections[coll][id])
		}
		s.mu.Unlock()

		s.writeJSON(w, http.StatusOK, entities)
	}
}

func (s *Server) handleGet(coll string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entity := s.Entity(coll, mux.Vars(r)["id"])
		if entity == nil {
			s.writeMessage(w, http.StatusNotFound, coll+" entity not found")
			return
		}
		s.writeJSON(w, http.StatusOK, entity)
	}
}

func (s *Server) handleCreate(coll string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.consumeRejection(w) {
			return
		}
		var fields map[string]any
		if err := s.unmarshaler.NewDecoder(r.Body).Decode(&fields); err != nil {
			s.writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id, _ := fields["id"].(string)
		if id == "" {
			id = uuid.NewString()
			fields["id"] = id
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)
		if _, ok := fields["created_at"]; !ok {
			fields["created_at"] = now
		}
		fields["updated_at"] = now

		s.mu.Lock()
		s.collections[coll][id] = fields
		s.mu.Unlock()

		s.PushPatch(coll, patch.Batch{{Op: patch.OpAdd, Path: "/" + coll + "/" + id, Value: fields}})
		s.writeJSON(w, http.StatusCreated, fields)
	}
}

func (s *Server) handlePatch(coll string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.consumeRejection(w) {
			return
		}
		id := mux.Vars(r)["id"]
		var changes map[string]any
		if err := s.unmarshaler.NewDecoder(r.Body).Decode(&changes); err != nil {
			s.writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}

		s.mu.Lock()
		prior, ok := s.collections[coll][id]
		if !ok {
			s.mu.Unlock()
			s.writeMessage(w, http.StatusNotFound, coll+" entity not found")
			return
		}
		// Stored maps are never mutated in place, so broadcasts and list
		// responses can share them without copying.
		entity := make(map[string]any, len(prior)+len(changes))
		for k, v := range prior {
			entity[k] = v
		}
		for k, v := range changes {
			if v == nil {
				delete(entity, k)
				continue
			}
			entity[k] = v
		}
		entity["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
		s.collections[coll][id] = entity
		s.mu.Unlock()

		s.PushPatch(coll, patch.Batch{{Op: patch.OpReplace, Path: "/" + coll + "/" + id, Value: entity}})
		s.writeJSON(w, http.StatusOK, entity)
	}
}

func (s *Server) handleDelete(coll string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.consumeRejection(w) {
			return
		}
		id := mux.Vars(r)["id"]

		s.mu.Lock()
		_, ok := s.collections[coll][id]
		if !ok {
			s.mu.Unlock()
			s.writeMessage(w, http.StatusNotFound, coll+" entity not found")
			return
		}
		delete(s.collections[coll], id)
		s.mu.Unlock()

		s.PushPatch(coll, patch.Batch{{Op: patch.OpRemove, Path: "/" + coll + "/" + id}})
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")

	s.mu.Lock()
	entries, ok := s.directories[path]
	s.mu.Unlock()
	if !ok {
		s.writeMessage(w, http.StatusNotFound, "directory not found")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.refreshCount++
	tok := s.refreshToken
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

// consumeRejection answers with the armed rejection, if any, and reports
// whether the request was consumed.
func (s *Server) consumeRejection(w http.ResponseWriter) bool {
	s.mu.Lock()
	reject := s.reject
	s.reject = nil
	s.mu.Unlock()

	if reject == nil {
		return false
	}
	s.writeMessage(w, reject.status, reject.message)
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := s.marshaler.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"message": message})
}

// handler adapts the server to the gws event interface. Patch streams
// are one-way, so only terminal sessions care about inbound messages.
type handler struct {
	server *Server
}

func (h *handler) OnOpen(socket *gws.Conn) {}

func (h *handler) OnClose(socket *gws.Conn, err error) {
	h.server.dropConn(socket)
}

func (h *handler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.WritePong(payload)
}

func (h *handler) OnPong(socket *gws.Conn, payload []byte) {}

func (h *handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	key := h.server.connKey(socket)
	if !strings.HasPrefix(key, "terminal:") {
		return
	}
	h.server.handleTerminalFrame(strings.TrimPrefix(key, "terminal:"), socket, message.Bytes())
}

// handleTerminalFrame records inputs and resizes and echoes every input
// back as an output frame, which keeps round-trip tests trivial.
func (s *Server) handleTerminalFrame(sessionID string, socket *gws.Conn, data []byte) {
	var f struct {
		Type string `json:"type"`
		Data string `json:"data"`
		Cols int    `json:"cols"`
		Rows int    `json:"rows"`
	}
	if err := s.unmarshaler.Unmarshal(data, &f); err != nil {
		return
	}

	switch f.Type {
	case "input":
		decoded, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.terminalInputs[sessionID] = append(s.terminalInputs[sessionID], string(decoded))
		s.mu.Unlock()
		_ = socket.WriteMessage(gws.OpcodeText, []byte(`{"type":"output","data":"`+f.Data+`"}`))
	case "resize":
		s.mu.Lock()
		s.terminalResizes[sessionID] = append(s.terminalResizes[sessionID], [2]int{f.Cols, f.Rows})
		s.mu.Unlock()
	}
}
