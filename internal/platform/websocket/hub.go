// Package websocket pushes ward events to connected staff. Clients subscribe
// to topics inside their own tenant: "ward" carries every event, and
// "doctor:<id>" only the events concerning that doctor's patients.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/wardsys/ward/internal/platform/auth"
	"github.com/wardsys/ward/internal/platform/db"
)

// Event types.
const (
	PatientAdmitted      = "patient.admitted"
	PatientAssigned      = "patient.assigned"
	PatientDischarged    = "patient.discharged"
	AppointmentCreated   = "appointment.created"
	AppointmentUpdated   = "appointment.updated"
	AppointmentScheduled = "appointment.scheduled"

	// SubscriptionRefused is sent back to a client naming the topics its
	// session may not follow.
	SubscriptionRefused = "subscription.refused"
)

const TopicWard = "ward"

func DoctorTopic(id int64) string {
	return "doctor:" + strconv.FormatInt(id, 10)
}

// Event is one change on the ward. Zero ids are omitted.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Tenant        string    `json:"-"`
	PatientID     int64     `json:"patient_id,omitempty"`
	DoctorID      int64     `json:"doctor_id,omitempty"`
	ChamberID     int64     `json:"chamber_id,omitempty"`
	DepartmentID  int64     `json:"department_id,omitempty"`
	AppointmentID int64     `json:"appointment_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	At            time.Time `json:"at"`
}

// Publisher is what services use to announce committed changes. Publishing
// never fails the operation that triggered it.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type discard struct{}

func (discard) Publish(context.Context, Event) {}

// Discard drops every event.
var Discard Publisher = discard{}

// ClientMessage is an inbound subscription change.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Reply answers a ClientMessage.
type Reply struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

type Client struct {
	ID      string
	Tenant  string
	Session auth.Session
	Topics  []string
	Send    chan []byte
}

// CanSubscribe reports whether the client's session may follow topic.
// Doctors only see their own topic; registrars and admins see the ward.
func (c *Client) CanSubscribe(topic string) bool {
	switch {
	case topic == TopicWard:
		return c.Session.Role == auth.RoleAdmin || c.Session.Role == auth.RoleRegistrar
	case strings.HasPrefix(topic, "doctor:"):
		if c.Session.Role == auth.RoleAdmin {
			return true
		}
		return c.Session.DoctorID != 0 && topic == DoctorTopic(c.Session.DoctorID)
	}
	return false
}

// Hub tracks clients by tenant-scoped topic.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	log     zerolog.Logger
	now     func() time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		log:     logger.With().Str("component", "ward-feed").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func topicKey(tenant, topic string) string {
	return tenant + "|" + topic
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[c] = struct{}{}
	for _, topic := range c.Topics {
		h.add(c, topic)
	}
}

func (h *Hub) add(c *Client, topic string) {
	key := topicKey(c.Tenant, topic)
	if h.clients[key] == nil {
		h.clients[key] = make(map[*Client]struct{})
	}
	h.clients[key][c] = struct{}{}
}

func (h *Hub) remove(c *Client, topic string) {
	key := topicKey(c.Tenant, topic)
	if subs, ok := h.clients[key]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.clients, key)
		}
	}
}

// Unregister drops the client and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[c]; !ok {
		return
	}
	for _, topic := range c.Topics {
		h.remove(c, topic)
	}
	delete(h.all, c)
	close(c.Send)
}

// Subscribe adds the topics the client is allowed to follow and returns the
// ones it was refused.
func (h *Hub) Subscribe(c *Client, topics []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var refused []string
	for _, topic := range topics {
		if !c.CanSubscribe(topic) {
			refused = append(refused, topic)
			continue
		}
		if containsTopic(c.Topics, topic) {
			continue
		}
		h.add(c, topic)
		c.Topics = append(c.Topics, topic)
	}
	return refused
}

func (h *Hub) Unsubscribe(c *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	remaining := c.Topics[:0]
	for _, t := range c.Topics {
		if containsTopic(topics, t) {
			h.remove(c, t)
			continue
		}
		remaining = append(remaining, t)
	}
	c.Topics = remaining
}

func containsTopic(topics []string, topic string) bool {
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}

// ProcessMessage applies a subscription change.
func (h *Hub) ProcessMessage(c *Client, msg ClientMessage) []string {
	switch msg.Action {
	case "subscribe":
		return h.Subscribe(c, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(c, msg.Topics)
	}
	return nil
}

// Publish sends e to the ward topic of its tenant and, when it names a
// doctor, to that doctor's topic. A client subscribed to both receives it
// once. Slow clients with a full buffer miss the event.
func (h *Hub) Publish(ctx context.Context, e Event) {
	if e.Tenant == "" {
		e.Tenant = db.TenantFromContext(ctx)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = h.now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Str("type", e.Type).Msg("encode ward event")
		return
	}

	topics := []string{TopicWard}
	if e.DoctorID != 0 {
		topics = append(topics, DoctorTopic(e.DoctorID))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := make(map[*Client]struct{})
	for _, topic := range topics {
		for c := range h.clients[topicKey(e.Tenant, topic)] {
			if _, dup := sent[c]; dup {
				continue
			}
			sent[c] = struct{}{}
			select {
			case c.Send <- data:
			default:
				h.log.Warn().Str("client_id", c.ID).Str("type", e.Type).Msg("client buffer full, event dropped")
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(tenant, topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topicKey(tenant, topic)])
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Handler upgrades authenticated requests to a ward feed connection.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

// NewHandler accepts browser connections only from allowedOrigins. Requests
// without an Origin header (non-browser clients) are accepted.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || containsTopic(allowedOrigins, "*") || containsTopic(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/ws", h.Connect)
}

// DefaultTopics is what a fresh connection follows: doctors their own
// topic, everyone else the whole ward.
func DefaultTopics(s auth.Session) []string {
	if s.Role == auth.RoleDoctor && s.DoctorID != 0 {
		return []string{DoctorTopic(s.DoctorID)}
	}
	return []string{TopicWard}
}

func (h *Handler) Connect(c echo.Context) error {
	ctx := c.Request().Context()
	sess, ok := auth.SessionFromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}
	tenant := db.TenantFromContext(ctx)
	if tenant == "" {
		tenant = sess.TenantID
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:      uuid.NewString(),
		Tenant:  tenant,
		Session: sess,
		Send:    make(chan []byte, sendBuffer),
	}
	h.hub.Register(client)
	h.hub.Subscribe(client, DefaultTopics(sess))
	h.hub.log.Info().Str("client_id", client.ID).Str("tenant", tenant).
		Int64("account_id", sess.AccountID).Strs("topics", client.Topics).Msg("feed client connected")

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

func (h *Handler) readPump(c *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(c)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if refused := h.hub.ProcessMessage(c, msg); len(refused) > 0 {
			h.hub.log.Warn().Str("client_id", c.ID).Strs("topics", refused).Msg("subscription refused")
			h.reply(c, Reply{Type: SubscriptionRefused, Topics: refused})
		}
	}
}

// reply queues r for writePump. Only readPump calls it, and Send is closed
// by readPump's own Unregister, so the channel is still open here.
func (h *Handler) reply(c *Client, r Reply) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		h.hub.log.Warn().Str("client_id", c.ID).Str("type", r.Type).Msg("client buffer full, reply dropped")
	}
}

func (h *Handler) writePump(c *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
