package rpc

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agrimarket/agridash/libs/events"
	"github.com/agrimarket/agridash/libs/log"
	"github.com/agrimarket/agridash/sequencer"
)

const (
	defaultWSWriteChanCapacity = 100
	defaultWSWriteWait         = 10 * time.Second
	defaultWSReadWait          = 30 * time.Second
	defaultWSPingPeriod        = (defaultWSReadWait * 9) / 10
)

// streamedEvents are forwarded to every websocket client.
var streamedEvents = []string{
	sequencer.EventStateChange,
	sequencer.EventCompleted,
	sequencer.EventFailed,
}

// WSEvent is the message written to websocket clients.
type WSEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// WebsocketManager upgrades HTTP connections and streams sequencer events to
// them. A closed connection does not reset the sequencer.
type WebsocketManager struct {
	websocket.Upgrader

	evsw    events.EventSwitch
	logger  log.Logger
	metrics *Metrics
	nextID  atomic.Uint64
}

// NewWebsocketManager returns a new WebsocketManager that reads from evsw.
// checkOrigin decides which upgrade requests are accepted.
func NewWebsocketManager(
	logger log.Logger,
	evsw events.EventSwitch,
	metrics *Metrics,
	checkOrigin func(r *http.Request) bool,
) *WebsocketManager {
	return &WebsocketManager{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		evsw:    evsw,
		logger:  logger,
		metrics: metrics,
	}
}

// WebsocketHandler upgrades the request and blocks until the connection
// closes.
func (wm *WebsocketManager) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	wsConn, err := wm.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		wm.logger.Error("failed to upgrade connection", "err", err)
		return
	}

	id := fmt.Sprintf("ws-%d-%s", wm.nextID.Add(1), r.RemoteAddr)
	con := newWSConnection(id, wsConn, wm.evsw, wm.logger.With("remote", r.RemoteAddr))

	wm.logger.Info("new websocket connection", "remote", r.RemoteAddr)
	wm.metrics.WebsocketConnections.Add(1)
	con.run()
	wm.metrics.WebsocketConnections.Add(-1)
	wm.logger.Info("websocket connection closed", "remote", r.RemoteAddr)
}

type wsConnection struct {
	id     string
	conn   *websocket.Conn
	evsw   events.EventSwitch
	logger log.Logger

	writeChan chan WSEvent
	quit      chan struct{}
	stopOnce  sync.Once
}

func newWSConnection(id string, conn *websocket.Conn, evsw events.EventSwitch, logger log.Logger) *wsConnection {
	return &wsConnection{
		id:        id,
		conn:      conn,
		evsw:      evsw,
		logger:    logger,
		writeChan: make(chan WSEvent, defaultWSWriteChanCapacity),
		quit:      make(chan struct{}),
	}
}

func (c *wsConnection) run() {
	for _, ev := range streamedEvents {
		ev := ev
		_ = c.evsw.AddListenerForEvent(c.id, ev, func(data events.EventData) error {
			return c.trySend(WSEvent{Event: ev, Data: data})
		})
	}
	defer c.evsw.RemoveListener(c.id)

	go c.readRoutine()
	c.writeRoutine()
	c.conn.Close()
}

func (c *wsConnection) stop() {
	c.stopOnce.Do(func() { close(c.quit) })
}

// trySend never blocks the event switch. A client that cannot keep up loses
// events.
func (c *wsConnection) trySend(ev WSEvent) error {
	select {
	case <-c.quit:
		return fmt.Errorf("connection %s closed", c.id)
	case c.writeChan <- ev:
		return nil
	default:
		c.logger.Error("websocket client too slow; dropping event", "event", ev.Event)
		return fmt.Errorf("write channel of %s is full", c.id)
	}
}

// readRoutine keeps the read deadline fresh and notices when the client goes
// away. Clients are not expected to send anything.
func (c *wsConnection) readRoutine() {
	defer c.stop()

	_ = c.conn.SetReadDeadline(time.Now().Add(defaultWSReadWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(defaultWSReadWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("failed to read from websocket", "err", err)
			}
			return
		}
	}
}

func (c *wsConnection) writeRoutine() {
	pingTicker := time.NewTicker(defaultWSPingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-c.quit:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(defaultWSWriteWait))
			return

		case <-pingTicker.C:
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWSWriteWait))
			if err != nil {
				c.logger.Error("failed to write ping", "err", err)
				c.stop()
				return
			}

		case ev := <-c.writeChan:
			_ = c.conn.SetWriteDeadline(time.Now().Add(defaultWSWriteWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Error("failed to write event", "event", ev.Event, "err", err)
				c.stop()
				return
			}
		}
	}
}
