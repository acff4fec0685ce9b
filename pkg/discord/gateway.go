package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"discarch/internal/constants"
	"discarch/pkg/discord/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opHello          = 10
	opHeartbeatAck   = 11
	eventMessageName = "MESSAGE_CREATE"
)

type gatewayPayload struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	S  *int64          `json:"s,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

type helloData struct {
	HeartbeatIntervalMs int `json:"heartbeat_interval"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Properties identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// MessageHandler consumes one live message event.
type MessageHandler func(ctx context.Context, msg types.Message)

// Gateway maintains a websocket connection to the chat source's event
// gateway and dispatches MESSAGE_CREATE events to a handler.
type Gateway struct {
	url     string
	token   string
	handler MessageHandler
	logger  *logrus.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	seqMu   sync.Mutex
	lastSeq int64
}

// NewGateway creates a gateway listener. Events are delivered on the read
// goroutine; handlers must not block for long.
func NewGateway(gatewayURL, token string, handler MessageHandler, logger *logrus.Logger) *Gateway {
	if gatewayURL == "" {
		gatewayURL = constants.DiscordGatewayURL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Gateway{
		url:     gatewayURL,
		token:   token,
		handler: handler,
		logger:  logger,
	}
}

// Start connects, identifies and begins reading events in the background.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return fmt.Errorf("gateway is already running")
	}

	dialCtx, cancel := context.WithTimeout(ctx, time.Duration(constants.DefaultGatewayTimeoutSec)*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, g.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial gateway: %w", err)
	}
	conn.SetReadLimit(-1)

	runCtx, runCancel := context.WithCancel(ctx)

	hello, err := g.awaitHello(runCtx, conn)
	if err != nil {
		runCancel()
		conn.Close(websocket.StatusInternalError, "handshake failed")
		return err
	}

	if err := g.identify(runCtx, conn); err != nil {
		runCancel()
		conn.Close(websocket.StatusInternalError, "identify failed")
		return fmt.Errorf("failed to identify: %w", err)
	}

	g.conn = conn
	g.cancel = runCancel
	g.running = true

	interval := time.Duration(hello.HeartbeatIntervalMs) * time.Millisecond

	g.wg.Add(2)
	go g.heartbeatLoop(runCtx, interval)
	go g.readLoop(runCtx)

	g.logger.WithFields(logrus.Fields{
		"heartbeatInterval": interval,
	}).Info("Gateway connected")

	return nil
}

// Stop closes the connection and waits for the background loops to exit.
// In-flight reads are aborted, not drained.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	cancel, conn := g.cancel, g.conn
	g.mu.Unlock()

	cancel()
	conn.Close(websocket.StatusNormalClosure, "shutting down")
	g.wg.Wait()
	g.logger.Info("Gateway stopped")
}

func (g *Gateway) awaitHello(ctx context.Context, conn *websocket.Conn) (*helloData, error) {
	var payload gatewayPayload
	if err := wsjson.Read(ctx, conn, &payload); err != nil {
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}
	if payload.Op != opHello {
		return nil, fmt.Errorf("expected hello opcode %d, got %d", opHello, payload.Op)
	}

	var hello helloData
	if err := json.Unmarshal(payload.D, &hello); err != nil {
		return nil, fmt.Errorf("failed to decode hello: %w", err)
	}
	return &hello, nil
}

func (g *Gateway) identify(ctx context.Context, conn *websocket.Conn) error {
	data, err := json.Marshal(identifyData{
		Token: g.token,
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "discarch",
			Device:  "discarch",
		},
	})
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, gatewayPayload{Op: opIdentify, D: data})
}

func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration) {
	defer g.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq := g.sequence()
			data, _ := json.Marshal(seq)
			if err := wsjson.Write(ctx, g.conn, gatewayPayload{Op: opHeartbeat, D: data}); err != nil {
				g.logger.WithError(err).Warn("Failed to send gateway heartbeat")
				return
			}
		}
	}
}

func (g *Gateway) readLoop(ctx context.Context) {
	defer g.wg.Done()

	for {
		var payload gatewayPayload
		if err := wsjson.Read(ctx, g.conn, &payload); err != nil {
			if ctx.Err() == nil {
				g.logger.WithError(err).Warn("Gateway read failed")
			}
			return
		}

		if payload.S != nil {
			g.setSequence(*payload.S)
		}

		switch payload.Op {
		case opDispatch:
			if payload.T == eventMessageName {
				var msg types.Message
				if err := json.Unmarshal(payload.D, &msg); err != nil {
					g.logger.WithError(err).Warn("Failed to decode message event")
					continue
				}
				g.handler(ctx, msg)
			}
		case opHeartbeatAck:
			// nothing to do
		}
	}
}

func (g *Gateway) sequence() int64 {
	g.seqMu.Lock()
	defer g.seqMu.Unlock()
	return g.lastSeq
}

func (g *Gateway) setSequence(s int64) {
	g.seqMu.Lock()
	defer g.seqMu.Unlock()
	g.lastSeq = s
}
