package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ghostbot/ghostbot/internal/logging"
	"github.com/gorilla/websocket"
)

// GatewayClient connects to Discord Gateway and handles event streaming.
// A GatewayClient serves one connection; create a new one to reconnect.
type GatewayClient struct {
	botToken      string
	intents       int
	rest          *Client
	conn          *websocket.Conn
	sessionID     string // logged only; reconnects IDENTIFY from scratch
	seq           *int
	heartbeatTick *time.Ticker
	stopCh        chan struct{}
	stopOnce      sync.Once
	mu            sync.Mutex
	log           *slog.Logger
}

// NewGatewayClient creates a new Discord Gateway client. The REST client is
// used to discover the gateway URL.
func NewGatewayClient(botToken string, intents int, rest *Client) *GatewayClient {
	return &GatewayClient{
		botToken: botToken,
		intents:  intents,
		rest:     rest,
		stopCh:   make(chan struct{}),
		log:      logging.WithComponent("discord.gateway"),
	}
}

// Connect establishes a WebSocket connection to Discord Gateway.
func (g *GatewayClient) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	gatewayURL, err := g.rest.GetGatewayURL(ctx)
	if err != nil {
		return fmt.Errorf("get gateway url: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, gatewayURL+"?v=10&encoding=json", nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	g.conn = conn
	g.log.Info("Connected to Discord Gateway")

	if err := g.handleHello(); err != nil {
		_ = g.conn.Close()
		g.conn = nil
		return fmt.Errorf("handle hello: %w", err)
	}

	return nil
}

// handleHello receives HELLO, sends IDENTIFY and starts the heartbeat loop.
func (g *GatewayClient) handleHello() error {
	_ = g.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer func() { _ = g.conn.SetReadDeadline(time.Time{}) }()

	var event GatewayEvent
	if err := g.conn.ReadJSON(&event); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}

	if event.Op != OpcodeHello {
		return fmt.Errorf("expected hello opcode %d, got %d", OpcodeHello, event.Op)
	}

	var hello Hello
	if err := json.Unmarshal(event.D, &hello); err != nil {
		return fmt.Errorf("parse hello: %w", err)
	}

	identify := Identify{
		Op: OpcodeIdentify,
		D: IdentifyData{
			Token:   g.botToken,
			Intents: g.intents,
			Properties: map[string]string{
				"os":      "linux",
				"browser": "ghostbot",
				"device":  "ghostbot",
			},
		},
	}

	if err := g.conn.WriteJSON(identify); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}

	g.log.Info("Sent IDENTIFY", slog.Int("heartbeat_interval", hello.HeartbeatInterval))

	g.heartbeatTick = time.NewTicker(time.Duration(hello.HeartbeatInterval) * time.Millisecond)
	go g.heartbeatLoop()

	return nil
}

func (g *GatewayClient) heartbeatLoop() {
	defer g.heartbeatTick.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-g.heartbeatTick.C:
			if err := g.sendHeartbeat(); err != nil {
				g.log.Warn("Heartbeat failed", slog.Any("error", err))
				return
			}
		}
	}
}

func (g *GatewayClient) sendHeartbeat() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("not connected")
	}
	return g.conn.WriteJSON(Heartbeat{Op: OpcodeHeartbeat, D: g.seq})
}

// Listen returns a channel of incoming dispatch events. The channel is closed
// when the connection drops, Discord asks for a reconnect, or ctx is cancelled.
func (g *GatewayClient) Listen(ctx context.Context) (<-chan GatewayEvent, error) {
	if g.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	conn := g.conn
	out := make(chan GatewayEvent, 64)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case <-g.stopCh:
				return
			default:
			}

			var event GatewayEvent
			if err := conn.ReadJSON(&event); err != nil {
				if websocket.IsCloseError(err, CloseCodeInvalidToken) {
					g.log.Error("Gateway rejected the bot token", slog.Any("error", err))
				} else {
					g.log.Warn("Read event error", slog.Any("error", err))
				}
				return
			}

			switch event.Op {
			case OpcodeHeartbeat:
				_ = g.sendHeartbeat()
				continue
			case OpcodeHeartbeatAck:
				continue
			case OpcodeReconnect, OpcodeInvalidSession:
				g.log.Info("Gateway requested reconnect", slog.Int("op", event.Op))
				return
			}

			if event.S != nil {
				g.mu.Lock()
				g.seq = event.S
				g.mu.Unlock()
			}

			if event.T != nil && *event.T == EventReady {
				var ready Ready
				if err := json.Unmarshal(event.D, &ready); err == nil {
					g.mu.Lock()
					g.sessionID = ready.SessionID
					g.mu.Unlock()
					g.log.Info("Received READY",
						slog.String("session_id", ready.SessionID),
						slog.String("user", ready.User.Username))
				}
			}

			select {
			case out <- event:
			case <-ctx.Done():
				return
			case <-g.stopCh:
				return
			}
		}
	}()

	return out, nil
}

// Close closes the WebSocket connection. Safe to call more than once.
func (g *GatewayClient) Close() error {
	g.stopOnce.Do(func() { close(g.stopCh) })

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.heartbeatTick != nil {
		g.heartbeatTick.Stop()
	}
	if g.conn != nil {
		err := g.conn.Close()
		g.conn = nil
		return err
	}
	return nil
}
