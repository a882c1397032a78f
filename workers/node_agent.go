// workers/node_agent.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/MdShahriya/LNODE-sub000/models"
	"github.com/MdShahriya/LNODE-sub000/services"
	"github.com/MdShahriya/LNODE-sub000/utils"
)

// AgentCommand mirrors the message surface of the background extension worker.
type AgentCommand string

const (
	CommandGetState         AgentCommand = "GET_STATE"
	CommandToggleNode       AgentCommand = "TOGGLE_NODE"
	CommandSetWalletAddress AgentCommand = "SET_WALLET_ADDRESS"
	CommandConnectWallet    AgentCommand = "CONNECT_WALLET"
)

// AgentMessage is one command sent to the agent's run loop. Reply, when
// non-nil, receives the post-command snapshot (buffer it to avoid blocking
// the loop).
type AgentMessage struct {
	Command       AgentCommand
	WalletAddress string
	Reply         chan Snapshot
}

// NodeAgent is the in-process stand-in for the browser extension worker: a
// session context with an explicit hydrate/flush lifecycle instead of
// module-level globals. All state lives behind the command channel.
type NodeAgent struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	commands     chan AgentMessage
	pollInterval time.Duration

	// Owned by the run goroutine once Start is called.
	state Snapshot
}

func NewNodeAgent(baseURL, serviceToken string) *NodeAgent {
	return &NodeAgent{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
		commands:     make(chan AgentMessage, 16),
		pollInterval: 10 * time.Second,
	}
}

// Send queues a command for the run loop.
func (a *NodeAgent) Send(msg AgentMessage) {
	a.commands <- msg
}

func (a *NodeAgent) Start(ctx context.Context) {
	log.Println("🔁 Starting Node Agent (extension mirror)…")
	go a.run(ctx)
}

func (a *NodeAgent) run(ctx context.Context) {
	if a.state.WalletAddress != "" {
		a.hydrate(ctx)
	}

	poll := time.NewTicker(a.pollInterval)
	defer poll.Stop()
	display := time.NewTicker(1 * time.Second)
	defer display.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flush()
			log.Println("⏹️ Node Agent stopped")
			return
		case <-poll.C:
			if a.state.Running {
				a.heartbeat(ctx)
			} else if a.state.WalletAddress != "" {
				// Idle sync: picks up sessions started elsewhere and
				// recovers from a failed startup hydrate.
				a.hydrate(ctx)
			}
		case <-display.C:
			if a.state.Running {
				a.state.LocalEstimate = EstimatePoints(
					time.Since(a.state.StartTime),
					services.QualityMultiplier(a.state.Quality),
				)
			}
		case msg := <-a.commands:
			a.handle(ctx, msg)
		}
	}
}

func (a *NodeAgent) handle(ctx context.Context, msg AgentMessage) {
	switch msg.Command {
	case CommandGetState:
		// snapshot reply below is the whole response
	case CommandSetWalletAddress, CommandConnectWallet:
		a.state = Snapshot{WalletAddress: msg.WalletAddress}
		if msg.WalletAddress != "" {
			a.hydrate(ctx)
		}
	case CommandToggleNode:
		a.toggle(ctx)
	default:
		log.Printf("⚠️ [Agent] Unknown command: %s", msg.Command)
	}

	if msg.Reply != nil {
		msg.Reply <- a.state
	}
}

// hydrate pulls the authoritative snapshot and overwrites local state.
// Transport failures keep the last-known-good snapshot (retried next poll).
func (a *NodeAgent) hydrate(ctx context.Context) {
	server, err := a.fetchSnapshot(ctx)
	if err != nil {
		log.Printf("❌ [Agent] Hydrate failed: %v", err)
		return
	}
	a.state = Reconcile(a.state, server)
}

// flush performs the final sync before suspend so nothing is lost with the
// local context. The server is authoritative, so a last heartbeat is all
// the durability the agent needs.
func (a *NodeAgent) flush() {
	if !a.state.Running {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.heartbeat(ctx)
}

func (a *NodeAgent) fetchSnapshot(ctx context.Context) (Snapshot, error) {
	u, err := url.Parse(fmt.Sprintf("%s/node/session", a.baseURL))
	if err != nil {
		return Snapshot{}, err
	}
	q := u.Query()
	q.Set("walletAddress", a.state.WalletAddress)
	u.RawQuery = q.Encode()

	var resp struct {
		Success bool `json:"success"`
		User    struct {
			Points        float64    `json:"points"`
			NodeStatus    bool       `json:"nodeStatus"`
			NodeStartTime *time.Time `json:"nodeStartTime"`
		} `json:"user"`
		Session *struct {
			SessionID   string             `json:"sessionId"`
			StartTime   time.Time          `json:"startTime"`
			Uptime      int64              `json:"uptime"`
			NodeQuality models.NodeQuality `json:"nodeQuality"`
		} `json:"session"`
	}
	if err := a.doJSON(ctx, http.MethodGet, u.String(), nil, &resp); err != nil {
		return Snapshot{}, err
	}

	server := Snapshot{
		Valid:         true,
		WalletAddress: a.state.WalletAddress,
		Running:       resp.User.NodeStatus,
		Points:        resp.User.Points,
		SyncedAt:      time.Now(),
	}
	if resp.Session != nil {
		server.SessionID = resp.Session.SessionID
		server.StartTime = resp.Session.StartTime
		server.Uptime = resp.Session.Uptime
		server.Quality = resp.Session.NodeQuality
	}
	return server, nil
}

func (a *NodeAgent) heartbeat(ctx context.Context) {
	body := services.HeartbeatRequest{
		WalletAddress: a.state.WalletAddress,
		SessionID:     a.state.SessionID,
	}

	var resp struct {
		Success bool `json:"success"`
		Session struct {
			SessionID   string             `json:"sessionId"`
			Status      string             `json:"status"`
			Uptime      int64              `json:"uptime"`
			NodeQuality models.NodeQuality `json:"nodeQuality"`
		} `json:"session"`
	}
	err := a.doJSON(ctx, http.MethodPost, a.baseURL+"/node/heartbeat", body, &resp)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusNotFound {
			// The session was closed by another actor (dashboard stop or
			// the 24h sweep). A 404 here is authoritative, so resync.
			log.Printf("🔄 [Agent] Session gone server-side, rehydrating")
			a.hydrate(ctx)
			return
		}
		// Transport failure: last-known-good stays, the next poll retries.
		log.Printf("❌ [Agent] Heartbeat failed: %v", err)
		return
	}

	server := a.state
	server.Valid = true
	server.SessionID = resp.Session.SessionID
	server.Running = resp.Session.Status == string(models.SessionStatusActive)
	server.Uptime = resp.Session.Uptime
	server.Quality = resp.Session.NodeQuality
	server.SyncedAt = time.Now()
	a.state = Reconcile(a.state, server)
}

func (a *NodeAgent) toggle(ctx context.Context) {
	if a.state.WalletAddress == "" {
		log.Println("🚫 [Agent] TOGGLE_NODE without a connected wallet")
		return
	}

	body := map[string]interface{}{
		"walletAddress": a.state.WalletAddress,
		"isRunning":     !a.state.Running,
	}
	var resp struct {
		Success bool `json:"success"`
		User    struct {
			Points        float64    `json:"points"`
			NodeStatus    bool       `json:"nodeStatus"`
			NodeStartTime *time.Time `json:"nodeStartTime"`
		} `json:"user"`
		Session *struct {
			SessionID   string             `json:"sessionId"`
			StartTime   time.Time          `json:"startTime"`
			Uptime      int64              `json:"uptime"`
			NodeQuality models.NodeQuality `json:"nodeQuality"`
		} `json:"session"`
	}
	if err := a.doJSON(ctx, http.MethodPost, a.baseURL+"/node/status", body, &resp); err != nil {
		log.Printf("❌ [Agent] Toggle failed: %v", err)
		return
	}

	server := Snapshot{
		Valid:         true,
		WalletAddress: a.state.WalletAddress,
		Running:       resp.User.NodeStatus,
		Points:        resp.User.Points,
		SyncedAt:      time.Now(),
	}
	if resp.Session != nil && resp.User.NodeStatus {
		server.SessionID = resp.Session.SessionID
		server.StartTime = resp.Session.StartTime
		server.Quality = resp.Session.NodeQuality
	}
	a.state = Reconcile(a.state, server)
}

// apiError is a non-200 response from the node service.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("node service returned status %d: %s", e.status, e.body)
}

func (a *NodeAgent) doJSON(ctx context.Context, method, rawURL string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.serviceToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call node service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &apiError{status: resp.StatusCode, body: string(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode node service response: %w", err)
	}
	return nil
}
