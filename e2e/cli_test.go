package e2e_test

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/estimategame/internal/api"
	"github.com/mcoot/estimategame/internal/factory"
	"github.com/mcoot/estimategame/internal/services/auth"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "estgame-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/estgame")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token"),
	}
}

// as returns a runner for another player sharing the same binary
func (r *cliRunner) as(t *testing.T, name string) *cliRunner {
	return &cliRunner{
		binaryPath: r.binaryPath,
		serverURL:  r.serverURL,
		tokenFile:  filepath.Join(t.TempDir(), name),
	}
}

func (r *cliRunner) args(args ...string) []string {
	return append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)
}

func (r *cliRunner) run(args ...string) (string, error) {
	cmd := exec.Command(r.binaryPath, r.args(args...)...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	authCfg := auth.DefaultConfig()
	authCfg.BcryptCost = 4

	// Create application with the built-in catalog
	app, err := factory.New(factory.Config{
		AuthConfig: authCfg,
		Logger:     logger,
	})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		GameController: app.GameController,
		BotService:     app.BotService,
		CatalogService: app.CatalogService,
		HubManager:     app.HubManager,
		Feed:           app.Feed,
		StorageType:    factory.StorageTypeMemory,
		KeepAlive:      time.Second,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Addr = addr
	serverConfig.ShutdownTimeout = 5 * time.Second
	server := api.NewServer(router, serverConfig, logger)
	server.RegisterOnShutdown(app.HubManager.Close)

	// Start server
	go func() {
		if err := server.Start(); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		addr: serverURL,
		shutdown: func() {
			_ = server.Shutdown(context.Background())
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type playerResponse struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	IsHost   bool   `json:"is_host"`
	IsBot    bool   `json:"is_bot"`
}

type snapshotResponse struct {
	SessionID     string  `json:"session_id"`
	Code          string  `json:"code"`
	Version       int64   `json:"version"`
	Status        string  `json:"status"`
	CurrentItemID *string `json:"current_item_id"`
	Round         int     `json:"round"`
	Players       []struct {
		ID             string   `json:"id"`
		Nickname       string   `json:"nickname"`
		Score          int      `json:"score"`
		HasSubmitted   bool     `json:"has_submitted"`
		LastEstimation *float64 `json:"last_estimation"`
		IsOnline       bool     `json:"is_online"`
	} `json:"players"`
	Result *struct {
		Median  float64  `json:"median"`
		Winners []string `json:"winners"`
	} `json:"result"`
}

type joinResponse struct {
	Session snapshotResponse `json:"session"`
	Player  playerResponse   `json:"player"`
	Token   string           `json:"token"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func decode[T any](t *testing.T, output string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(output), &v), "output: %s", output)
	return v
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, "ok", decode[healthResponse](t, output).Status)
}

func TestCLI_FullSessionFlow(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	host := newCLIRunner(t, ts.addr)
	alice := host.as(t, "alice")
	bob := host.as(t, "bob")

	output, err := host.run("session", "create", "--nickname", "Host")
	require.NoError(t, err, "output: %s", output)
	created := decode[joinResponse](t, output)
	assert.Equal(t, "LOBBY", created.Session.Status)
	assert.True(t, created.Player.IsHost)
	t.Logf("Created session %s", created.Session.Code)

	for _, p := range []struct {
		runner *cliRunner
		name   string
	}{{alice, "Alice"}, {bob, "Bob"}} {
		output, err = p.runner.run("session", "join", created.Session.Code, "--nickname", p.name)
		require.NoError(t, err, "output: %s", output)
	}

	// Round 1: everyone submits, the last submission closes the round
	output, err = host.run("round", "start")
	require.NoError(t, err, "output: %s", output)
	state := decode[snapshotResponse](t, output)
	assert.Equal(t, "ESTIMATION", state.Status)
	require.NotNil(t, state.CurrentItemID)

	_, err = host.run("round", "estimate", "10")
	require.NoError(t, err)
	_, err = alice.run("round", "estimate", "20")
	require.NoError(t, err)
	output, err = bob.run("round", "estimate", "15")
	require.NoError(t, err, "output: %s", output)

	state = decode[snapshotResponse](t, output)
	assert.Equal(t, "RESULTS", state.Status)
	require.NotNil(t, state.Result)
	assert.Equal(t, 15.0, state.Result.Median)
	scores := map[string]int{}
	for _, p := range state.Players {
		scores[p.Nickname] = p.Score
	}
	assert.Equal(t, map[string]int{"Host": 0, "Alice": 0, "Bob": 25}, scores)

	// Round 2: the host closes early
	_, err = host.run("round", "start")
	require.NoError(t, err)
	_, err = alice.run("round", "estimate", "7,5")
	require.NoError(t, err)
	output, err = host.run("round", "close")
	require.NoError(t, err, "output: %s", output)
	state = decode[snapshotResponse](t, output)
	assert.Equal(t, "RESULTS", state.Status)
	assert.Equal(t, 2, state.Round)

	output, err = host.run("session", "finish")
	require.NoError(t, err, "output: %s", output)
	assert.Equal(t, "FINISHED", decode[snapshotResponse](t, output).Status)
}

func TestCLI_Bots(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	host := newCLIRunner(t, ts.addr)

	_, err := host.run("session", "create", "--nickname", "Host")
	require.NoError(t, err)

	output, err := host.run("bot", "add", "--strategy", "anchor")
	require.NoError(t, err, "output: %s", output)
	bot := decode[playerResponse](t, output)
	assert.True(t, bot.IsBot)

	output, err = host.run("round", "start")
	require.NoError(t, err, "output: %s", output)
	state := decode[snapshotResponse](t, output)
	for _, p := range state.Players {
		if p.ID == bot.ID {
			assert.True(t, p.HasSubmitted, "bot submits as soon as the round starts")
			assert.True(t, p.IsOnline)
		}
	}
}

func TestCLI_EventStream(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	host := newCLIRunner(t, ts.addr)
	alice := host.as(t, "alice")

	output, err := host.run("session", "create", "--nickname", "Host")
	require.NoError(t, err, "output: %s", output)
	created := decode[joinResponse](t, output)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events := exec.CommandContext(ctx, host.binaryPath, host.args("events", "--json")...)
	stdout, err := events.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, events.Start())
	defer func() {
		_ = events.Process.Signal(os.Interrupt)
		_ = events.Wait()
	}()

	lines := bufio.NewScanner(stdout)
	next := func() snapshotResponse {
		t.Helper()
		require.True(t, lines.Scan(), "event stream ended: %v", lines.Err())
		return decode[snapshotResponse](t, lines.Text())
	}

	first := next()
	assert.Equal(t, created.Session.SessionID, first.SessionID)

	_, err = alice.run("session", "join", created.Session.Code, "--nickname", "Alice")
	require.NoError(t, err)

	lastVersion := first.Version
	for {
		state := next()
		assert.GreaterOrEqual(t, state.Version, lastVersion, "states arrive in order")
		lastVersion = state.Version
		if len(state.Players) == 2 {
			assert.Equal(t, "Alice", state.Players[1].Nickname)
			break
		}
	}
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Whoami without a token
	output, err := cli.run("whoami")
	assert.Error(t, err)
	assert.Contains(t, output, "UNAUTHENTICATED")

	// Join a session that does not exist
	output, err = cli.run("session", "join", "ZZZZ", "--nickname", "Alice")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not found")

	// Invalid estimation
	_, err = cli.run("session", "create", "--nickname", "Host")
	require.NoError(t, err)
	_, err = cli.run("round", "start")
	require.NoError(t, err)
	output, err = cli.run("round", "estimate", "--", "-3")
	assert.Error(t, err)
	assert.Contains(t, output, "INVALID_INPUT")
}
