// End-to-end tests for the compiled server against the real endpoint.
//
// Required environment variables (tests skip if absent):
//
//	GEMINI_API_KEY      – API key for the generation endpoint
//
// Optional:
//
//	GEMINI_MODEL        – model name (server default otherwise)
//	FILE_SEARCH_STORES  – comma-separated retrieval stores
//	AGENT_NAME          – A2A AgentCard name (default: "e2e-test-agent")
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

type e2eServer struct {
	httpBase string
	a2aBase  string
}

// loopbackPort asks the kernel for an unused port on 127.0.0.1.
func loopbackPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// pollUntilUp retries GET url until it answers below 500.
func pollUntilUp(ctx context.Context, url string) error {
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode < http.StatusInternalServerError {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", url, ctx.Err())
		case <-tick.C:
		}
	}
}

// launch builds and runs cmd/server with A2A enabled on fresh ports. The
// process is killed when the test ends.
func launch(t *testing.T) e2eServer {
	t.Helper()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	agentName := os.Getenv("AGENT_NAME")
	if agentName == "" {
		agentName = "e2e-test-agent"
	}
	httpPort, a2aPort := loopbackPort(t), loopbackPort(t)

	args := []string{
		"run", "github.com/sowankispassah/khasigpt-sub005/cmd/server",
		"--gemini-api-key", apiKey,
		"--listen-addr", fmt.Sprintf("127.0.0.1:%d", httpPort),
		"--a2a",
		"--a2a-port", fmt.Sprint(a2aPort),
		"--agent-name", agentName,
	}
	if m := os.Getenv("GEMINI_MODEL"); m != "" {
		args = append(args, "--model", m)
	}
	if s := os.Getenv("FILE_SEARCH_STORES"); s != "" {
		args = append(args, "--stores", s)
	}

	cmd := exec.Command("go", args...)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	cmd.WaitDelay = 5 * time.Second
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	s := e2eServer{
		httpBase: fmt.Sprintf("http://127.0.0.1:%d", httpPort),
		a2aBase:  fmt.Sprintf("http://127.0.0.1:%d", a2aPort),
	}
	// go run compiles first.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	for _, u := range []string{s.httpBase + "/healthz", s.a2aBase + "/.well-known/agent-card.json"} {
		if err := pollUntilUp(ctx, u); err != nil {
			t.Fatalf("server not ready: %v", err)
		}
	}
	return s
}

func TestE2E_Generate(t *testing.T) {
	s := launch(t)

	body := `{"messages":[{"role":"system","content":"Answer in one word."},{"role":"user","content":"What colour is the sky on a clear day?"}],"maxOutputTokens":256}`
	resp, err := http.Post(s.httpBase+"/v1/generate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/generate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("empty content (finish=%s)", result.FinishReason)
	}
	t.Logf("finish=%s content=%+v", result.FinishReason, result.Content)
}

func TestE2E_Stream(t *testing.T) {
	s := launch(t)

	body := `{"messages":[{"role":"user","content":"Say hello."}]}`
	resp, err := http.Post(s.httpBase+"/v1/stream", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	if len(events) < 2 || events[0] != "stream-start" || events[len(events)-1] != "finish" {
		t.Fatalf("bad event framing: %v", events)
	}
}

func TestE2E_A2A_MessageSend(t *testing.T) {
	s := launch(t)

	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      "e2e-send-1",
		"method":  "message/send",
		"params": map[string]any{
			"message": map[string]any{
				"role":      "user",
				"parts":     []any{map[string]any{"kind": "text", "text": "Hello"}},
				"messageId": "e2e-msg-001",
			},
		},
	}
	body, _ := json.Marshal(payload)

	resp, err := http.Post(s.a2aBase+"/", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if errField := result["error"]; errField != nil {
		t.Fatalf("JSON-RPC error: %v", errField)
	}
	res, _ := result["result"].(map[string]any)
	if res == nil {
		t.Fatalf("no result field in response: %v", result)
	}
	status, _ := res["status"].(map[string]any)
	if state, _ := status["state"].(string); state != "completed" {
		t.Errorf("expected state=completed, got %q", state)
	}
}
