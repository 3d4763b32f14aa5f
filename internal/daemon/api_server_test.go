package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"runreel/internal/generation"
	"runreel/internal/logging"
	"runreel/internal/records"
	"runreel/internal/services/tavus"
	"runreel/internal/testsupport"
)

type stubProvider struct {
	mu         sync.Mutex
	submitHold chan struct{}
	status     tavus.VideoStatus
}

func (p *stubProvider) Submit(context.Context, tavus.SubmitRequest) (tavus.SubmitResponse, error) {
	p.mu.Lock()
	hold := p.submitHold
	p.mu.Unlock()
	if hold != nil {
		<-hold
	}
	return tavus.SubmitResponse{VideoID: "job-api", Status: "queued"}, nil
}

func (p *stubProvider) Status(context.Context, string) (tavus.VideoStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, nil
}

type apiFixture struct {
	server   *httptest.Server
	daemon   *Daemon
	store    *records.Store
	provider *stubProvider
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider := &stubProvider{
		status: tavus.VideoStatus{Status: "completed", HostedURL: "https://cdn.example/v.mp4"},
	}
	orch := generation.New(cfg, store, provider, logging.NewNop())
	d, err := New(cfg, store, orch, logging.NewNop())
	if err != nil {
		t.Fatalf("New daemon: %v", err)
	}
	server := httptest.NewServer(d.api.routes())
	t.Cleanup(server.Close)
	return &apiFixture{server: server, daemon: d, store: store, provider: provider}
}

func (f *apiFixture) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (f *apiFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func waitForTerminalSession(t *testing.T, f *apiFixture) generation.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := f.daemon.orch.Snapshot()
		if snap.State.IsTerminal() {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session never reached a terminal state, last %s", f.daemon.orch.Snapshot().State)
	return generation.Snapshot{}
}

func TestAPIHealth(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.get(t, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "ok" {
		t.Fatalf("health payload = %v", body)
	}
}

func TestAPIStartGeneration(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.post(t, "/api/generations", map[string]any{
		"subject_id": "subject-1",
		"script":     "You ran your fastest mile yet.",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	decodeBody(t, resp)

	snap := waitForTerminalSession(t, f)
	if snap.State != generation.StateCompleted {
		t.Fatalf("session state = %s, want completed", snap.State)
	}

	record, err := f.store.GetByID(context.Background(), snap.RecordID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if record.Status != records.StatusCompleted {
		t.Fatalf("record status = %s", record.Status)
	}
}

func TestAPIStartGenerationRejectsBadInput(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.post(t, "/api/generations", map[string]any{"subject_id": "subject-1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] == "" {
		t.Fatal("expected an error message")
	}
}

func TestAPIStartGenerationConflict(t *testing.T) {
	f := newAPIFixture(t)
	hold := make(chan struct{})
	f.provider.mu.Lock()
	f.provider.submitHold = hold
	f.provider.mu.Unlock()

	first := f.post(t, "/api/generations", map[string]any{
		"subject_id": "subject-1",
		"script":     "script one",
	})
	if first.StatusCode != http.StatusAccepted {
		t.Fatalf("first status = %d", first.StatusCode)
	}
	first.Body.Close()

	second := f.post(t, "/api/generations", map[string]any{
		"subject_id": "subject-2",
		"script":     "script two",
	})
	if second.StatusCode != http.StatusConflict {
		t.Fatalf("second status = %d, want 409", second.StatusCode)
	}
	second.Body.Close()

	close(hold)
	waitForTerminalSession(t, f)
}

func TestAPICancelWithoutGeneration(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.post(t, "/api/generations/cancel", map[string]any{})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAPIJobEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	rec, err := f.store.CreatePending(context.Background(), "owner-test", "subject-7", "script")
	if err != nil {
		t.Fatalf("CreatePending: %v", err)
	}

	listResp := f.get(t, "/api/jobs?status=pending")
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", listResp.StatusCode)
	}
	list := decodeBody(t, listResp)
	if int(list["count"].(float64)) != 1 {
		t.Fatalf("count = %v", list["count"])
	}

	getResp := f.get(t, "/api/jobs/"+rec.ID)
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", getResp.StatusCode)
	}
	job := decodeBody(t, getResp)
	if job["id"] != rec.ID {
		t.Fatalf("job id = %v", job["id"])
	}

	missing := f.get(t, "/api/jobs/no-such-id")
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", missing.StatusCode)
	}
	missing.Body.Close()

	badFilter := f.get(t, "/api/jobs?status=bogus")
	if badFilter.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad filter status = %d, want 400", badFilter.StatusCode)
	}
	badFilter.Body.Close()
}

func TestAPIProgressFeedClosesAfterTerminal(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.post(t, "/api/generations", map[string]any{
		"subject_id": "subject-1",
		"script":     "feed test",
	})
	resp.Body.Close()
	waitForTerminalSession(t, f)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/generations/progress"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial progress feed: %v", err)
	}
	defer conn.Close()

	var snap generation.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !snap.State.IsTerminal() {
		t.Fatalf("expected a terminal snapshot, got %s", snap.State)
	}

	// Terminal snapshot delivered; the server closes the stream next.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&snap); err == nil {
		t.Fatal("stream should close after the terminal snapshot")
	}
}

func TestAPICurrentGenerationSnapshot(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.get(t, "/api/generations/current")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["state"] != string(generation.StateIdle) {
		t.Fatalf("state = %v, want idle", body["state"])
	}
}
