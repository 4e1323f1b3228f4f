package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"holocap/internal/api"
	"holocap/internal/config"
	"holocap/internal/logging"
	"holocap/internal/metrics"
	"holocap/internal/preflight"
	"holocap/internal/queue"
	"holocap/internal/stage"
	"holocap/internal/stream"
	"holocap/internal/testsupport"
	"holocap/internal/workflow"
)

type idleStage struct{}

func (idleStage) Prepare(context.Context, *queue.Recording) error { return nil }
func (idleStage) Execute(context.Context, *queue.Recording) error { return nil }
func (idleStage) HealthCheck(context.Context) stage.Health        { return stage.Healthy("sync") }

func newAPITestServer(t *testing.T, mutate func(*config.Config), opts ...Option) (*Daemon, *httptest.Server) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStreams("imu_gyro"))
	if mutate != nil {
		mutate(cfg)
	}
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, nil, workflow.WithPreflight(func(*config.Config) []preflight.Result { return nil }))
	mgr.ConfigureStages(workflow.StageSet{Sync: idleStage{}})

	gyro := &testsupport.FakeSource{Packets: testsupport.Sequence(100, 10, 3, []byte{1}, false), Block: true}
	opener := &testsupport.FakeOpener{Sources: map[stream.Kind]*testsupport.FakeSource{stream.KindGyro: gyro}}
	opts = append([]Option{WithOpener(opener.Opener())}, opts...)
	d, err := New(cfg, store, nil, mgr, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.apiServer == nil {
		t.Fatal("expected api server for non-empty bind")
	}
	srv := httptest.NewServer(d.apiServer.server.Handler)
	t.Cleanup(func() {
		srv.Close()
		d.Close()
	})
	return d, srv
}

func doRequest(t *testing.T, method, url, token, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestAPIRequiresBearerToken(t *testing.T) {
	_, srv := newAPITestServer(t, func(cfg *config.Config) { cfg.Paths.APIToken = "s3cret" })

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/api/status", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/api/status", "wrong", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status with wrong token = %d", resp.StatusCode)
	}
	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/status", "s3cret", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status with token = %d: %s", resp.StatusCode, body)
	}
	var payload api.DaemonStatus
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if payload.Session.State != "idle" || payload.DeviceMode != config.DeviceModeSimulated {
		t.Fatalf("unexpected status %+v", payload)
	}
}

func TestAPIListAndDescribeRecordings(t *testing.T) {
	d, srv := newAPITestServer(t, nil)
	captured := testsupport.NewRecording(t, d.store, d.cfg, "one", queue.StatusCaptured)
	testsupport.NewRecording(t, d.store, d.cfg, "two", queue.StatusSynced)

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/recordings?status=captured", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list = %d: %s", resp.StatusCode, body)
	}
	var list api.RecordingListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Recordings) != 1 || list.Recordings[0].ID != captured.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/api/recordings?status=bogus", "", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus status filter = %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/api/recordings/9999", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing recording = %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/api/recordings/abc", "", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid id = %d", resp.StatusCode)
	}
}

func TestAPIStartStopRecording(t *testing.T) {
	_, srv := newAPITestServer(t, nil)

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/recordings/stop", "", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stop while idle = %d", resp.StatusCode)
	}

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/recordings/start", "", `{"name":"kitchen"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start = %d: %s", resp.StatusCode, body)
	}
	var info api.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil || info.Name != "kitchen" {
		t.Fatalf("start payload %s, %v", body, err)
	}
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/recordings/start", "", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second start = %d", resp.StatusCode)
	}

	resp, body = doRequest(t, http.MethodPost, srv.URL+"/api/recordings/stop", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop = %d: %s", resp.StatusCode, body)
	}
	var summary api.SessionSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Name != "kitchen" || summary.Result != "ok" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestAPISyncRejectsUnknownRecording(t *testing.T) {
	d, srv := newAPITestServer(t, nil)
	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/recordings/42/sync", "", "")
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(body), "validation") {
		t.Fatalf("sync unknown = %d: %s", resp.StatusCode, body)
	}

	rec := testsupport.NewRecording(t, d.store, d.cfg, "redo", queue.StatusFailed)
	resp, body = doRequest(t, http.MethodPost, srv.URL+"/api/recordings/"+strconv.FormatInt(rec.ID, 10)+"/sync", "", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("sync = %d: %s", resp.StatusCode, body)
	}
}

func TestAPIMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	d, srv := newAPITestServer(t, func(cfg *config.Config) { cfg.Metrics.Enabled = true }, WithMetrics(m))
	testsupport.NewRecording(t, d.store, d.cfg, "counted", queue.StatusCaptured)

	doRequest(t, http.MethodGet, srv.URL+"/api/recordings/0", "", "")
	resp, body := doRequest(t, http.MethodGet, srv.URL+"/metrics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
	text := string(body)
	if !strings.Contains(text, `holocap_recordings{status="captured"} 1`) {
		t.Fatalf("catalogue gauge missing:\n%s", text)
	}
	if !strings.Contains(text, "holocap_api_errors_total 1") {
		t.Fatalf("error counter missing:\n%s", text)
	}
}

func TestAPILogsFiltersByRecording(t *testing.T) {
	hub := logging.NewStreamHub(16)
	hub.Publish(logging.LogEvent{Message: "a", RecordingID: "alpha", Component: "session"})
	hub.Publish(logging.LogEvent{Message: "b", RecordingID: "beta", Component: "session"})
	hub.Publish(logging.LogEvent{Message: "c", RecordingID: "alpha", Component: "workflow"})
	_, srv := newAPITestServer(t, nil, WithLogStream(hub, nil))

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/logs?tail=1&recording=alpha", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logs = %d: %s", resp.StatusCode, body)
	}
	var payload api.LogStreamResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(payload.Events) != 2 || payload.Events[0].Message != "a" || payload.Events[1].Message != "c" {
		t.Fatalf("unexpected events %+v", payload.Events)
	}
	if payload.Next != 3 {
		t.Fatalf("next = %d, want 3", payload.Next)
	}

	_, body = doRequest(t, http.MethodGet, srv.URL+"/api/logs?since=1&component=workflow", "", "")
	payload = api.LogStreamResponse{}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(payload.Events) != 1 || payload.Events[0].Message != "c" {
		t.Fatalf("unexpected filtered events %+v", payload.Events)
	}
}
