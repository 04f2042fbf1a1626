package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/linkreach/api"
	"github.com/hazyhaar/linkreach/autopilot"
	"github.com/hazyhaar/linkreach/processor"
	"github.com/hazyhaar/linkreach/quota"
	"github.com/hazyhaar/linkreach/store"
	"github.com/hazyhaar/linkreach/store/storetest"
)

// idleProc accepts page commands and does nothing: the API tests exercise
// the control surface, not page processing.
type idleProc struct{}

func (idleProc) Begin(context.Context, processor.Job) error { return nil }
func (idleProc) Stop()                                      {}
func (idleProc) NextPage(context.Context)                   {}

type harness struct {
	srv *httptest.Server
	st  *store.Store
	rt  *autopilot.Runtime
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := storetest.Open(t)
	st.Now = func() time.Time {
		return time.Date(2026, 3, 10, 11, 0, 0, 0, time.Local)
	}
	eng := quota.New(st)
	rt := autopilot.NewRuntime(autopilot.Config{
		Store:     st,
		Quota:     eng,
		Processor: idleProc{},
		Attach:    func(context.Context, string) error { return nil },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rt.Run(ctx)
	}()

	srv := httptest.NewServer(api.NewServer(st, eng, rt, nil, nil).Router())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return &harness{srv: srv, st: st, rt: rt}
}

func (h *harness) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		out = nil
	}
	return resp.StatusCode, out
}

func TestStatusReportsEffectiveLimit(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(t, "GET", "/api/status", "")
	if code != 200 {
		t.Fatalf("status code %d: %v", code, body)
	}
	if body["phase"] != "idle" {
		t.Fatalf("phase = %v", body["phase"])
	}
	// Defaults: warmup day 1 caps the limit at 5 out of 25.
	if body["dailyLimit"] != float64(5) {
		t.Fatalf("dailyLimit = %v, want 5", body["dailyLimit"])
	}
	if body["dailySent"] != float64(0) {
		t.Fatalf("dailySent = %v", body["dailySent"])
	}
}

func TestStartStopFlow(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(t, "POST", "/api/automation/start",
		`{"searchUrl":"https://example.com/search?keywords=go"}`)
	if code != 200 {
		t.Fatalf("start: %d %v", code, body)
	}

	code, body = h.do(t, "GET", "/api/status", "")
	if code != 200 || body["phase"] != "running" {
		t.Fatalf("status after start: %d %v", code, body)
	}

	// Starting again while running conflicts.
	code, body = h.do(t, "POST", "/api/automation/start",
		`{"searchUrl":"https://example.com/search"}`)
	if code != 409 || body["error"] != "already_running" {
		t.Fatalf("double start: %d %v", code, body)
	}

	code, _ = h.do(t, "POST", "/api/automation/stop", "")
	if code != 200 {
		t.Fatalf("stop: %d", code)
	}
	_, body = h.do(t, "GET", "/api/status", "")
	if body["phase"] != "idle" {
		t.Fatalf("status after stop: %v", body)
	}
}

func TestStartRejectsMissingTemplate(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(t, "POST", "/api/automation/start",
		`{"searchUrl":"https://example.com/search","templateId":"tpl_missing"}`)
	if code != 422 || body["error"] != "template_not_found" {
		t.Fatalf("got %d %v", code, body)
	}
}

func TestSettingsPartialUpdate(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(t, "PUT", "/api/settings", `{"dailyLimit":50}`)
	if code != 200 {
		t.Fatalf("put settings: %d %v", code, body)
	}
	if body["dailyLimit"] != float64(50) {
		t.Fatalf("dailyLimit = %v", body["dailyLimit"])
	}
	// Untouched fields keep their defaults.
	if body["weeklyLimit"] != float64(100) {
		t.Fatalf("weeklyLimit = %v", body["weeklyLimit"])
	}

	code, body = h.do(t, "PUT", "/api/settings", `{"dailyLimit":0}`)
	if code != 422 {
		t.Fatalf("invalid settings accepted: %d %v", code, body)
	}
}

func TestTemplateLifecycle(t *testing.T) {
	h := newHarness(t)

	// Listing seeds the default template.
	code, _ := h.do(t, "GET", "/api/templates", "")
	if code != 200 {
		t.Fatalf("list: %d", code)
	}

	code, body := h.do(t, "POST", "/api/templates",
		`{"name":"Short","body":"Hi {{firstName}}!"}`)
	if code != 201 {
		t.Fatalf("create: %d %v", code, body)
	}
	id, _ := body["id"].(string)
	if !strings.HasPrefix(id, "tpl_") {
		t.Fatalf("template id = %q", id)
	}

	code, body = h.do(t, "POST", "/api/templates", `{"name":"","body":""}`)
	if code != 422 {
		t.Fatalf("empty template accepted: %d %v", code, body)
	}

	code, _ = h.do(t, "DELETE", "/api/templates/"+id, "")
	if code != 200 {
		t.Fatalf("delete: %d", code)
	}
}

func TestContactsList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.st.RecordContact(ctx, store.Contact{
		ProfileKey: "https://example.com/in/jane",
		Name:       "Jane Doe",
		Status:     store.StatusSent,
	})
	if err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest("GET", h.srv.URL+"/api/contacts", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var contacts []store.Contact
	if err := json.NewDecoder(resp.Body).Decode(&contacts); err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 || contacts[0].Name != "Jane Doe" {
		t.Fatalf("contacts: %+v", contacts)
	}
}

func TestDashboardVerifyUnconfigured(t *testing.T) {
	h := newHarness(t)

	code, body := h.do(t, "POST", "/api/dashboard/verify", "")
	if code != 422 || body["error"] != "dashboard_not_configured" {
		t.Fatalf("got %d %v", code, body)
	}
}
