package console

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/edo"
	"github.com/mmdatafocus/kitchen_admin/edoclient"
	"github.com/mmdatafocus/kitchen_admin/utils"
)

// newConsole serves the console API against an EDO backend that answers 404 to everything.
func newConsole(t *testing.T) (*gin.Engine, *Registry) {
	t.Helper()
	backend := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(backend.Close)

	client := edoclient.NewClient(backend.URL+"/api/edo", 0, backend.Client())
	reg := NewRegistry(NewControllerFactory(client))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Stands in for the session middleware: the token header names the user directly.
	r.Use(func(c *gin.Context) {
		if user := c.GetHeader("token"); user != "" {
			c.Request = c.Request.WithContext(utils.SetUsernameInContext(c.Request.Context(), user))
		}
		c.Next()
	})
	RegisterRoutes(r, reg)
	return r, reg
}

const operator = "operator"

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doAs(t, r, operator, method, path, body)
}

// doAs sends the request as user; an empty user is anonymous.
func doAs(t *testing.T, r http.Handler, user, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("token", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type createResponse struct {
	SessionId string     `json:"sessionId"`
	Result    edo.Result `json:"result"`
}

func createSession(t *testing.T, r http.Handler) createResponse {
	t.Helper()
	rec := do(t, r, http.MethodPost, "/api/console/edo/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var out createResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	t.Setenv("DIADOC_API_TOKEN", "token")
	t.Setenv("DIADOC_BOX_ID", "")
	r, _ := newConsole(t)

	rec := do(t, r, http.MethodGet, "/api/console/edo/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := `{"environmentConfigured":false,"ok":true,"service":"diadoc-connector"}`
	if rec.Body.String() != want {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	t.Setenv("DIADOC_BOX_ID", "box-1")
	rec = do(t, r, http.MethodGet, "/api/console/edo/health", nil)
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"environmentConfigured":true`)) {
		t.Fatalf("expected configured, got %s", rec.Body.String())
	}
}

func TestCreateSession_FallsBackToSampleDocuments(t *testing.T) {
	r, reg := newConsole(t)
	out := createSession(t, r)

	if out.SessionId == "" || reg.Len() != 1 {
		t.Fatalf("expected one registered session, got id=%q len=%d", out.SessionId, reg.Len())
	}
	view := out.Result.View
	if len(view.Documents) != 1 || view.SelectedId != "sample-demo-001" {
		t.Fatalf("expected the sample document to be selected, got %+v", view.Documents)
	}
	if view.Banner == "" {
		t.Fatalf("expected offline banner")
	}
	if view.CatalogSize != len(edo.SeedCatalog()) {
		t.Fatalf("expected seed catalog, got %d products", view.CatalogSize)
	}
}

func TestIntent_SignInDemoMode(t *testing.T) {
	r, _ := newConsole(t)
	out := createSession(t, r)

	rec := do(t, r, http.MethodPost, "/api/console/edo/sessions/"+out.SessionId+"/intents", edo.Command{Intent: edo.IntentSignDoc})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var res edo.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.View.Selected == nil || res.View.Selected.Status != edo.StatusSigned {
		t.Fatalf("expected signed, got %+v", res.View.Selected)
	}
	if len(res.Notices) != 1 || res.Notices[0].Kind != edo.NoticeWarning {
		t.Fatalf("expected one demo warning, got %+v", res.Notices)
	}

	// The view endpoint reflects the same state.
	rec = do(t, r, http.MethodGet, "/api/console/edo/sessions/"+out.SessionId+"/view", nil)
	var view edo.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Selected == nil || view.Selected.Status != edo.StatusSigned {
		t.Fatalf("expected signed in view, got %+v", view.Selected)
	}
}

func TestIntent_ErrorsComeBackAsNotices(t *testing.T) {
	r, _ := newConsole(t)
	out := createSession(t, r)

	rec := do(t, r, http.MethodPost, "/api/console/edo/sessions/"+out.SessionId+"/intents", edo.Command{Intent: edo.IntentRejectDoc, Reason: "   "})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var res edo.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(res.Notices) != 1 || res.Notices[0].Kind != edo.NoticeError {
		t.Fatalf("expected one error notice, got %+v", res.Notices)
	}
	if res.View.Selected.Status == edo.StatusRejected {
		t.Fatalf("blank reason must not reject")
	}
}

func TestSessionRoutes_NotFoundAndBadRequest(t *testing.T) {
	r, reg := newConsole(t)

	if rec := do(t, r, http.MethodGet, "/api/console/edo/sessions/missing/view", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("view missing: expected 404, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodDelete, "/api/console/edo/sessions/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing: expected 404, got %d", rec.Code)
	}

	out := createSession(t, r)
	if rec := do(t, r, http.MethodPost, "/api/console/edo/sessions/"+out.SessionId+"/intents", "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodDelete, "/api/console/edo/sessions/"+out.SessionId, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if reg.Len() != 0 {
		t.Fatalf("expected registry to be empty, got %d", reg.Len())
	}
}

func TestJournalRoutes_WithoutDatabase(t *testing.T) {
	if config.GetDB() != nil {
		t.Skip("database connected")
	}
	r, _ := newConsole(t)
	for _, path := range []string{
		"/api/console/edo/documents/doc-1/activity",
		"/api/console/edo/documents/doc-1/events",
	} {
		if rec := do(t, r, http.MethodGet, path, nil); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", path, rec.Code)
		}
	}
	// Reprocess requires a signed-in user first.
	if rec := doAs(t, r, "", http.MethodPost, "/api/console/edo/documents/doc-1/events/reprocess", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reprocess: expected 401, got %d", rec.Code)
	}
}

func TestRegistry_Expire(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(backend.Close)
	client := edoclient.NewClient(backend.URL, 0, backend.Client())

	now := time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)
	reg := NewRegistry(NewControllerFactory(client))
	reg.now = func() time.Time { return now }

	idle, _ := reg.Create(context.Background(), operator)
	now = now.Add(90 * time.Minute)
	active, _ := reg.Create(context.Background(), operator)

	now = now.Add(45 * time.Minute)
	if _, ok := reg.Get(active, operator); !ok {
		t.Fatalf("expected active session")
	}
	if dropped := reg.Expire(2 * time.Hour); dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}
	if _, ok := reg.Get(idle, operator); ok {
		t.Fatalf("idle session should be gone")
	}
	if _, ok := reg.Get(active, operator); !ok {
		t.Fatalf("active session should survive")
	}
}

func TestSessionRoutes_RequireOwner(t *testing.T) {
	r, reg := newConsole(t)

	if rec := doAs(t, r, "", http.MethodPost, "/api/console/edo/sessions", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: expected 401, got %d", rec.Code)
	}
	if reg.Len() != 0 {
		t.Fatalf("anonymous create must not open a session")
	}

	out := createSession(t, r)
	base := "/api/console/edo/sessions/" + out.SessionId
	sign := edo.Command{Intent: edo.IntentSignDoc}

	cases := []struct {
		name   string
		user   string
		method string
		path   string
		body   any
		status int
	}{
		{"anonymous view", "", http.MethodGet, base + "/view", nil, http.StatusUnauthorized},
		{"anonymous intent", "", http.MethodPost, base + "/intents", sign, http.StatusUnauthorized},
		{"anonymous delete", "", http.MethodDelete, base, nil, http.StatusUnauthorized},
		{"other user view", "intruder", http.MethodGet, base + "/view", nil, http.StatusNotFound},
		{"other user intent", "intruder", http.MethodPost, base + "/intents", sign, http.StatusNotFound},
		{"other user delete", "intruder", http.MethodDelete, base, nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		if rec := doAs(t, r, tc.user, tc.method, tc.path, tc.body); rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
	}

	// None of the refused calls touched the session.
	rec := do(t, r, http.MethodGet, base+"/view", nil)
	var view edo.View
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Selected == nil || view.Selected.Status == edo.StatusSigned {
		t.Fatalf("expected unsigned document, got %+v", view.Selected)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected the session to survive, got %d", reg.Len())
	}
}
