package main

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dilipdevops/portfolio/internal/content"
	"github.com/dilipdevops/portfolio/internal/events"
	"github.com/dilipdevops/portfolio/internal/form"
	"github.com/dilipdevops/portfolio/internal/page"
	"github.com/dilipdevops/portfolio/internal/store"
	"github.com/dilipdevops/portfolio/internal/submission"
)

const fallbackEmail = "dilipbca99@gmail.com"

func init() {
	gin.SetMode(gin.TestMode)
}

type relayStub struct {
	mu       sync.Mutex
	status   int
	requests []url.Values
}

func (rs *relayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	rs.mu.Lock()
	rs.requests = append(rs.requests, url.Values(r.MultipartForm.Value))
	status := rs.status
	rs.mu.Unlock()
	w.WriteHeader(status)
}

func (rs *relayStub) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.requests)
}

type testEnv struct {
	app        *App
	router     *gin.Engine
	relay      *relayStub
	clock      *form.ManualClock
	contacts   *submission.KVLog
	interviews *submission.KVLog
}

func newTestEnv(t *testing.T, relayStatus int) *testEnv {
	t.Helper()

	relay := &relayStub{status: relayStatus}
	relaySrv := httptest.NewServer(relay)
	t.Cleanup(relaySrv.Close)

	db, err := store.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	site, err := content.Default()
	require.NoError(t, err)

	contacts := submission.NewKVLog(db, submission.ContactBackupKey)
	interviews := submission.NewKVLog(db, submission.InterviewBackupKey)
	pipeline := submission.New(
		submission.NewFormRelay(relaySrv.URL+"/code", 5*time.Second),
		contacts, interviews,
		submission.Config{NextURL: "https://formsubmit.co/thankyou", FallbackEmail: fallbackEmail},
	)

	clock := &form.ManualClock{}
	cfg := page.DefaultConfig()
	cfg.Clock = clock
	contentStore := content.NewStore(site)
	pages := page.NewRegistry(contentStore, pipeline, cfg, 30*time.Minute)

	app := &App{Pages: pages, Content: contentStore, Health: db}
	router, err := app.Router()
	require.NoError(t, err)

	return &testEnv{
		app:        app,
		router:     router,
		relay:      relay,
		clock:      clock,
		contacts:   contacts,
		interviews: interviews,
	}
}

func (e *testEnv) mount(t *testing.T) *page.Page {
	t.Helper()
	p, err := e.app.Pages.Create()
	require.NoError(t, err)
	t.Cleanup(func() { e.app.Pages.Close(p.ID) })
	return p
}

func (e *testEnv) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func backupCount(t *testing.T, l *submission.KVLog) int {
	t.Helper()
	records, err := l.LoadAll(context.Background())
	require.NoError(t, err)
	return len(records)
}

func TestIndexMountsPage(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	w := env.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, env.app.Pages.Len())

	body := w.Body.String()
	for _, id := range []string{"hero", "about", "tech", "projects", "pipelines", "experience", "contact"} {
		assert.Contains(t, body, `id="`+id+`"`)
	}
	assert.Contains(t, body, "data-reveal")
	assert.Contains(t, body, `data-root-margin="0px 0px -100px 0px"`)
	assert.Contains(t, body, "transition-delay: 100ms; transition-duration: 600ms;")
	assert.Contains(t, body, "opacity-0 translate-y-8")
	assert.Contains(t, body, "Schedule Interview")
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	w := env.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","pages":0,"sections":7}`, w.Body.String())
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	w := env.do(http.MethodGet, "/static/site.js", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "IntersectionObserver")
}

func TestIntersectRevealsSectionOnce(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)
	target := "/p/" + p.ID + "/sections/about/intersect"

	w := env.do(http.MethodPost, target, url.Values{"visible": {"true"}, "ratio": {"0.25"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "opacity-100 translate-y-0")
	assert.Contains(t, body, `data-visible="true"`)
	assert.NotContains(t, body, "data-reveal", "a revealed one-shot section stops reporting")

	w = env.do(http.MethodPost, target, url.Values{"visible": {"false"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "opacity-100 translate-y-0")
}

func TestIntersectErrors(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)

	w := env.do(http.MethodPost, "/p/"+p.ID+"/sections/nope/intersect", url.Values{"visible": {"true"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/p/"+p.ID+"/sections/about/intersect", url.Values{"ratio": {"7"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/p/expired/sections/about/intersect", url.Values{"visible": {"true"}})
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "true", w.Header().Get("HX-Refresh"))
}

func contactValues() url.Values {
	return url.Values{
		"name":    {"Ann"},
		"email":   {"ann@example.com"},
		"subject": {"Hello"},
		"message": {"Let's talk"},
	}
}

func TestContactEndToEnd(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)

	w := env.do(http.MethodPost, "/p/"+p.ID+"/contact", contactValues())
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, submission.SuccessMessage)
	assert.Contains(t, body, `name="name" type="text" value=""`)
	assert.NotContains(t, body, "Ann")

	assert.Equal(t, 1, env.relay.count())
	assert.Equal(t, "Portfolio Contact: Hello", env.relay.requests[0].Get("subject"))
	assert.Equal(t, 1, backupCount(t, env.contacts))
	assert.Equal(t, form.StatusSuccess, p.Contact().Status)

	env.clock.Advance(8 * time.Second)
	w = env.do(http.MethodGet, "/p/"+p.ID+"/contact/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), submission.SuccessMessage)
	assert.NotContains(t, w.Body.String(), "hx-trigger", "idle status stops polling")
}

func TestContactValidationBlocksPipeline(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)

	values := contactValues()
	values.Set("email", "not-an-email")
	w := env.do(http.MethodPost, "/p/"+p.ID+"/contact", values)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Please enter a valid email address.")
	assert.Contains(t, body, `value="Ann"`)
	assert.Equal(t, 0, env.relay.count())
	assert.Equal(t, 0, backupCount(t, env.contacts))
	assert.Equal(t, form.StatusIdle, p.Contact().Status)
}

func TestContactRelayFailure(t *testing.T) {
	env := newTestEnv(t, http.StatusInternalServerError)
	p := env.mount(t)

	w := env.do(http.MethodPost, "/p/"+p.ID+"/contact", contactValues())
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "HTTP 500 You can also contact me directly at "+fallbackEmail)
	assert.Contains(t, body, `value="Ann"`)
	assert.Equal(t, 1, backupCount(t, env.contacts), "backup is kept even when the relay fails")
	assert.Equal(t, form.StatusError, p.Contact().Status)
}

func interviewValues() url.Values {
	return url.Values{
		"name":    {"Bob"},
		"email":   {"bob@example.com"},
		"company": {"Acme"},
		"date":    {"2025-03-07"},
		"time":    {"14:30"},
		"type":    {"virtual"},
	}
}

func TestInterviewOfflineNeedsLocation(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)
	p.OpenInterview()

	values := interviewValues()
	values.Set("type", "offline")
	w := env.do(http.MethodPost, "/p/"+p.ID+"/interview", values)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	assert.Contains(t, w.Body.String(), "Location is required for in-person interviews.")
	assert.Equal(t, 0, env.relay.count())
	assert.Equal(t, 0, backupCount(t, env.interviews))
	assert.Equal(t, submission.InterviewOffline, p.Interview().Values.Type)
}

func TestInterviewOfflineBlankLocation(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)
	p.OpenInterview()

	values := interviewValues()
	values.Set("type", "offline")
	values.Set("location", "   ")
	w := env.do(http.MethodPost, "/p/"+p.ID+"/interview", values)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	assert.Contains(t, w.Body.String(), "Location is required for in-person interviews.")
	assert.Equal(t, 0, env.relay.count())
	assert.Equal(t, 0, backupCount(t, env.interviews))
}

func TestInterviewBadDate(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)
	p.OpenInterview()

	values := interviewValues()
	values.Set("date", "07/03/2025")
	w := env.do(http.MethodPost, "/p/"+p.ID+"/interview", values)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 0, env.relay.count())
}

func TestInterviewSuccessClosesModal(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)
	p.OpenInterview()

	w := env.do(http.MethodPost, "/p/"+p.ID+"/interview", interviewValues())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), submission.SuccessMessage)

	require.Equal(t, 1, env.relay.count())
	sent := env.relay.requests[0]
	assert.Equal(t, "Interview Request - Acme", sent.Get("subject"))
	assert.Contains(t, sent.Get("message"), "Date: 3/7/2025")
	assert.NotContains(t, sent.Get("message"), "Location:")
	assert.Equal(t, 1, backupCount(t, env.interviews))

	env.clock.Advance(2 * time.Second)
	assert.False(t, p.InterviewOpen())
	w = env.do(http.MethodGet, "/p/"+p.ID+"/interview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "interview-modal")
}

func TestCloseInterview(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)
	p.OpenInterview()

	w := env.do(http.MethodGet, "/p/"+p.ID+"/interview", nil)
	assert.Contains(t, w.Body.String(), "Schedule an Interview")

	w = env.do(http.MethodPost, "/p/"+p.ID+"/interview/close", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Schedule an Interview")
	assert.False(t, p.InterviewOpen())
}

func TestScheduleOpensModal(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)

	w := env.do(http.MethodPost, "/p/"+p.ID+"/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Scheduling...")
	assert.Contains(t, w.Body.String(), "disabled")

	env.clock.Advance(2 * time.Second)
	assert.True(t, p.InterviewOpen())
	w = env.do(http.MethodGet, "/p/"+p.ID+"/schedule", nil)
	assert.Contains(t, w.Body.String(), "Opening form")

	env.clock.Advance(time.Second)
	w = env.do(http.MethodGet, "/p/"+p.ID+"/schedule", nil)
	assert.Contains(t, w.Body.String(), "Schedule Interview")
}

func TestTechFilter(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)

	w := env.do(http.MethodGet, "/p/"+p.ID+"/tech?category=security", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Trivy")
	assert.NotContains(t, w.Body.String(), `data-category="iac"`)

	w = env.do(http.MethodGet, "/p/"+p.ID+"/tech?category=cobol", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClosePage(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)

	w := env.do(http.MethodPost, "/p/"+p.ID+"/close", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, env.app.Pages.Len())

	w = env.do(http.MethodGet, "/p/"+p.ID+"/contact", nil)
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	p := env.mount(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/p/"+p.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(want string) {
		t.Helper()
		for lines.Scan() {
			if lines.Text() == want {
				return
			}
		}
		t.Fatalf("stream ended before %q", want)
	}

	waitFor("event:ready")
	p.Bus().Emit(events.OpenInterviewModal, nil)
	waitFor("event:" + events.OpenInterviewModal)
	assert.True(t, p.InterviewOpen())
}
