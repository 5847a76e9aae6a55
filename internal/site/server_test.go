package site

import (
	"bufio"
	"bytes"
	"context"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/patternlab/internal/catalog"
	"github.com/rendis/patternlab/internal/engine"
	"github.com/rendis/patternlab/internal/scheduler"
	"github.com/rendis/patternlab/pkg/schema"
)

type testSite struct {
	server   *Server
	registry *engine.Registry
	clock    *clockwork.FakeClock
	http     *httptest.Server
}

func newTestSite(t *testing.T, maxViews int, opts ...engine.RegistryOption) *testSite {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := catalog.Load(catalog.Embedded(), catalog.WithLogger(logger))
	require.NoError(t, err)

	ts := &testSite{clock: clockwork.NewFakeClock()}
	opts = append([]engine.RegistryOption{engine.WithRegistryClock(ts.clock)}, opts...)
	ts.registry = engine.NewRegistry(maxViews, logger, opts...)
	ts.server, err = NewServer(Deps{
		Catalog:  cat,
		Registry: ts.registry,
		Cadence:  scheduler.Every(scheduler.DefaultCadence),
		Clock:    ts.clock,
		Logger:   logger,
	})
	require.NoError(t, err)

	ts.http = httptest.NewServer(ts.server.Handler())
	t.Cleanup(func() {
		ts.http.Close()
		ts.registry.CloseAll()
	})
	return ts
}

func (ts *testSite) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.http.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testSite) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.http.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testSite) mount(t *testing.T, topic string) viewResponse {
	t.Helper()
	resp := ts.post(t, "/api/views", `{"topic":"`+topic+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[viewResponse](t, resp)
}

func TestIndexPage(t *testing.T) {
	ts := newTestSite(t, 0)
	resp := ts.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Architecture Patterns")
	assert.Contains(t, string(body), `href="/topics/event-driven"`)
	assert.Contains(t, string(body), "Event-Driven vs Request/Response")
}

func TestTopicPage(t *testing.T) {
	ts := newTestSite(t, 0)
	resp := ts.get(t, "/topics/event-driven")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	assert.Contains(t, page, `data-topic="event-driven"`)
	assert.Contains(t, page, "<svg")
	assert.Contains(t, page, "Client needs data from service")
	assert.Contains(t, page, "Step 1 / 4")
	assert.Contains(t, page, "width: 25.0%")
	assert.Contains(t, page, "<strong>request/response</strong>")
	assert.Contains(t, page, `data-mode="event"`)
}

func TestTopicPage_NotFound(t *testing.T) {
	ts := newTestSite(t, 0)
	resp := ts.get(t, "/topics/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaticAssets(t *testing.T) {
	ts := newTestSite(t, 0)
	for _, path := range []string{"/static/site.css", "/static/app.js"} {
		resp := ts.get(t, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestDiagramRenders(t *testing.T) {
	ts := newTestSite(t, 0)

	t.Run("svg", func(t *testing.T) {
		resp := ts.get(t, "/topics/event-driven/diagram.svg?mode=event&step=2")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "Event bus distributes to all subscribers")
	})

	t.Run("png", func(t *testing.T) {
		resp := ts.get(t, "/topics/event-driven/diagram.png")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_, err := png.Decode(resp.Body)
		assert.NoError(t, err)
	})

	t.Run("mermaid", func(t *testing.T) {
		resp := ts.get(t, "/topics/event-driven/diagram.mmd?mode=request&step=1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.True(t, strings.HasPrefix(string(body), "flowchart LR"))
	})

	t.Run("topology", func(t *testing.T) {
		resp := ts.get(t, "/topics/event-driven/topology.png?mode=event")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	})
}

func TestDiagramRenders_Errors(t *testing.T) {
	ts := newTestSite(t, 0)
	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/topics/event-driven/diagram.svg?step=abc", http.StatusBadRequest, schema.ErrCodeValidation},
		{"/topics/event-driven/diagram.svg?step=9", http.StatusBadRequest, schema.ErrCodeValidation},
		{"/topics/event-driven/diagram.svg?mode=saga", http.StatusNotFound, schema.ErrCodeNotFound},
		{"/topics/nope/diagram.png", http.StatusNotFound, schema.ErrCodeNotFound},
		{"/topics/nope/topology.png", http.StatusNotFound, schema.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := ts.get(t, tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[map[string]any](t, resp)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestViewLifecycle(t *testing.T) {
	ts := newTestSite(t, 0)
	view := ts.mount(t, "event-driven")
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, schema.DiagramMode("request"), view.Snapshot.Mode)
	assert.Equal(t, 0, view.Snapshot.Step)
	assert.Equal(t, "Step 1 / 4", view.Label)
	assert.Equal(t, "Client needs data from service", view.Caption)
	assert.Contains(t, view.SVG, "<svg")
	assert.Equal(t, 1, ts.registry.Len())

	base := "/api/views/" + view.ID

	resp := ts.post(t, base+"/next", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[viewResponse](t, resp)
	assert.Equal(t, 1, view.Snapshot.Step)
	assert.Equal(t, "Client sends request (blocks and waits)", view.Caption)

	resp = ts.post(t, base+"/mode", `{"mode":"event"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[viewResponse](t, resp)
	assert.Equal(t, schema.DiagramMode("event"), view.Snapshot.Mode)
	assert.Equal(t, 0, view.Snapshot.Step)
	assert.Equal(t, 5, view.Snapshot.TotalSteps)

	resp = ts.post(t, base+"/toggle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[viewResponse](t, resp)
	assert.True(t, view.Snapshot.IsPlaying)

	resp = ts.post(t, base+"/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[viewResponse](t, resp)
	assert.False(t, view.Snapshot.IsPlaying)
	assert.Equal(t, 0, view.Snapshot.Step)

	resp = ts.get(t, base)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, schema.DiagramMode("event"), decode[viewResponse](t, resp).Snapshot.Mode)

	resp = ts.post(t, base+"/close", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, ts.registry.Len())
	assert.Contains(t, ts.get(t, "/healthz").Header.Get("Content-Type"), "application/json")

	resp = ts.post(t, base+"/next", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = ts.post(t, base+"/close", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestView_AutoAdvance(t *testing.T) {
	ts := newTestSite(t, 0)
	view := ts.mount(t, "event-driven")
	base := "/api/views/" + view.ID

	resp := ts.post(t, base+"/toggle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ts.clock.Advance(scheduler.DefaultCadence)
	require.Eventually(t, func() bool {
		v, err := ts.registry.Get(view.ID)
		return err == nil && v.Snapshot().Step == 1
	}, time.Second, 5*time.Millisecond)
}

func TestView_AbandonedMountIsClosed(t *testing.T) {
	ts := newTestSite(t, 1, engine.WithIdleTimeout(time.Minute))
	baseline := scheduler.ActiveTimers()

	view := ts.mount(t, "event-driven")
	resp := ts.post(t, "/api/views/"+view.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, baseline+1, scheduler.ActiveTimers())

	resp = ts.post(t, "/api/views", `{"topic":"fanout"}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// No stream is ever opened for the view.
	ts.clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		return ts.registry.Len() == 0 && scheduler.ActiveTimers() == baseline
	}, 2*time.Second, 5*time.Millisecond)

	resp = ts.get(t, "/api/views/"+view.ID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	ts.mount(t, "fanout")
}

func TestDescribe_RendersGivenSnapshot(t *testing.T) {
	ts := newTestSite(t, 0)
	view := ts.mount(t, "event-driven")
	older := view.Snapshot

	resp := ts.post(t, "/api/views/"+view.ID+"/next", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v, err := ts.registry.Get(view.ID)
	require.NoError(t, err)

	got := ts.server.describe(v, older, true)
	assert.Equal(t, 0, got.Snapshot.Step)
	assert.Equal(t, "Client needs data from service", got.Caption)

	svg, err := io.ReadAll(ts.get(t, "/topics/event-driven/diagram.svg?mode=request&step=0").Body)
	require.NoError(t, err)
	assert.Equal(t, string(svg), got.SVG, "svg matches the described step, not the current one")
	assert.NotEqual(t, ts.server.describe(v, v.Snapshot(), true).SVG, got.SVG)
}

func TestMountView_Errors(t *testing.T) {
	ts := newTestSite(t, 1)

	resp := ts.post(t, "/api/views", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.post(t, "/api/views", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.post(t, "/api/views", `{"topic":"nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.post(t, "/api/views", `{"topic":"event-driven","mode":"saga"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Eventually(t, func() bool { return ts.registry.Len() == 0 }, time.Second, 5*time.Millisecond,
		"failed mode switch must not leak a view")

	resp = ts.post(t, "/api/views", `{"topic":"event-driven","mode":"event"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, schema.DiagramMode("event"), decode[viewResponse](t, resp).Snapshot.Mode)

	resp = ts.post(t, "/api/views", `{"topic":"fanout"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSetMode_Unknown(t *testing.T) {
	ts := newTestSite(t, 0)
	view := ts.mount(t, "event-driven")
	resp := ts.post(t, "/api/views/"+view.ID+"/mode", `{"mode":"saga"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListTopics(t *testing.T) {
	ts := newTestSite(t, 0)

	resp := ts.get(t, "/api/topics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := decode[struct {
		Topics []schema.TopicSummary `json:"topics"`
		Count  int                   `json:"count"`
	}](t, resp)
	assert.Equal(t, 8, all.Count)
	assert.Equal(t, "event-driven", all.Topics[0].ID)

	resp = ts.get(t, "/api/topics?q=.id+%3D%3D+%22fanout%22")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	one := decode[struct {
		Count int `json:"count"`
	}](t, resp)
	assert.Equal(t, 1, one.Count)

	resp = ts.get(t, "/api/topics?q=.id+%3D%3D")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.get(t, "/api/topics/fanout")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	topic := decode[schema.TopicDefinition](t, resp)
	assert.Equal(t, "fanout", topic.ID)

	resp = ts.get(t, "/api/topics/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newTestSite(t, 0)
	ts.mount(t, "fanout")

	resp := ts.get(t, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 8, body["topics"])
	assert.EqualValues(t, 1, body["views"])
}

func TestSetCatalog(t *testing.T) {
	ts := newTestSite(t, 0)
	before := ts.server.Catalog()
	cat, err := catalog.Load(catalog.Embedded())
	require.NoError(t, err)
	ts.server.SetCatalog(cat)
	assert.NotSame(t, before, ts.server.Catalog())
	assert.Same(t, cat, ts.server.Catalog())
}

type sseEvent struct {
	name string
	view viewResponse
}

func readSSE(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.view))
		case line == "":
			if ev.name != "" {
				return ev
			}
		}
	}
}

func TestSSE_StreamsTransitions(t *testing.T) {
	ts := newTestSite(t, 0)
	view := ts.mount(t, "event-driven")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.http.URL+"/sse/views/"+view.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	first := readSSE(t, r)
	assert.Equal(t, "view.snapshot", first.name)
	assert.Equal(t, 0, first.view.Snapshot.Step)

	ts.post(t, "/api/views/"+view.ID+"/next", "")
	ev := readSSE(t, r)
	assert.Equal(t, schema.EventViewAdvanced, ev.name)
	assert.Equal(t, 1, ev.view.Snapshot.Step)
	assert.Equal(t, "Client sends request (blocks and waits)", ev.view.Caption)

	ts.post(t, "/api/views/"+view.ID+"/toggle", "")
	ev = readSSE(t, r)
	assert.Equal(t, schema.EventViewPlaying, ev.name)

	ts.clock.Advance(scheduler.DefaultCadence)
	ev = readSSE(t, r)
	assert.Equal(t, schema.EventViewAdvanced, ev.name)
	assert.Equal(t, 2, ev.view.Snapshot.Step)

	ts.post(t, "/api/views/"+view.ID+"/close", "")
	ev = readSSE(t, r)
	assert.Equal(t, schema.EventViewClosed, ev.name)
}

// openSSE connects to a view's stream and consumes the initial snapshot.
func (ts *testSite) openSSE(t *testing.T, id string) (sseEvent, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.http.URL+"/sse/views/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return readSSE(t, bufio.NewReader(resp.Body)), cancel
}

func TestSSE_ReconnectResumesView(t *testing.T) {
	ts := newTestSite(t, 0, engine.WithIdleTimeout(time.Minute))
	view := ts.mount(t, "fanout")
	ts.post(t, "/api/views/"+view.ID+"/next", "")

	_, cancel := ts.openSSE(t, view.ID)
	cancel()

	first, cancel := ts.openSSE(t, view.ID)
	defer cancel()
	assert.Equal(t, "view.snapshot", first.name)
	assert.Equal(t, view.ID, first.view.ID)
	assert.Equal(t, 1, first.view.Snapshot.Step)

	// Attached streams are exempt from idle closing.
	ts.clock.Advance(10 * time.Minute)
	assert.Zero(t, ts.registry.CloseIdle())
	assert.Equal(t, 1, ts.registry.Len())
}

func TestSSE_DisconnectedViewIsClosedWhenIdle(t *testing.T) {
	ts := newTestSite(t, 0, engine.WithIdleTimeout(time.Minute))
	view := ts.mount(t, "fanout")

	_, cancel := ts.openSSE(t, view.ID)
	cancel()

	// The handler detaches asynchronously; keep moving time until it has.
	require.Eventually(t, func() bool {
		ts.clock.Advance(time.Minute)
		return ts.registry.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSSE_UnknownView(t *testing.T) {
	ts := newTestSite(t, 0)
	resp := ts.get(t, "/sse/views/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func dialWS(t *testing.T, ts *testSite, topic string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws/views?topic=" + topic
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wsMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWebSocket_Commands(t *testing.T) {
	ts := newTestSite(t, 0)
	conn := dialWS(t, ts, "event-driven")

	msg := readWSMessage(t, conn)
	assert.Equal(t, "view.snapshot", msg.Event)
	require.NotNil(t, msg.View)
	assert.Equal(t, 0, msg.View.Snapshot.Step)
	assert.Equal(t, 1, ts.registry.Len())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"next"}`)))
	msg = readWSMessage(t, conn)
	assert.Equal(t, schema.EventViewAdvanced, msg.Event)
	assert.Equal(t, 1, msg.View.Snapshot.Step)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"mode","mode":"event"}`)))
	msg = readWSMessage(t, conn)
	assert.Equal(t, schema.EventViewModeChanged, msg.Event)
	assert.Equal(t, schema.DiagramMode("event"), msg.View.Snapshot.Mode)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"fly"}`)))
	msg = readWSMessage(t, conn)
	assert.Equal(t, schema.ErrCodeValidation, msg.Code)
	assert.Contains(t, msg.Error, "fly")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	msg = readWSMessage(t, conn)
	assert.Equal(t, schema.ErrCodeValidation, msg.Code)
}

func TestWebSocket_DisconnectClosesView(t *testing.T) {
	ts := newTestSite(t, 0)
	conn := dialWS(t, ts, "fanout")
	readWSMessage(t, conn)
	require.Equal(t, 1, ts.registry.Len())

	conn.Close()
	require.Eventually(t, func() bool { return ts.registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_UnknownTopic(t *testing.T) {
	ts := newTestSite(t, 0)
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws/views?topic=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{schema.ErrCodeNotFound, http.StatusNotFound},
		{schema.ErrCodeValidation, http.StatusBadRequest},
		{schema.ErrCodeExpression, http.StatusBadRequest},
		{schema.ErrCodeConflict, http.StatusConflict},
		{schema.ErrCodeClosed, http.StatusGone},
		{schema.ErrCodeRender, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(schema.NewError(tt.code, "x")), tt.code)
	}
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
}

func TestMarkdown(t *testing.T) {
	html := markdown("**bold**\n\n- a\n- b\n")
	assert.Contains(t, string(html), "<strong>bold</strong>")
	assert.Contains(t, string(html), "<li>a</li>")
	assert.Equal(t, "42.0%", percent(0.42))
	assert.True(t, bytes.Contains([]byte(safeHTML("<svg/>")), []byte("<svg")))
}
