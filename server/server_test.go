package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/campus/internal/models"
	"github.com/xhad/campus/pkg/agent"
	"github.com/xhad/campus/pkg/auth"
	"github.com/xhad/campus/pkg/index"
	"github.com/xhad/campus/pkg/llm"
	"github.com/xhad/campus/pkg/records"
	"github.com/xhad/campus/pkg/scraper"
	"github.com/xhad/campus/pkg/transcript"
	"github.com/xuri/excelize/v2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePages map[string]error

func (f fakePages) Extract(_ context.Context, u string) (string, error) {
	if err, ok := f[u]; ok && err != nil {
		return "", err
	}
	return "content of " + u, nil
}

type fakeVideos struct{}

func (fakeVideos) Fetch(_ context.Context, id string) (string, error) {
	switch id {
	case "dQw4w9WgXcQ":
		return "never gonna give you up", nil
	case "bbbbbbbbbbb":
		return "", &transcript.FetchError{VideoID: id, Err: errors.New("received status code 502")}
	}
	return "", &transcript.UnavailableError{VideoID: id}
}

type fakeIndex struct {
	mu       sync.Mutex
	released bool
}

func (*fakeIndex) Len() int { return 1 }

func (*fakeIndex) Search(context.Context, []float32, int) ([]index.Hit, error) { return nil, nil }

func (f *fakeIndex) Release(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	return nil
}

func (f *fakeIndex) isReleased() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

type fakeIndexer struct{}

func (fakeIndexer) Build(context.Context, models.Document) (index.Index, error) {
	return &fakeIndex{}, nil
}

type fakeRetriever struct{}

func (fakeRetriever) Retrieve(context.Context, index.Index, string) (string, error) {
	return "retrieved", nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []llm.Prompt

	// block makes Generate wait for its context to end.
	block     bool
	started   chan struct{}
	cancelled chan struct{}
}

func (f *fakeGenerator) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()

	if f.block {
		close(f.started)
		<-ctx.Done()
		close(f.cancelled)
		return "", ctx.Err()
	}
	return "answer: " + p.Query, nil
}

type testEnv struct {
	server   *Server
	sessions *agent.Sessions
	students *records.MemoryStudents
	gen      *fakeGenerator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	students := records.NewMemoryStudents(models.Student{Name: "Alice", StudentClass: "10A", Marks: 91})
	gen := &fakeGenerator{}
	a := agent.New(agent.Config{}, agent.Deps{
		Pages: fakePages{
			"https://down.example.com":  &scraper.FetchError{URL: "https://down.example.com", StatusCode: 503},
			"https://empty.example.com": scraper.ErrNoContent,
		},
		Videos:    fakeVideos{},
		Indexer:   fakeIndexer{},
		Retriever: fakeRetriever{},
		Generator: gen,
		Students:  students,
		FAQ:       agent.NewFAQ(map[string]string{"What are the school hours?": "8am to 3pm."}),
	})

	manager, err := auth.New(auth.Config{Secret: "test-secret", AdminPassword: "password"})
	require.NoError(t, err)

	sessions := agent.NewSessions()
	s := New(Config{MaxUploadBytes: 1 << 20}, Deps{
		Agent:    a,
		Sessions: sessions,
		Auth:     manager,
		Students: students,
		Events:   records.NewMemoryEvents(),
	})
	return &testEnv{server: s, sessions: sessions, students: students, gen: gen}
}

func (e *testEnv) do(t *testing.T, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {"admin"}, "password": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := e.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, c := range w.Result().Cookies() {
		if c.Name == "campus_session" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func upload(t *testing.T, path, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestChatbot(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, jsonRequest(http.MethodPost, "/chatbot", `{"message":"Hello there"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "answer: hello there", decode(t, w)["response"])

	w = env.do(t, jsonRequest(http.MethodPost, "/chatbot", `{"message":"  "}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w), "error")
}

func TestAsk(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/ask?query="+url.QueryEscape("What are the school hours?"), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "8am to 3pm.", decode(t, w)["response"])
	assert.Empty(t, env.gen.prompts)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/ask?query="+url.QueryEscape("check student alice"), nil))
	require.Equal(t, http.StatusOK, w.Code)
	record, ok := decode(t, w)["response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", record["name"])

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/ask", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantError  string
	}{
		{name: "stored", url: "https://example.com/page.", wantStatus: http.StatusOK},
		{name: "fetch failure", url: "https://down.example.com", wantStatus: http.StatusBadGateway, wantError: "Could not fetch content from the URL."},
		{name: "no main region", url: "https://empty.example.com", wantStatus: http.StatusUnprocessableEntity, wantError: "No readable content found at the URL."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			w := env.do(t, jsonRequest(http.MethodPost, "/analyze-url", `{"url":"`+tt.url+`"}`))
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			body := decode(t, w)
			state := env.sessions.Get(auth.Anonymous)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				assert.Empty(t, state.Content())
				return
			}
			assert.Equal(t, map[string]any{"message": "URL content stored successfully."}, body["response"])
			assert.Equal(t, "content of https://example.com/page", state.Content())
		})
	}
}

func TestProcessVideo(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, jsonRequest(http.MethodPost, "/process-video", `{"video_link":"https://www.youtube.com/watch?v=dQw4w9WgXcQ"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "never gonna give you up", env.sessions.Get(auth.Anonymous).Content())

	w = env.do(t, jsonRequest(http.MethodPost, "/process-video", `{"video_link":"https://www.youtube.com/"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid YouTube URL.", decode(t, w)["error"])

	w = env.do(t, jsonRequest(http.MethodPost, "/process-video", `{"video_link":"https://youtu.be/aaaaaaaaaaa"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, transcript.UnavailableMessage, decode(t, w)["error"])

	w = env.do(t, jsonRequest(http.MethodPost, "/process-video", `{"video_link":"https://youtu.be/bbbbbbbbbbb"}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Could not reach YouTube to fetch the transcript.", decode(t, w)["error"])
	assert.Equal(t, "never gonna give you up", env.sessions.Get(auth.Anonymous).Content())
}

func TestUploadRejectsWrongType(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, upload(t, "/upload-pdf", "notes.txt", []byte("plain text")))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = env.do(t, upload(t, "/upload-pdf", "fake.pdf", []byte("plain text pretending")))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "Invalid file type.", decode(t, w)["error"])

	w = env.do(t, httptest.NewRequest(http.MethodPost, "/upload-excel", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadExcel(t *testing.T) {
	env := newTestEnv(t)

	f := excelize.NewFile()
	header := []interface{}{"name", "student_class", "dob", "gender", "city", "marks"}
	row := []interface{}{"Bob", "10B", "2010-06-12", "M", "Delhi", 77}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &row))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w := env.do(t, upload(t, "/upload-excel", "roster.xlsx", buf.Bytes()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	students, err := env.students.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, students, 2)
}

func TestUploadExcelHidesImportError(t *testing.T) {
	env := newTestEnv(t)

	f := excelize.NewFile()
	header := []interface{}{"name", "marks"}
	row := []interface{}{"Bob", 77}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &row))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w := env.do(t, upload(t, "/upload-excel", "roster.xlsx", buf.Bytes()))
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"error": "Could not import students."}, decode(t, w))

	students, err := env.students.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, students, 1)
}

func TestRecordsRequireLogin(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/students", "/events"} {
		w := env.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	form := url.Values{"username": {"admin"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnauthorized, env.do(t, req).Code)
}

func TestStudents(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	w := env.do(t, jsonRequest(http.MethodPost, "/students", `{"name":"Carol","student_class":"9C","marks":64}`), cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, jsonRequest(http.MethodPost, "/students", `{"city":"Pune"}`), cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/students", nil), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	list, ok := decode(t, w)["response"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 2)
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	w := env.do(t, jsonRequest(http.MethodPost, "/events", `{"title":"Sports day","date":"2025-03-14"}`), cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created, ok := decode(t, w)["response"].(map[string]any)
	require.True(t, ok)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	w = env.do(t, jsonRequest(http.MethodPost, "/events", `{"title":"Bad","date":"14/03/2025"}`), cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/events", nil), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	list, ok := decode(t, w)["response"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{name: "existing", id: id, wantStatus: http.StatusOK},
		{name: "already deleted", id: id, wantStatus: http.StatusNotFound},
		{name: "malformed", id: "not-an-id", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, httptest.NewRequest(http.MethodDelete, "/events/"+tt.id, nil), cookie)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.login(t)

	w := env.do(t, jsonRequest(http.MethodPost, "/analyze-url", `{"url":"https://example.com/a"}`), cookie)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "content of https://example.com/a", env.sessions.Get("admin").Content())
	assert.Empty(t, env.sessions.Get(auth.Anonymous).Content())

	admin := env.sessions.Get("admin")
	_, idx := admin.Snapshot()
	built, ok := idx.(*fakeIndex)
	require.True(t, ok)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/logout", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Nil(t, env.sessions.Drop("admin"))
	assert.True(t, built.isReleased())
	assert.Empty(t, admin.Content())
}

func TestGoogleLoginDisabled(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, httptest.NewRequest(http.MethodGet, "/auth/login/google", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebSocket(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: "chat", Content: "Hi"}))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "response", reply.Type)
	assert.Equal(t, "answer: hi", reply.Content)

	require.NoError(t, conn.WriteJSON(Message{Type: "shout", Content: "Hi"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
}

func TestWebSocketDisconnectCancelsInFlight(t *testing.T) {
	env := newTestEnv(t)
	env.gen.block = true
	env.gen.started = make(chan struct{})
	env.gen.cancelled = make(chan struct{})

	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(Message{Type: "chat", Content: "Hi"}))
	select {
	case <-env.gen.started:
	case <-time.After(5 * time.Second):
		t.Fatal("generator was not called")
	}

	require.NoError(t, conn.Close())
	select {
	case <-env.gen.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight answer was not cancelled after disconnect")
	}
}
