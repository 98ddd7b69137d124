package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbright/consult/internal/document"
	"github.com/rbright/consult/internal/session"
	"github.com/rbright/consult/internal/store"
	"github.com/rbright/consult/internal/summary"
	"github.com/stretchr/testify/require"
)

type rows struct {
	mu   sync.Mutex
	recs []store.Record
}

func (r *rows) Append(_ context.Context, rec store.Record) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return int64(len(r.recs)), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *rows, *session.Registry) {
	t.Helper()
	saved := &rows{}
	deps := session.Deps{
		Summarizer: summary.SummarizerFunc(func(_ context.Context, input string) (string, error) {
			return "Symptoms: " + input, nil
		}),
		Renderer: document.RenderFunc(func(lines []string) ([]byte, error) {
			return []byte("%PDF-1.3\n" + strings.Join(lines, "\n")), nil
		}),
		Store: saved,
		Now:   func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) },
	}
	reg := session.NewRegistry(deps, 0)

	mux := http.NewServeMux()
	New(reg, nil, Options{}).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, saved, reg
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func post(t *testing.T, c *http.Client, base, path string, form url.Values) (int, response) {
	t.Helper()
	resp, err := c.PostForm(base+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestIndexSetsSessionCookie(t *testing.T) {
	srv, _, reg := newTestServer(t)
	c := newClient(t)

	resp, err := c.Get(srv.URL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "Patient Consultation")
	require.Contains(t, string(body), `value="voice" checked`)

	u, _ := url.Parse(srv.URL)
	cookies := c.Jar.Cookies(u)
	require.Len(t, cookies, 1)
	require.Equal(t, CookieName, cookies[0].Name)
	_, ok := reg.Get(cookies[0].Value)
	require.True(t, ok)

	_, err = c.Get(srv.URL + "/")
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())
}

func TestSummaryDownloadShareFlow(t *testing.T) {
	srv, saved, _ := newTestServer(t)
	c := newClient(t)

	code, body := post(t, c, srv.URL, "/summary", url.Values{"text": {"  "}})
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.Equal(t, "Please provide input via voice or text.", body.Error)

	code, body = post(t, c, srv.URL, "/input/text", url.Values{"text": {"Fever since yesterday."}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Fever since yesterday.", body.View.Input)

	code, body = post(t, c, srv.URL, "/summary", nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "patient_summary_20240506070809.pdf", body.View.Filename)
	require.Equal(t, "Symptoms: Fever since yesterday.", body.View.Summary)

	resp, err := c.Get(srv.URL + "/download")
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "patient_summary_20240506070809.pdf")
	require.True(t, strings.HasPrefix(string(data), "%PDF"))

	code, body = post(t, c, srv.URL, "/share", nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, body.View.SharedID)
	require.Len(t, saved.recs, 1)
	require.Equal(t, data, saved.recs[0].Data)
	require.Equal(t, "2024-05-06 07:08:09", saved.recs[0].Timestamp)
}

func TestDownloadAndShareBeforeSummary(t *testing.T) {
	srv, saved, _ := newTestServer(t)
	c := newClient(t)

	resp, err := c.Get(srv.URL + "/download")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	code, body := post(t, c, srv.URL, "/share", nil)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, "Generate a summary first.", body.Error)
	require.Empty(t, saved.recs)
}

func TestModeSelection(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c := newClient(t)

	code, body := post(t, c, srv.URL, "/mode", url.Values{"mode": {"text"}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, session.ModeText, body.View.Mode)

	code, body = post(t, c, srv.URL, "/mode", url.Values{"mode": {"semaphore"}})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body.Error, "unknown input mode")
}

func TestRecordStartWithoutMicrophone(t *testing.T) {
	srv, _, _ := newTestServer(t)
	c := newClient(t)

	code, body := post(t, c, srv.URL, "/record/start", nil)
	require.Equal(t, http.StatusInternalServerError, code)
	require.Contains(t, body.Error, "audio input is not configured")
	require.False(t, body.View.Recording)

	code, _ = post(t, c, srv.URL, "/record/stop", nil)
	require.Equal(t, http.StatusOK, code)

	resp, err := c.Get(srv.URL + "/record/status")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionsAreIsolated(t *testing.T) {
	srv, _, reg := newTestServer(t)
	alice, bob := newClient(t), newClient(t)

	post(t, alice, srv.URL, "/input/text", url.Values{"text": {"Rash on forearm."}})
	_, body := post(t, bob, srv.URL, "/summary", nil)
	require.Empty(t, body.View.Input)
	require.Equal(t, "Please provide input via voice or text.", body.Error)
	require.Equal(t, 2, reg.Len())
}

func TestEndSession(t *testing.T) {
	srv, _, reg := newTestServer(t)
	c := newClient(t)
	post(t, c, srv.URL, "/input/text", url.Values{"text": {"Dizziness."}})
	require.Equal(t, 1, reg.Len())

	resp, err := c.Post(srv.URL+"/session/end", "", nil)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Zero(t, reg.Len())
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusOK, statusFor(nil))
	require.Equal(t, http.StatusConflict, statusFor(session.ErrAlreadyRecording))
	require.Equal(t, http.StatusBadGateway, statusFor(summary.ErrEmptySummary))
	require.Equal(t, http.StatusBadGateway, statusFor(session.ErrSummaryUnavailable))
	require.Equal(t, http.StatusInternalServerError, statusFor(session.ErrPersistence))
}
