package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_StartSendsManifest(t *testing.T) {
	var gotPath string
	var got StartRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, Response{Success: true, Message: "started"})
	})

	c := NewClient(Config{BaseURL: srv.URL})
	resp, err := c.Start(context.Background(), StartRequest{
		GroupID:     3,
		IntervalSec: 30,
		Devices:     []DeviceTarget{{DeviceID: 5, IfIndexes: []int{1, 2}}},
	})

	require.NoError(t, err)
	assert.Equal(t, "started", resp.Message)
	assert.Equal(t, "/watch/start", gotPath)
	assert.Equal(t, uint(3), got.GroupID)
	assert.Equal(t, 30, got.IntervalSec)
	assert.Equal(t, []DeviceTarget{{DeviceID: 5, IfIndexes: []int{1, 2}}}, got.Devices)
}

func TestClient_StopAndHeartbeatSendGroupOnly(t *testing.T) {
	bodies := map[string]map[string]any{}
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies[r.URL.Path] = body
		writeJSON(w, http.StatusOK, Response{Success: true})
	})

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Stop(context.Background(), 9)
	require.NoError(t, err)
	_, err = c.Heartbeat(context.Background(), 9)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"groupId": float64(9)}, bodies["/watch/stop"])
	assert.Equal(t, map[string]any{"groupId": float64(9)}, bodies["/watch/heartbeat"])
}

func TestClient_SuccessFalseIsFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Response{Success: false, Message: "unknown group"})
	})

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Stop(context.Background(), 1)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "stop", cerr.Op)
	assert.Equal(t, "unknown group", cerr.Message)
	assert.False(t, cerr.Timeout)
}

func TestClient_DecodesUnlabeledReplies(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte(`{"success":true,"message":"alive"}`))
	})

	c := NewClient(Config{BaseURL: srv.URL})
	resp, err := c.Heartbeat(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "alive", resp.Message)
}

func TestClient_UnreadableReplyIsFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Heartbeat(context.Background(), 4)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, http.StatusOK, cerr.Status)
	assert.Equal(t, "unreadable collector response", cerr.Message)
}

func TestClient_Non2xxIsFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, Response{Success: true, Message: "boom"})
	})

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Start(context.Background(), StartRequest{GroupID: 1})

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, http.StatusInternalServerError, cerr.Status)
	assert.Contains(t, cerr.Error(), "status 500")
}

func TestClient_TimeoutIsReported(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
		writeJSON(w, http.StatusOK, Response{Success: true})
	})

	c := NewClient(Config{BaseURL: srv.URL, HeartbeatTimeout: 50 * time.Millisecond})
	_, err := c.Heartbeat(context.Background(), 1)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.Timeout)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url})
	_, err := c.Stop(context.Background(), 1)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 0, cerr.Status)
	assert.NotNil(t, cerr.Err)
}
