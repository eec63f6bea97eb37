package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/report"
	"github.com/anstrom/portsweep/internal/results"
)

type streamMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialStream(t *testing.T, srv *httptest.Server, id uuid.UUID) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/scans/" + id.String() + "/stream"
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, conn *websocket.Conn) streamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStreamScanLiveResults(t *testing.T) {
	scanner := &gatedScanner{gate: make(chan struct{})}
	m := newTestManager(scanner)
	router := newScanRouter(m)
	srv := httptest.NewServer(router)
	defer srv.Close()

	id := startScan(t, router, `{"host":"127.0.0.1","ports":"22,80,443"}`)
	require.Eventually(t, func() bool {
		run, err := m.Get(id)
		return err == nil && run.Progress.Completed == 1
	}, 5*time.Second, time.Millisecond)

	conn, _, err := dialStream(t, srv, id)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	require.Equal(t, MessageSnapshot, first.Type)
	var snapshot ScanResponse
	require.NoError(t, json.Unmarshal(first.Data, &snapshot))
	assert.Equal(t, results.StateRunning, snapshot.State)
	require.Len(t, snapshot.Results, 1)
	assert.Equal(t, uint16(22), snapshot.Results[0].Port)

	close(scanner.gate)

	var streamed []uint16
	for {
		msg := readMessage(t, conn)
		if msg.Type == MessageComplete {
			var final report.Record
			require.NoError(t, json.Unmarshal(msg.Data, &final))
			assert.Equal(t, results.StateCompleted, final.State)
			assert.Len(t, final.Results, 3)
			break
		}
		require.Equal(t, MessageResult, msg.Type)
		var res report.ResultRecord
		require.NoError(t, json.Unmarshal(msg.Data, &res))
		streamed = append(streamed, res.Port)
	}
	assert.ElementsMatch(t, []uint16{80, 443}, streamed, "ports in the snapshot are not repeated")

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestStreamFinishedScan(t *testing.T) {
	m := newTestManager(&gatedScanner{})
	router := newScanRouter(m)
	srv := httptest.NewServer(router)
	defer srv.Close()

	id := startScan(t, router, `{"host":"127.0.0.1","ports":"22,80"}`)
	waitFor(t, m, id)

	conn, _, err := dialStream(t, srv, id)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, MessageSnapshot, readMessage(t, conn).Type)
	assert.Equal(t, MessageComplete, readMessage(t, conn).Type)
}

func TestStreamUnknownScan(t *testing.T) {
	srv := httptest.NewServer(newScanRouter(newTestManager(&gatedScanner{})))
	defer srv.Close()

	_, resp, err := dialStream(t, srv, uuid.New())
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamShutdown(t *testing.T) {
	scanner := &gatedScanner{gate: make(chan struct{})}
	defer close(scanner.gate)
	m := newTestManager(scanner)

	h := NewWebSocketHandler(m, logging.NewDiscard())
	router := newScanRouter(m)
	router.HandleFunc("/ws/{id}", h.StreamScan)
	srv := httptest.NewServer(router)
	defer srv.Close()

	id := startScan(t, router, `{"host":"127.0.0.1","ports":"22,80"}`)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + id.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, MessageSnapshot, readMessage(t, conn).Type)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 5*time.Second, time.Millisecond)

	h.Shutdown()
	h.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 5*time.Second, time.Millisecond)
}
