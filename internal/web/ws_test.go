package web

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/dateischnell/internal/search"
)

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) search.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev search.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestSearchSocketProtocol(t *testing.T) {
	_, ts, root := newTestServer(t, nil)
	writeTestFile(t, root, "data.txt", "test line with test and test again\nnothing here\n")

	conn := dialWS(t, ts, "/ws/search")
	require.NoError(t, conn.WriteJSON(searchRequest{Pattern: "*.txt", SearchText: "test"}))

	ev := readEvent(t, conn)
	assert.Equal(t, search.EventSearchStart, ev.Type)

	ev = readEvent(t, conn)
	assert.Equal(t, search.EventFileStart, ev.Type)
	assert.Equal(t, "data.txt", ev.FilePath)

	ev = readEvent(t, conn)
	require.Equal(t, search.EventMatch, ev.Type)
	assert.Equal(t, 1, ev.LineNumber)
	assert.Equal(t, "test line with test and test again", ev.LineContent)
	assert.Equal(t, []int{0, 15, 24}, ev.MatchPositions)

	ev = readEvent(t, conn)
	assert.Equal(t, search.EventFileEnd, ev.Type)

	ev = readEvent(t, conn)
	assert.Equal(t, search.EventSearchComplete, ev.Type)
}

func TestSearchSocketNoFiles(t *testing.T) {
	_, ts, _ := newTestServer(t, nil)

	conn := dialWS(t, ts, "/ws/search")
	require.NoError(t, conn.WriteJSON(searchRequest{Pattern: "*.nope", SearchText: "x"}))

	ev := readEvent(t, conn)
	assert.Equal(t, search.EventSearchStart, ev.Type)
	ev = readEvent(t, conn)
	assert.Equal(t, search.EventNoFiles, ev.Type)
}

func TestSearchSocketValidation(t *testing.T) {
	_, ts, _ := newTestServer(t, nil)

	conn := dialWS(t, ts, "/ws/search")
	require.NoError(t, conn.WriteJSON(searchRequest{Pattern: "", SearchText: ""}))

	ev := readEvent(t, conn)
	assert.Equal(t, search.EventError, ev.Type)
	assert.Contains(t, ev.Message, "required")
}

func TestSearchSocketAbsolutePatternRejected(t *testing.T) {
	_, ts, _ := newTestServer(t, nil)

	conn := dialWS(t, ts, "/ws/search")
	require.NoError(t, conn.WriteJSON(searchRequest{Pattern: "/etc/*", SearchText: "root"}))

	ev := readEvent(t, conn)
	assert.Equal(t, search.EventError, ev.Type)
	assert.Contains(t, ev.Message, "root directory")
}

func TestSearchSocketDisabledByFlag(t *testing.T) {
	srv, ts, _ := newTestServer(t, nil)
	srv.flags.Set("super_search", false)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/search"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, 403, resp.StatusCode)
}

func TestSearchSocketSecondSearchOnSameConnection(t *testing.T) {
	_, ts, root := newTestServer(t, nil)
	writeTestFile(t, root, "a.txt", "alpha\n")
	writeTestFile(t, root, "b.log", "beta\n")

	conn := dialWS(t, ts, "/ws/search")

	require.NoError(t, conn.WriteJSON(searchRequest{Pattern: "*.txt", SearchText: "alpha"}))
	for {
		ev := readEvent(t, conn)
		if ev.Type == search.EventSearchComplete {
			break
		}
	}

	require.NoError(t, conn.WriteJSON(searchRequest{Pattern: "*.log", SearchText: "beta"}))
	sawMatch := false
	for {
		ev := readEvent(t, conn)
		if ev.Type == search.EventMatch {
			assert.Equal(t, "b.log", ev.FilePath)
			sawMatch = true
		}
		if ev.Type == search.EventSearchComplete {
			break
		}
	}
	assert.True(t, sawMatch)
}

func TestFlagSocketGetFlags(t *testing.T) {
	_, ts, _ := newTestServer(t, nil)

	conn := dialWS(t, ts, "/ws/flags")
	require.NoError(t, conn.WriteJSON(&WebMessage{Type: MessageTypeGetFlags}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WebMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeFlags, msg.Type)
	assert.Len(t, msg.Flags, 8)
	assert.True(t, msg.Flags["file_download"])
}

func TestFlagSocketReceivesBroadcast(t *testing.T) {
	srv, ts, _ := newTestServer(t, nil)

	conn := dialWS(t, ts, "/ws/flags")

	// Wait until the hub has registered the subscriber.
	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	srv.flags.Set("file_edit", false)
	srv.hub.BroadcastFlags(srv.flags.Snapshot())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WebMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeFlags, msg.Type)
	assert.False(t, msg.Flags["file_edit"])
}
