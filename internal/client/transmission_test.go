package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transmissionbot/internal/logger"
	"transmissionbot/internal/models"
)

func newTestClient(url string) *Transmission {
	return &Transmission{
		name:   "test",
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    logger.GetLogger("test"),
	}
}

func decodeRequest(t *testing.T, r *http.Request) (string, map[string]interface{}) {
	t.Helper()
	var req struct {
		Method    string                 `json:"method"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req.Method, req.Arguments
}

func writeSuccess(w http.ResponseWriter, arguments string) {
	w.Write([]byte(`{"result":"success","arguments":` + arguments + `}`))
}

func TestSessionHandshake(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get(sessionHeader) != "abc123" {
			w.Header().Set(sessionHeader, "abc123")
			w.WriteHeader(http.StatusConflict)
			return
		}
		writeSuccess(w, `{"torrents":[{"id":1,"name":"iso","status":4}]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	torrents, err := c.Torrents(context.Background())
	require.NoError(t, err)
	require.Len(t, torrents, 1)
	assert.Equal(t, int64(1), torrents[0].ID)
	assert.Equal(t, models.StatusDownloading, torrents[0].Status)
	assert.Equal(t, 2, requests)

	// The session id sticks for the next call.
	_, err = c.Torrents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, requests)
}

func TestTorrentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, `{"torrents":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.Torrent(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTorrentFilesZipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, `{"torrents":[{
			"id":7,"name":"pack","status":0,
			"files":[
				{"name":"pack/a","length":100,"bytesCompleted":50},
				{"name":"pack/b","length":200,"bytesCompleted":0}
			],
			"fileStats":[{"wanted":true},{"wanted":false}]
		}]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	torrent, err := c.Torrent(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, torrent.Files, 2)
	assert.Equal(t, "pack/a", torrent.Files[0].Name)
	assert.Equal(t, int64(50), torrent.Files[0].Completed)
	assert.True(t, torrent.Files[0].Wanted)
	assert.False(t, torrent.Files[1].Wanted)
}

func TestRejectedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"invalid argument","arguments":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	err := c.Start(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrRejected))
}

func TestUnavailableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(srv.URL)

	_, err := c.Torrents(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestSetFileWantedKeys(t *testing.T) {
	var lastArgs map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, lastArgs = decodeRequest(t, r)
		writeSuccess(w, `{}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	require.NoError(t, c.SetFileWanted(context.Background(), 3, 1, true))
	assert.Contains(t, lastArgs, "files-wanted")
	assert.NotContains(t, lastArgs, "files-unwanted")

	require.NoError(t, c.SetFileWanted(context.Background(), 3, 1, false))
	assert.Contains(t, lastArgs, "files-unwanted")
}

func TestRemoveWithData(t *testing.T) {
	var lastArgs map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, lastArgs = decodeRequest(t, r)
		writeSuccess(w, `{}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	require.NoError(t, c.Remove(context.Background(), 3, true))
	assert.Equal(t, true, lastArgs["delete-local-data"])
}

func TestAddDuplicateResolves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, _ := decodeRequest(t, r)
		switch method {
		case "torrent-add":
			writeSuccess(w, `{"torrent-duplicate":{"id":5,"name":"dup"}}`)
		case "torrent-get":
			writeSuccess(w, `{"torrents":[{"id":5,"name":"dup","status":6}]}`)
		default:
			t.Errorf("unexpected method %q", method)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	torrent, err := c.AddURL(context.Background(), "magnet:?xt=urn:btih:cafe")
	require.NoError(t, err)
	assert.Equal(t, int64(5), torrent.ID)
	assert.Equal(t, models.StatusSeeding, torrent.Status)
}

func TestAddEmptyMetainfo(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")

	_, err := c.AddMetainfo(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrRejected))
}

func TestFreeSpace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, args := decodeRequest(t, r)
		switch method {
		case "session-get":
			writeSuccess(w, `{"download-dir":"/data"}`)
		case "free-space":
			assert.Equal(t, "/data", args["path"])
			writeSuccess(w, `{"path":"/data","size-bytes":123456789}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	free, ok := c.FreeSpace(context.Background())
	assert.True(t, ok)
	assert.Equal(t, int64(123456789), free)
}

func TestFreeSpaceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(srv.URL)

	_, ok := c.FreeSpace(context.Background())
	assert.False(t, ok)
}
