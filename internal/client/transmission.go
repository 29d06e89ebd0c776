package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"transmissionbot/internal/config"
	"transmissionbot/internal/logger"
	"transmissionbot/internal/models"
)

const sessionHeader = "X-Transmission-Session-Id"

// Fields requested on every torrent-get so one fetch carries everything a
// render needs.
var torrentFields = []string{
	"id", "name", "status", "totalSize", "sizeWhenDone", "leftUntilDone",
	"uploadedEver", "rateDownload", "rateUpload", "recheckProgress", "eta",
	"files", "fileStats",
}

// Transmission talks to one Transmission daemon over its JSON RPC
// endpoint, handling the session-id handshake and basic auth.
type Transmission struct {
	name     string
	url      string
	username string
	password string
	client   *http.Client
	log      *logrus.Entry

	mu        sync.Mutex
	sessionID string
}

// NewTransmission creates a client for one configured server profile.
func NewTransmission(srv config.Server) *Transmission {
	return &Transmission{
		name:     srv.Name,
		url:      srv.URL(),
		username: srv.Username,
		password: srv.Password,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      logger.GetLogger(srv.Name),
	}
}

func (t *Transmission) Name() string {
	return t.name
}

/* Wire types */

type rpcRequest struct {
	Method    string      `json:"method"`
	Arguments interface{} `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

type wireFile struct {
	Name           string `json:"name"`
	Length         int64  `json:"length"`
	BytesCompleted int64  `json:"bytesCompleted"`
}

type wireFileStat struct {
	BytesCompleted int64 `json:"bytesCompleted"`
	Wanted         bool  `json:"wanted"`
}

type wireTorrent struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Status          int            `json:"status"`
	TotalSize       int64          `json:"totalSize"`
	SizeWhenDone    int64          `json:"sizeWhenDone"`
	LeftUntilDone   int64          `json:"leftUntilDone"`
	UploadedEver    int64          `json:"uploadedEver"`
	RateDownload    int64          `json:"rateDownload"`
	RateUpload      int64          `json:"rateUpload"`
	RecheckProgress float64        `json:"recheckProgress"`
	Eta             int64          `json:"eta"`
	Files           []wireFile     `json:"files"`
	FileStats       []wireFileStat `json:"fileStats"`
}

func (w *wireTorrent) toModel() models.Torrent {
	torrent := models.Torrent{
		ID:              w.ID,
		Name:            w.Name,
		Status:          mapStatus(w.Status),
		TotalSize:       w.TotalSize,
		SizeWhenDone:    w.SizeWhenDone,
		LeftUntilDone:   w.LeftUntilDone,
		UploadedEver:    w.UploadedEver,
		RateDownload:    w.RateDownload,
		RateUpload:      w.RateUpload,
		RecheckProgress: w.RecheckProgress,
		ETA:             w.Eta,
	}

	for i, f := range w.Files {
		file := models.File{
			Name:      f.Name,
			Size:      f.Length,
			Completed: f.BytesCompleted,
		}
		if i < len(w.FileStats) {
			file.Wanted = w.FileStats[i].Wanted
		}
		torrent.Files = append(torrent.Files, file)
	}
	return torrent
}

// mapStatus converts Transmission's numeric status codes. Queued states
// collapse into the activity they are queued for.
func mapStatus(code int) models.Status {
	switch code {
	case 1:
		return models.StatusCheckPending
	case 2:
		return models.StatusChecking
	case 3, 4:
		return models.StatusDownloading
	case 5, 6:
		return models.StatusSeeding
	default:
		return models.StatusStopped
	}
}

/* RPC plumbing */

// do performs one RPC call, retrying once after a 409 to pick up a fresh
// session id.
func (t *Transmission) do(ctx context.Context, method string, args interface{}, out interface{}) error {
	payload, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
		if err != nil {
			return errors.Wrap(err, "build request")
		}
		req.Header.Set("Content-Type", "application/json")
		if t.username != "" {
			req.SetBasicAuth(t.username, t.password)
		}

		t.mu.Lock()
		if t.sessionID != "" {
			req.Header.Set(sessionHeader, t.sessionID)
		}
		t.mu.Unlock()

		resp, err := t.client.Do(req)
		if err != nil {
			return errors.Wrapf(ErrUnavailable, "%s: %v", method, err)
		}

		if resp.StatusCode == http.StatusConflict {
			t.mu.Lock()
			t.sessionID = resp.Header.Get(sessionHeader)
			t.mu.Unlock()
			resp.Body.Close()
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return errors.Wrapf(ErrUnavailable, "%s: read response: %v", method, err)
		}

		if resp.StatusCode != http.StatusOK {
			return errors.Wrapf(ErrUnavailable, "%s: status %d", method, resp.StatusCode)
		}

		var envelope rpcResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return errors.Wrapf(ErrUnavailable, "%s: decode response: %v", method, err)
		}
		if envelope.Result != "success" {
			return errors.Wrapf(ErrRejected, "%s: %s", method, envelope.Result)
		}

		if out != nil && len(envelope.Arguments) > 0 {
			if err := json.Unmarshal(envelope.Arguments, out); err != nil {
				return errors.Wrapf(ErrUnavailable, "%s: decode arguments: %v", method, err)
			}
		}
		return nil
	}

	return errors.Wrapf(ErrUnavailable, "%s: session handshake failed", method)
}

/* Operations */

func (t *Transmission) Ping(ctx context.Context) error {
	return t.do(ctx, "session-get", map[string]interface{}{
		"fields": []string{"version"},
	}, nil)
}

func (t *Transmission) Torrents(ctx context.Context) ([]models.Torrent, error) {
	// File lists are only needed on single-torrent fetches.
	fields := torrentFields[:len(torrentFields)-2]

	var result struct {
		Torrents []wireTorrent `json:"torrents"`
	}
	if err := t.do(ctx, "torrent-get", map[string]interface{}{"fields": fields}, &result); err != nil {
		return nil, err
	}

	torrents := make([]models.Torrent, 0, len(result.Torrents))
	for i := range result.Torrents {
		torrents = append(torrents, result.Torrents[i].toModel())
	}
	return torrents, nil
}

func (t *Transmission) Torrent(ctx context.Context, id int64) (*models.Torrent, error) {
	var result struct {
		Torrents []wireTorrent `json:"torrents"`
	}
	args := map[string]interface{}{
		"ids":    []int64{id},
		"fields": torrentFields,
	}
	if err := t.do(ctx, "torrent-get", args, &result); err != nil {
		return nil, err
	}

	if len(result.Torrents) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "torrent %d", id)
	}

	torrent := result.Torrents[0].toModel()
	return &torrent, nil
}

func (t *Transmission) Start(ctx context.Context, id int64) error {
	return t.do(ctx, "torrent-start", idArgs(id), nil)
}

func (t *Transmission) Stop(ctx context.Context, id int64) error {
	return t.do(ctx, "torrent-stop", idArgs(id), nil)
}

func (t *Transmission) Verify(ctx context.Context, id int64) error {
	return t.do(ctx, "torrent-verify", idArgs(id), nil)
}

func (t *Transmission) Remove(ctx context.Context, id int64, deleteData bool) error {
	return t.do(ctx, "torrent-remove", map[string]interface{}{
		"ids":               []int64{id},
		"delete-local-data": deleteData,
	}, nil)
}

func (t *Transmission) SetFileWanted(ctx context.Context, id int64, file int, wanted bool) error {
	key := "files-unwanted"
	if wanted {
		key = "files-wanted"
	}
	return t.do(ctx, "torrent-set", map[string]interface{}{
		"ids": []int64{id},
		key:   []int{file},
	}, nil)
}

func (t *Transmission) AddMetainfo(ctx context.Context, metainfo []byte) (*models.Torrent, error) {
	if len(metainfo) == 0 {
		return nil, errors.Wrap(ErrRejected, "empty torrent file")
	}
	return t.add(ctx, map[string]interface{}{
		"metainfo": base64.StdEncoding.EncodeToString(metainfo),
		"paused":   true,
	})
}

func (t *Transmission) AddURL(ctx context.Context, url string) (*models.Torrent, error) {
	return t.add(ctx, map[string]interface{}{
		"filename": url,
		"paused":   true,
	})
}

func (t *Transmission) add(ctx context.Context, args map[string]interface{}) (*models.Torrent, error) {
	var result struct {
		Added     *wireTorrent `json:"torrent-added"`
		Duplicate *wireTorrent `json:"torrent-duplicate"`
	}
	if err := t.do(ctx, "torrent-add", args, &result); err != nil {
		return nil, err
	}

	added := result.Added
	if added == nil {
		// Re-adding an existing torrent is not an error, the daemon just
		// reports the one it already has.
		added = result.Duplicate
	}
	if added == nil {
		return nil, errors.Wrap(ErrRejected, "torrent-add returned no torrent")
	}

	return t.Torrent(ctx, added.ID)
}

func (t *Transmission) FreeSpace(ctx context.Context) (int64, bool) {
	var session struct {
		DownloadDir string `json:"download-dir"`
	}
	err := t.do(ctx, "session-get", map[string]interface{}{
		"fields": []string{"download-dir"},
	}, &session)
	if err != nil {
		t.log.WithError(err).Warn("Failed to get download dir")
		return 0, false
	}

	var space struct {
		SizeBytes int64 `json:"size-bytes"`
	}
	err = t.do(ctx, "free-space", map[string]interface{}{
		"path": session.DownloadDir,
	}, &space)
	if err != nil {
		t.log.WithError(err).Warn("Failed to get free space")
		return 0, false
	}

	return space.SizeBytes, true
}

func idArgs(id int64) map[string]interface{} {
	return map[string]interface{}{"ids": []int64{id}}
}
