package client

import (
	"context"

	"transmissionbot/internal/models"
)

// Interface is the operation set the bot drives against a torrent engine.
// It is injected into the dispatcher and refresher so tests can substitute
// a fake engine.
type Interface interface {
	// Name identifies the server profile backing this client.
	Name() string

	// Ping verifies the engine answers RPC at all.
	Ping(ctx context.Context) error

	// Torrents returns a snapshot of every torrent, without file lists.
	Torrents(ctx context.Context) ([]models.Torrent, error)

	// Torrent returns one torrent with its file list, read in a single
	// fetch. Returns ErrNotFound when the id no longer exists.
	Torrent(ctx context.Context, id int64) (*models.Torrent, error)

	Start(ctx context.Context, id int64) error
	Stop(ctx context.Context, id int64) error
	Verify(ctx context.Context, id int64) error

	// Remove deletes a torrent, optionally with its downloaded data.
	Remove(ctx context.Context, id int64, deleteData bool) error

	// SetFileWanted marks a file (by its ordinal within the torrent) as
	// wanted or unwanted.
	SetFileWanted(ctx context.Context, id int64, file int, wanted bool) error

	// AddMetainfo adds a torrent from raw .torrent bytes, paused.
	AddMetainfo(ctx context.Context, metainfo []byte) (*models.Torrent, error)

	// AddURL adds a torrent from a magnet link or http(s) .torrent URL,
	// paused.
	AddURL(ctx context.Context, url string) (*models.Torrent, error)

	// FreeSpace reports free bytes in the engine's download directory.
	// ok is false when the engine cannot answer; that is not an error.
	FreeSpace(ctx context.Context) (free int64, ok bool)
}
