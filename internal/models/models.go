package models

// Status is a torrent's activity state as reported by Transmission.
type Status int

const (
	StatusStopped Status = iota
	StatusCheckPending
	StatusChecking
	StatusDownloading
	StatusSeeding
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusCheckPending:
		return "check pending"
	case StatusChecking:
		return "checking"
	case StatusDownloading:
		return "downloading"
	case StatusSeeding:
		return "seeding"
	default:
		return "unknown"
	}
}

// Glyph returns the emoji used for this status in list views.
func (s Status) Glyph() string {
	switch s {
	case StatusDownloading:
		return "⏬"
	case StatusSeeding:
		return "✅"
	case StatusChecking:
		return "🔁"
	case StatusCheckPending:
		return "📡"
	default:
		return "⏹️"
	}
}

// AutoRefresh reports whether a torrent in this status keeps a live
// status message refreshing.
func (s Status) AutoRefresh() bool {
	switch s {
	case StatusDownloading, StatusSeeding, StatusChecking:
		return true
	default:
		return false
	}
}

// File is one file inside a torrent. Its identity is its position in the
// torrent's file enumeration at fetch time, not a stable id.
type File struct {
	Name      string
	Size      int64
	Completed int64
	Wanted    bool
}

// Progress returns the file's completion percentage from raw byte counts.
func (f File) Progress() float64 {
	if f.Size == 0 {
		return 0
	}
	return 100 * float64(f.Completed) / float64(f.Size)
}

// Torrent is an immutable snapshot of a torrent, read in a single fetch so
// status and size metrics never tear across two observations.
type Torrent struct {
	ID              int64
	Name            string
	Status          Status
	TotalSize       int64
	SizeWhenDone    int64
	LeftUntilDone   int64
	UploadedEver    int64
	RateDownload    int64
	RateUpload      int64
	RecheckProgress float64
	// ETA in seconds, negative when Transmission cannot estimate one.
	ETA   int64
	Files []File
}

// Downloaded returns the bytes already fetched of the wanted payload.
func (t *Torrent) Downloaded() int64 {
	return t.SizeWhenDone - t.LeftUntilDone
}

// Progress returns the download percentage from raw byte counts.
func (t *Torrent) Progress() float64 {
	if t.SizeWhenDone == 0 {
		return 0
	}
	return 100 * float64(t.Downloaded()) / float64(t.SizeWhenDone)
}
