package internal

// Shared DTOs crossing the adapter/dispatcher boundary.

type MimeCategory string

const (
	CategoryVideo MimeCategory = "video"
	CategoryAudio MimeCategory = "audio"
	CategoryImage MimeCategory = "image"
)

// DownloadRequest describes one acquisition. Immutable once submitted.
type DownloadRequest struct {
	URL       string `json:"url"`
	AudioOnly bool   `json:"audio_only"`
	MaxHeight int    `json:"max_height,omitempty"` // 0 = uncapped
	FormatId  string `json:"format_id,omitempty"`  // manual override, passed through verbatim
}

// MediaArtifact is a file produced by an adapter inside a session workspace.
// Ownership transfers to the caller together with the workspace.
type MediaArtifact struct {
	Path      string       `json:"path"`
	Category  MimeCategory `json:"category"`
	SizeBytes int64        `json:"size_bytes"`
}

type ProgressPhase string

const (
	PhaseDownloading    ProgressPhase = "downloading"
	PhasePostprocessing ProgressPhase = "postprocessing"
	PhaseFinished       ProgressPhase = "finished"
)

// ProgressEvent is a coarse status update. Percent is -1 when unknown.
type ProgressEvent struct {
	Phase           ProgressPhase `json:"phase"`
	Percent         float64       `json:"percent"`
	DownloadedBytes int64         `json:"downloaded_bytes"`
	TotalBytes      int64         `json:"total_bytes"`
	Speed           float64       `json:"speed"` // bytes/s
	ETA             int64         `json:"eta"`   // seconds
}

// CategoryForExt maps a file extension (with leading dot, lower case)
// to its coarse mime category.
func CategoryForExt(ext string) (MimeCategory, bool) {
	switch ext {
	case ".mp4", ".mkv", ".mov", ".webm":
		return CategoryVideo, true
	case ".mp3", ".m4a", ".opus", ".ogg":
		return CategoryAudio, true
	case ".jpg", ".jpeg", ".png", ".webp":
		return CategoryImage, true
	}
	return "", false
}
