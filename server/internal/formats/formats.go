package formats

import (
	"fmt"
	"sort"

	"github.com/mediafetch/mediafetch/server/internal/metadata"
)

// Candidate is one human-presentable format option. Transient: built for
// presentation and selection only, never persisted.
type Candidate struct {
	Id       string  `json:"id"`
	Ext      string  `json:"ext"`
	Height   int     `json:"height,omitempty"` // 0 for audio-only
	Bitrate  float64 `json:"bitrate,omitempty"`
	HasVideo bool    `json:"has_video"`
	HasAudio bool    `json:"has_audio"`
	Note     string  `json:"note,omitempty"`
}

// MaxCandidates caps the presented list regardless of how many formats
// survive filtering.
const MaxCandidates = 25

// List filters a raw format list down to a deduplicated candidate set:
// formats sorted descending by (height, bitrate), at most one entry per
// resolution, progressive streams preferred over video-only ones at the same
// height, plus the single best audio-only entry.
func List(meta *metadata.Metadata) []Candidate {
	raw := make([]metadata.RawFormat, 0, len(meta.Formats))
	for _, f := range meta.Formats {
		if f.URL == "" {
			continue
		}
		raw = append(raw, f)
	}

	sort.SliceStable(raw, func(i, j int) bool {
		hi, hj := height(&raw[i]), height(&raw[j])
		if hi != hj {
			return hi > hj
		}
		return bitrate(&raw[i]) > bitrate(&raw[j])
	})

	var (
		out        []Candidate
		seenHeight = map[int]bool{}
		audioAdded bool
	)

	for i := range raw {
		f := &raw[i]

		if !f.HasVideo() {
			if audioAdded {
				continue
			}
			audioAdded = true
			out = append(out, toCandidate(f))
			continue
		}

		h := height(f)
		if h == 0 || seenHeight[h] {
			continue
		}

		// keep a video-only stream at this height only when no progressive
		// alternative exists at the same height
		if !f.HasAudio() && hasProgressiveAt(raw, h) {
			continue
		}

		seenHeight[h] = true
		out = append(out, toCandidate(f))
	}

	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}

	return out
}

func hasProgressiveAt(raw []metadata.RawFormat, h int) bool {
	for i := range raw {
		if height(&raw[i]) == h && raw[i].HasVideo() && raw[i].HasAudio() {
			return true
		}
	}
	return false
}

func toCandidate(f *metadata.RawFormat) Candidate {
	note := f.FormatNote
	if note == "" {
		note = f.Resolution
	}
	switch {
	case !f.HasVideo():
		note += " (audio only)"
	case !f.HasAudio():
		note += " (video only)"
	}

	return Candidate{
		Id:       f.FormatID,
		Ext:      f.Ext,
		Height:   height(f),
		Bitrate:  bitrate(f),
		HasVideo: f.HasVideo(),
		HasAudio: f.HasAudio(),
		Note:     note,
	}
}

func height(f *metadata.RawFormat) int {
	if f.Height == nil {
		return 0
	}
	return *f.Height
}

func bitrate(f *metadata.RawFormat) float64 {
	if f.TBR == nil {
		return 0
	}
	return *f.TBR
}

// Selection is a user's quality intent, resolved to a concrete engine
// format expression by Resolve.
type Selection struct {
	AudioOnly bool
	MaxHeight int    // 0 = uncapped
	FormatId  string // manual override, wins over everything else
}

// Resolve maps an intent to a yt-dlp format expression. Manual ids pass
// through verbatim, including compound "video+audio" ids.
func Resolve(s Selection) string {
	switch {
	case s.FormatId != "":
		return s.FormatId
	case s.AudioOnly:
		return "bestaudio/best"
	case s.MaxHeight > 0:
		return fmt.Sprintf(
			"bestvideo[height<=%d]+bestaudio/best[height<=%d]/best",
			s.MaxHeight, s.MaxHeight,
		)
	default:
		return "bestvideo+bestaudio/best"
	}
}
