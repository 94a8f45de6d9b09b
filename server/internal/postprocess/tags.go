package postprocess

import (
	"fmt"
	"log/slog"

	"github.com/bogem/id3v2/v2"
)

const frameRecordingTime = "TDRC"

// NormalizeTags fills the title and artist tags when they are absent and
// truncates a recording-date tag to its 4-digit year. Pre-existing
// non-empty values are never overwritten.
func NormalizeTags(audioPath, title, uploader string) error {
	tag, err := id3v2.Open(audioPath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open audio tags: %w", err)
	}
	defer tag.Close()

	if title != "" && tag.Title() == "" {
		tag.SetTitle(title)
	}
	if uploader != "" && tag.Artist() == "" {
		tag.SetArtist(uploader)
	}

	if recorded := tag.GetTextFrame(frameRecordingTime).Text; len(recorded) > 4 {
		tag.AddTextFrame(frameRecordingTime, tag.DefaultEncoding(), recorded[:4])
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save audio tags: %w", err)
	}

	slog.Debug("normalized tags", slog.String("audio", audioPath))
	return nil
}
