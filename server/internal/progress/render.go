package progress

import (
	"fmt"
	"strings"

	"github.com/mediafetch/mediafetch/server/internal"
)

const barLength = 15

// Line renders an event as a single human-readable status line, the way a
// chat front end would display it.
func Line(ev internal.ProgressEvent) string {
	switch ev.Phase {
	case internal.PhasePostprocessing:
		return "processing media..."
	case internal.PhaseFinished:
		return "done"
	}

	if ev.Percent < 0 {
		return "downloading..."
	}

	filled := int(barLength * ev.Percent / 100)
	if filled > barLength {
		filled = barLength
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barLength-filled)

	return fmt.Sprintf("[%s] %.1f%% | %.1fMB / %.1fMB | %.1f MB/s",
		bar,
		ev.Percent,
		float64(ev.DownloadedBytes)/1024/1024,
		float64(ev.TotalBytes)/1024/1024,
		ev.Speed/1024/1024,
	)
}
