package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineProgress(t *testing.T) {
	y := &YouTubeAdapter{}

	var got internal.ProgressEvent
	entry := []byte(`{"percent_str":" 42.0%","downloaded_bytes":420,"total_bytes":1000,"speed":1048576.0,"eta":12}`)

	_, isPath := y.parseLine(entry, "u", func(ev internal.ProgressEvent) { got = ev })

	assert.False(t, isPath)
	assert.Equal(t, internal.PhaseDownloading, got.Phase)
	assert.InDelta(t, 42.0, got.Percent, 0.01)
	assert.Equal(t, int64(420), got.DownloadedBytes)
	assert.Equal(t, int64(1000), got.TotalBytes)
	assert.Equal(t, int64(12), got.ETA)
}

func TestParseLineUsesEstimateWhenTotalMissing(t *testing.T) {
	y := &YouTubeAdapter{}

	var got internal.ProgressEvent
	entry := []byte(`{"percent_str":"10%","downloaded_bytes":10,"total_bytes":0,"total_bytes_estimate":200.0}`)

	y.parseLine(entry, "u", func(ev internal.ProgressEvent) { got = ev })
	assert.Equal(t, int64(200), got.TotalBytes)
}

func TestParseLinePostprocessPath(t *testing.T) {
	y := &YouTubeAdapter{}

	path, ok := y.parseLine([]byte(`{"filepath":"/tmp/ws/track.mp3"}`), "u", nil)
	assert.True(t, ok)
	assert.Equal(t, "/tmp/ws/track.mp3", path)
}

func TestParseLineIgnoresGarbage(t *testing.T) {
	y := &YouTubeAdapter{}

	called := false
	_, ok := y.parseLine([]byte("[download] Destination: x"), "u", func(internal.ProgressEvent) { called = true })

	assert.False(t, ok)
	assert.False(t, called)
}

func TestLocateAudioFallbackChain(t *testing.T) {
	dir := t.TempDir()
	ws := &workspace.Workspace{Id: "w", Dir: dir}
	y := &YouTubeAdapter{}

	// nothing produced
	_, err := y.locateAudio(ws, "")
	assert.ErrorIs(t, err, internal.ErrNoMedia)

	// exact reported path wins
	exact := filepath.Join(dir, "My Song.mp3")
	require.NoError(t, os.WriteFile(exact, []byte("a"), 0644))

	got, err := y.locateAudio(ws, exact)
	require.NoError(t, err)
	assert.Equal(t, exact, got)

	// stale reported path falls back to the extension glob
	got, err = y.locateAudio(ws, filepath.Join(dir, "renamed-away.mp3"))
	require.NoError(t, err)
	assert.Equal(t, exact, got)

	// reported path outside the workspace is not trusted
	outside := filepath.Join(t.TempDir(), "evil.mp3")
	require.NoError(t, os.WriteFile(outside, []byte("a"), 0644))

	got, err = y.locateAudio(ws, outside)
	require.NoError(t, err)
	assert.Equal(t, exact, got)
}

func TestClassifyEngineError(t *testing.T) {
	assert.ErrorIs(t,
		classifyEngineError(assert.AnError, "ERROR: Unsupported URL: https://x"),
		internal.ErrUnsupportedSource,
	)
	assert.ErrorIs(t,
		classifyEngineError(assert.AnError, "ERROR: Video unavailable"),
		internal.ErrNoMedia,
	)
	assert.ErrorIs(t,
		classifyEngineError(assert.AnError, "ERROR: This video is private"),
		internal.ErrAuthRequired,
	)
	assert.ErrorIs(t,
		classifyEngineError(assert.AnError, "ERROR: unable to download webpage"),
		internal.ErrUnreachable,
	)
	assert.ErrorIs(t,
		classifyEngineError(assert.AnError, ""),
		internal.ErrUnreachable,
	)
}

func TestCollectArtifactsFiltersSidecars(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"post_1.jpg", "post_2.mp4", "post_1.json.xz", "post_1.txt", "notes.json",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	artifacts, err := collectArtifacts(dir, internal.CategoryImage, internal.CategoryVideo)
	require.NoError(t, err)

	assert.Len(t, artifacts, 2)
}
