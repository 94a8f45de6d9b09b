package postprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAudioFixture creates a file with a pre-written ID3 tag followed by a
// few bytes standing in for mpeg frames.
func writeAudioFixture(t *testing.T, frames map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "track.mp3")
	require.NoError(t, os.WriteFile(path, []byte("\x00\x00\x00\x00fake-mpeg-data"), 0644))

	if len(frames) > 0 {
		tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
		require.NoError(t, err)
		for id, text := range frames {
			tag.AddTextFrame(id, tag.DefaultEncoding(), text)
		}
		require.NoError(t, tag.Save())
		require.NoError(t, tag.Close())
	}

	return path
}

func writeImageFixture(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 255), G: uint8(y % 255), A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "thumb.png")
	fd, err := os.Create(path)
	require.NoError(t, err)
	defer fd.Close()
	require.NoError(t, png.Encode(fd, img))

	return path
}

func TestEmbedArtworkProducesSquareCover(t *testing.T) {
	audio := writeAudioFixture(t, nil)
	thumb := writeImageFixture(t, 400, 200)

	require.NoError(t, EmbedArtwork(audio, thumb))

	// thumbnail consumed
	_, err := os.Stat(thumb)
	assert.True(t, os.IsNotExist(err))

	tag, err := id3v2.Open(audio, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	frames := tag.GetFrames(tag.CommonID("Attached picture"))
	require.Len(t, frames, 1)

	pic, ok := frames[0].(id3v2.PictureFrame)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", pic.MimeType)

	cover, err := jpeg.Decode(bytes.NewReader(pic.Picture))
	require.NoError(t, err)
	assert.Equal(t, 200, cover.Bounds().Dx())
	assert.Equal(t, 200, cover.Bounds().Dy())
}

func TestEmbedArtworkReplacesExistingCover(t *testing.T) {
	audio := writeAudioFixture(t, nil)

	require.NoError(t, EmbedArtwork(audio, writeImageFixture(t, 100, 100)))
	require.NoError(t, EmbedArtwork(audio, writeImageFixture(t, 300, 120)))

	tag, err := id3v2.Open(audio, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	frames := tag.GetFrames(tag.CommonID("Attached picture"))
	assert.Len(t, frames, 1)
}

func TestEmbedArtworkDeletesThumbnailOnFailure(t *testing.T) {
	audio := writeAudioFixture(t, nil)

	thumb := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(thumb, []byte("not an image"), 0644))

	assert.Error(t, EmbedArtwork(audio, thumb))

	_, err := os.Stat(thumb)
	assert.True(t, os.IsNotExist(err))
}

func TestNormalizeTagsFillsOnlyMissing(t *testing.T) {
	audio := writeAudioFixture(t, map[string]string{"TIT2": "Kept Title"})

	require.NoError(t, NormalizeTags(audio, "New Title", "Some Uploader"))

	tag, err := id3v2.Open(audio, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	assert.Equal(t, "Kept Title", tag.Title())
	assert.Equal(t, "Some Uploader", tag.Artist())
}

func TestNormalizeTagsTruncatesRecordingDate(t *testing.T) {
	audio := writeAudioFixture(t, map[string]string{"TDRC": "2019-05-01"})

	require.NoError(t, NormalizeTags(audio, "", ""))

	tag, err := id3v2.Open(audio, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	assert.Equal(t, "2019", tag.GetTextFrame("TDRC").Text)
}
