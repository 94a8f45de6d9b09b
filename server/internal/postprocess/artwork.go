package postprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"

	_ "image/png"

	_ "golang.org/x/image/webp"
)

const coverQuality = 95

// EmbedArtwork crops the thumbnail to a centered square, re-encodes it as
// JPEG and stores it as the front cover of the audio file, replacing any
// cover already present. The source image is deleted afterwards whether or
// not the embed succeeded.
func EmbedArtwork(audioPath, imagePath string) error {
	defer func() {
		if err := os.Remove(imagePath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove thumbnail", slog.String("path", imagePath), slog.Any("err", err))
		}
	}()

	cover, err := squareCover(imagePath)
	if err != nil {
		return fmt.Errorf("failed to prepare cover: %w", err)
	}

	tag, err := id3v2.Open(audioPath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open audio tags: %w", err)
	}
	defer tag.Close()

	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     cover,
	})

	// fallbacks so a tagless file is still presentable
	if tag.Title() == "" {
		base := filepath.Base(audioPath)
		tag.SetTitle(strings.TrimSuffix(base, filepath.Ext(base)))
	}
	if tag.Artist() == "" {
		tag.SetArtist("Unknown Artist")
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save audio tags: %w", err)
	}

	slog.Info("embedded artwork", slog.String("audio", audioPath))
	return nil
}

// squareCover decodes the image (jpeg, png or webp), crops a centered
// square of side min(width, height) and returns it as a quality-95 JPEG.
// Drawing onto an opaque RGBA canvas flattens any alpha channel.
func squareCover(imagePath string) ([]byte, error) {
	fd, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	src, _, err := image.Decode(fd)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	side := bounds.Dx()
	if bounds.Dy() < side {
		side = bounds.Dy()
	}

	offsetX := bounds.Min.X + (bounds.Dx()-side)/2
	offsetY := bounds.Min.Y + (bounds.Dy()-side)/2

	cropped := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(cropped, cropped.Bounds(), src, image.Pt(offsetX, offsetY), draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: coverQuality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
