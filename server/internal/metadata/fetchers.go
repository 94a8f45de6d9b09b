package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
)

// Metadata is the subset of the extraction engine's -J output the core
// cares about: identification, presentation and the raw format list.
type Metadata struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Uploader string      `json:"uploader"`
	URL      string      `json:"webpage_url"`
	Formats  []RawFormat `json:"formats"`
}

// RawFormat mirrors one entry of the engine's format list. Numeric fields
// are pointers because the engine emits null for audio-only entries.
type RawFormat struct {
	FormatID   string   `json:"format_id"`
	Ext        string   `json:"ext"`
	Height     *int     `json:"height"`
	TBR        *float64 `json:"tbr"`
	VCodec     string   `json:"vcodec"`
	ACodec     string   `json:"acodec"`
	FormatNote string   `json:"format_note"`
	Resolution string   `json:"resolution"`
	URL        string   `json:"url"`
}

func (f *RawFormat) HasVideo() bool { return f.VCodec != "" && f.VCodec != "none" }
func (f *RawFormat) HasAudio() bool { return f.ACodec != "" && f.ACodec != "none" }

// Fetcher resolves a URL to its metadata without downloading anything.
type Fetcher func(ctx context.Context, url string) (*Metadata, error)

// NewCommandFetcher probes with `<downloader> <url> -J`, the same engine the
// YouTube-family adapter downloads with.
func NewCommandFetcher(downloaderPath string) Fetcher {
	return func(ctx context.Context, url string) (*Metadata, error) {
		cmd := exec.CommandContext(ctx, downloaderPath, url, "-J", "--no-playlist")
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}

		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, err
		}

		if err := cmd.Start(); err != nil {
			return nil, err
		}

		var bufferedStderr bytes.Buffer

		go func() {
			io.Copy(&bufferedStderr, stderr)
		}()

		slog.Info("retrieving metadata", slog.String("url", url))

		var meta Metadata
		if err := json.NewDecoder(stdout).Decode(&meta); err != nil {
			return nil, err
		}

		if err := cmd.Wait(); err != nil {
			return nil, errors.New(bufferedStderr.String())
		}

		return &meta, nil
	}
}
