package adapters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/formats"
	"github.com/mediafetch/mediafetch/server/internal/metadata"
	"github.com/mediafetch/mediafetch/server/internal/workspace"
)

const downloadTemplate = `download:
{
	"percent_str":"%(progress._percent_str)s",
	"downloaded_bytes":%(progress.downloaded_bytes|0)s,
	"total_bytes":%(progress.total_bytes|0)s,
	"total_bytes_estimate":%(progress.total_bytes_estimate|0)s,
	"speed":%(progress.speed|0)s,
	"eta":%(progress.eta|0)s
}`

// filename not returning the correct extension after postprocess
const postprocessTemplate = `postprocess:
{
	"filepath":"%(info.filepath)s"
}`

// one struct for both template shapes, discriminated by populated fields
type templateLine struct {
	PercentStr      string  `json:"percent_str"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	TotalBytes      int64   `json:"total_bytes"`
	TotalEstimate   float64 `json:"total_bytes_estimate"`
	Speed           float64 `json:"speed"`
	Eta             float64 `json:"eta"`
	Filepath        string  `json:"filepath"`
}

// YouTubeAdapter delegates to a generic extraction engine (yt-dlp or
// compatible). It also serves as the fallback for every URL no other
// adapter claims, since the engine resolves arbitrary sites.
type YouTubeAdapter struct {
	DownloaderPath string
	CookiesFile    string
	Probe          metadata.Fetcher
}

func NewYouTubeAdapter(downloaderPath, cookiesFile string, probe metadata.Fetcher) *YouTubeAdapter {
	return &YouTubeAdapter{
		DownloaderPath: downloaderPath,
		CookiesFile:    cookiesFile,
		Probe:          probe,
	}
}

func (y *YouTubeAdapter) Name() string { return "youtube" }

func (y *YouTubeAdapter) Fetch(ctx context.Context, url string, ws *workspace.Workspace, opts Options, report ReportFunc) (*Result, error) {
	res := &Result{}

	if opts.AudioOnly && y.Probe != nil {
		if meta, err := y.Probe(ctx, url); err == nil {
			res.Title = meta.Title
			res.Uploader = meta.Uploader
		} else {
			slog.Warn("metadata probe failed", slog.String("url", url), slog.Any("err", err))
		}
	}

	savedPath, stderr, err := y.run(ctx, url, ws, opts, report)
	if err != nil {
		return nil, classifyEngineError(err, stderr)
	}

	if opts.AudioOnly {
		audioPath, err := y.locateAudio(ws, savedPath)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(audioPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", internal.ErrNoMedia, err)
		}

		res.Artifacts = []internal.MediaArtifact{{
			Path:      audioPath,
			Category:  internal.CategoryAudio,
			SizeBytes: info.Size(),
		}}
		return res, nil
	}

	artifacts, err := collectArtifacts(ws.Dir, internal.CategoryVideo, internal.CategoryAudio)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, internal.ErrNoMedia
	}

	res.Artifacts = artifacts
	return res, nil
}

func (y *YouTubeAdapter) run(ctx context.Context, url string, ws *workspace.Workspace, opts Options, report ReportFunc) (savedPath string, stderr string, err error) {
	templateReplacer := strings.NewReplacer("\n", "", "\t", "", " ", "")

	params := []string{
		url,
		"--newline",
		"--no-colors",
		"--no-exec",
		"--no-mtime",
		"-o", filepath.Join(ws.Dir, "%(title)s.%(ext)s"),
		"--progress-template", templateReplacer.Replace(downloadTemplate),
		"--progress-template", templateReplacer.Replace(postprocessTemplate),
		"-f", formats.Resolve(formats.Selection{
			AudioOnly: opts.AudioOnly,
			MaxHeight: opts.MaxHeight,
			FormatId:  opts.FormatId,
		}),
	}

	if y.CookiesFile != "" {
		params = append(params, "--cookies", y.CookiesFile)
	}

	if opts.AudioOnly {
		params = append(params,
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", "192K",
			"--write-thumbnail",
			"--embed-metadata",
		)
	} else {
		params = append(params,
			"--merge-output-format", "mp4",
			"--embed-metadata",
		)
	}

	slog.Info("requesting download", slog.String("url", url), slog.String("workspace", ws.Id))

	cmd := exec.CommandContext(ctx, y.DownloaderPath, params...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", err
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", err
	}

	if err := cmd.Start(); err != nil {
		return "", "", err
	}

	var bufferedStderr bytes.Buffer
	go func() {
		io.Copy(&bufferedStderr, stderrPipe)
	}()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if path, ok := y.parseLine(scanner.Bytes(), url, report); ok {
			savedPath = path
		}
	}

	err = cmd.Wait()
	return savedPath, bufferedStderr.String(), err
}

// parseLine consumes one progress-template line. Returns a non-empty path
// when the line was a postprocess event carrying the final file path.
func (y *YouTubeAdapter) parseLine(entry []byte, url string, report ReportFunc) (string, bool) {
	var line templateLine
	if err := json.Unmarshal(entry, &line); err != nil {
		return "", false
	}

	if line.Filepath != "" {
		return line.Filepath, true
	}

	if line.PercentStr == "" {
		return "", false
	}

	total := line.TotalBytes
	if total == 0 {
		total = int64(line.TotalEstimate)
	}

	ev := internal.ProgressEvent{
		Phase:           internal.PhaseDownloading,
		Percent:         parsePercent(line.PercentStr),
		DownloadedBytes: line.DownloadedBytes,
		TotalBytes:      total,
		Speed:           line.Speed,
		ETA:             int64(line.Eta),
	}

	if report != nil {
		report(ev)
	}

	slog.Debug("progress",
		slog.String("url", url),
		slog.String("percentage", line.PercentStr),
	)

	return "", false
}

func parsePercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return -1
	}
	return v
}

// locateAudio resolves the produced audio file: the exact path reported by
// the engine's postprocess hook first, then a workspace glob by extension.
func (y *YouTubeAdapter) locateAudio(ws *workspace.Workspace, savedPath string) (string, error) {
	if savedPath != "" {
		if _, err := os.Stat(savedPath); err == nil && ws.Contains(savedPath) {
			return savedPath, nil
		}
	}

	found, err := filepath.Glob(filepath.Join(ws.Dir, "*.mp3"))
	if err == nil && len(found) > 0 {
		return found[0], nil
	}

	return "", fmt.Errorf("%w: no audio file produced", internal.ErrNoMedia)
}

// classifyEngineError maps engine stderr to the stable error conditions.
func classifyEngineError(err error, stderr string) error {
	switch {
	case strings.Contains(stderr, "Unsupported URL"):
		return fmt.Errorf("%w: %s", internal.ErrUnsupportedSource, firstLine(stderr))
	case strings.Contains(stderr, "Video unavailable"),
		strings.Contains(stderr, "No video formats"),
		strings.Contains(stderr, "This video is not available"):
		return fmt.Errorf("%w: %s", internal.ErrNoMedia, firstLine(stderr))
	case strings.Contains(stderr, "Sign in to confirm"),
		strings.Contains(stderr, "This video is private"),
		strings.Contains(stderr, "cookies"):
		return fmt.Errorf("%w: %s", internal.ErrAuthRequired, firstLine(stderr))
	case stderr != "":
		return fmt.Errorf("%w: %s", internal.ErrUnreachable, firstLine(stderr))
	default:
		return fmt.Errorf("%w: %s", internal.ErrUnreachable, err)
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
