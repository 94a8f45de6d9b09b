package adapters

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"regexp"
	"strings"
	"syscall"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/workspace"
)

var instagramShortcodeRe = regexp.MustCompile(`instagram\.com/(?:p|reel|tv)/([^/?#&]+)`)

// InstagramAdapter shells out to instaloader reusing a previously
// established session. A missing username is a hard authentication error;
// a valid session that still yields a platform-limited carousel surfaces as
// a soft warning on the result.
type InstagramAdapter struct {
	InstaloaderPath string
	Username        string
	SessionFile     string
}

func NewInstagramAdapter(instaloaderPath, username, sessionFile string) *InstagramAdapter {
	return &InstagramAdapter{
		InstaloaderPath: instaloaderPath,
		Username:        username,
		SessionFile:     sessionFile,
	}
}

func (a *InstagramAdapter) Name() string { return "instagram" }

func (a *InstagramAdapter) Fetch(ctx context.Context, rawURL string, ws *workspace.Workspace, opts Options, report ReportFunc) (*Result, error) {
	if a.Username == "" {
		return nil, fmt.Errorf("%w: no instagram session configured", internal.ErrAuthRequired)
	}

	shortcode, err := ExtractInstagramShortcode(rawURL)
	if err != nil {
		return nil, err
	}

	params := []string{
		"--dirname-pattern", ws.Dir,
		"--filename-pattern", "{shortcode}_{date_utc}_UTC_{mediaid}",
		"--no-metadata-json",
		"--no-captions",
		"--no-video-thumbnails",
		"--no-compress-json",
		"--quiet",
		"--login", a.Username,
	}
	if a.SessionFile != "" {
		params = append(params, "--sessionfile", a.SessionFile)
	}
	params = append(params, "--", "-"+shortcode)

	slog.Info("requesting instagram post",
		slog.String("shortcode", shortcode),
		slog.String("workspace", ws.Id),
	)

	cmd := exec.CommandContext(ctx, a.InstaloaderPath, params...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	artifacts, err := collectArtifacts(ws.Dir, internal.CategoryImage, internal.CategoryVideo)
	if err != nil {
		return nil, err
	}

	if runErr != nil {
		if len(artifacts) == 0 {
			return nil, classifyInstaloaderError(runErr, stderr.String())
		}
		// engine failed part-way but media exists: platform limited the result
		slog.Warn("instagram returned a partial result",
			slog.String("shortcode", shortcode),
			slog.String("err", firstLine(stderr.String())),
		)
		return &Result{Artifacts: artifacts, Warning: internal.ErrPartialResult}, nil
	}

	if len(artifacts) == 0 {
		return nil, fmt.Errorf("%w: post %s yielded no media", internal.ErrNoMedia, shortcode)
	}

	res := &Result{Artifacts: artifacts}
	if loginLimited(stderr.String()) {
		res.Warning = internal.ErrPartialResult
	}
	return res, nil
}

// ExtractInstagramShortcode pulls the per-post identifier out of the URL:
// an explicit post/reel/tv path match first, then a positional
// path-segment heuristic.
func ExtractInstagramShortcode(rawURL string) (string, error) {
	if m := instagramShortcodeRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: unparseable url", internal.ErrNoMedia)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) >= 2 {
		return segments[len(segments)-1], nil
	}

	return "", fmt.Errorf("%w: no shortcode in url", internal.ErrNoMedia)
}

func classifyInstaloaderError(err error, stderr string) error {
	switch {
	case loginLimited(stderr):
		return fmt.Errorf("%w: %s", internal.ErrAuthRequired, firstLine(stderr))
	case strings.Contains(stderr, "Fetching Post metadata failed"),
		strings.Contains(stderr, "does not exist"):
		return fmt.Errorf("%w: %s", internal.ErrNoMedia, firstLine(stderr))
	case stderr != "":
		return fmt.Errorf("%w: %s", internal.ErrUnreachable, firstLine(stderr))
	default:
		return fmt.Errorf("%w: %s", internal.ErrUnreachable, err)
	}
}

func loginLimited(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "login required") ||
		strings.Contains(lower, "login error") ||
		strings.Contains(lower, "401")
}
