package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/workspace"
)

// TikTokAdapter resolves direct media URLs through a third-party API and
// streams each one into the workspace.
type TikTokAdapter struct {
	APIURL string
	Client *http.Client
}

func NewTikTokAdapter(apiURL string, timeout time.Duration) *TikTokAdapter {
	return &TikTokAdapter{
		APIURL: apiURL,
		Client: &http.Client{Timeout: timeout},
	}
}

func (a *TikTokAdapter) Name() string { return "tiktok" }

type tikTokResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Title  string   `json:"title"`
		Play   string   `json:"play"`
		Images []string `json:"images"`
		Author struct {
			Nickname string `json:"nickname"`
		} `json:"author"`
	} `json:"data"`
}

func (a *TikTokAdapter) Fetch(ctx context.Context, rawURL string, ws *workspace.Workspace, opts Options, report ReportFunc) (*Result, error) {
	resolved, err := a.resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if resolved.Code != 0 {
		return nil, fmt.Errorf("%w: resolver replied %d (%s)", internal.ErrNoMedia, resolved.Code, resolved.Msg)
	}

	res := &Result{
		Title:    resolved.Data.Title,
		Uploader: resolved.Data.Author.Nickname,
	}

	switch {
	case len(resolved.Data.Images) > 0:
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)

		artifacts := make([]internal.MediaArtifact, len(resolved.Data.Images))
		for i, imgURL := range resolved.Data.Images {
			i, imgURL := i, imgURL
			g.Go(func() error {
				dest := filepath.Join(ws.Dir, fmt.Sprintf("image_%d.jpg", i))
				n, err := downloadFile(gctx, a.Client, imgURL, dest)
				if err != nil {
					return err
				}
				artifacts[i] = internal.MediaArtifact{
					Path:      dest,
					Category:  internal.CategoryImage,
					SizeBytes: n,
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		res.Artifacts = artifacts

	case resolved.Data.Play != "":
		dest := filepath.Join(ws.Dir, "video.mp4")
		n, err := downloadFile(ctx, a.Client, resolved.Data.Play, dest)
		if err != nil {
			return nil, err
		}
		res.Artifacts = []internal.MediaArtifact{{
			Path:      dest,
			Category:  internal.CategoryVideo,
			SizeBytes: n,
		}}

	default:
		return nil, fmt.Errorf("%w: resolver returned neither images nor video", internal.ErrNoMedia)
	}

	slog.Info("tiktok media fetched",
		slog.String("workspace", ws.Id),
		slog.Int("count", len(res.Artifacts)),
	)
	return res, nil
}

func (a *TikTokAdapter) resolve(ctx context.Context, rawURL string) (*tikTokResponse, error) {
	form := url.Values{}
	form.Set("url", rawURL)
	form.Set("hd", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", internal.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: resolver status %d", internal.ErrUnreachable, resp.StatusCode)
	}

	var out tikTokResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: invalid resolver payload: %s", internal.ErrUnreachable, err)
	}

	return &out, nil
}
