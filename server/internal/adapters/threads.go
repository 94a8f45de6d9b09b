package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/workspace"
)

// carousel posts are capped to avoid unbounded fetches
const threadsMaxItems = 10

var (
	threadsDomainRe    = regexp.MustCompile(`(?i)threads\.com`)
	threadsShortcodeRe = regexp.MustCompile(`/post/([^/?#]+)`)
	threadsScriptRe    = regexp.MustCompile(`(?s)<script[^>]*data-sjs[^>]*>(.*?)</script>`)
)

// ThreadsAdapter scrapes the post page: it parses the JSON payloads the
// page embeds in data-sjs script elements and searches them for the node
// whose code matches the URL's shortcode.
type ThreadsAdapter struct {
	Client *http.Client
	// Where the raw page is persisted when extraction fails. Defaults to
	// the system temp directory; the file outlives workspace cleanup since
	// it exists for diagnosis.
	DebugDir string
}

const threadsTimeout = time.Second * 30

func NewThreadsAdapter() *ThreadsAdapter {
	return &ThreadsAdapter{
		Client: &http.Client{Timeout: threadsTimeout},
	}
}

func (a *ThreadsAdapter) Name() string { return "threads" }

func (a *ThreadsAdapter) Fetch(ctx context.Context, rawURL string, ws *workspace.Workspace, opts Options, report ReportFunc) (*Result, error) {
	// common typo'd TLD, normalized before use
	rawURL = threadsDomainRe.ReplaceAllString(rawURL, "threads.net")

	shortcode := ""
	if m := threadsShortcodeRe.FindStringSubmatch(rawURL); m != nil {
		shortcode = m[1]
	}
	if shortcode == "" {
		return nil, fmt.Errorf("%w: no shortcode in url", internal.ErrNoMedia)
	}

	page, err := a.fetchPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	mediaURLs := extractMediaURLs(page, shortcode)
	if len(mediaURLs) == 0 {
		debugPath := a.persistDebugPage(page)
		return nil, fmt.Errorf("%w: no payload for shortcode %s (page kept at %s)",
			internal.ErrNoMedia, shortcode, debugPath)
	}

	if len(mediaURLs) > threadsMaxItems {
		mediaURLs = mediaURLs[:threadsMaxItems]
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	artifacts := make([]internal.MediaArtifact, len(mediaURLs))
	for i, mURL := range mediaURLs {
		i, mURL := i, mURL
		g.Go(func() error {
			ext := ".jpg"
			cat := internal.CategoryImage
			if strings.Contains(mURL, ".mp4") || strings.Contains(mURL, "_mp4") {
				ext = ".mp4"
				cat = internal.CategoryVideo
			}

			dest := filepath.Join(ws.Dir, fmt.Sprintf("threads_%d%s", i, ext))
			n, err := downloadFile(gctx, a.Client, mURL, dest)
			if err != nil {
				return err
			}

			artifacts[i] = internal.MediaArtifact{Path: dest, Category: cat, SizeBytes: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("threads media fetched",
		slog.String("shortcode", shortcode),
		slog.Int("count", len(artifacts)),
	)
	return &Result{Artifacts: artifacts}, nil
}

func (a *ThreadsAdapter) fetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Sec-Fetch-Mode", "navigate")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", internal.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: page load status %d", internal.ErrUnreachable, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// persistDebugPage keeps the raw HTML around for diagnosis. Best effort.
func (a *ThreadsAdapter) persistDebugPage(page []byte) string {
	dir := a.DebugDir
	if dir == "" {
		dir = os.TempDir()
	}

	fd, err := os.CreateTemp(dir, "threads-debug-*.html")
	if err != nil {
		slog.Warn("failed to persist threads debug page", slog.Any("err", err))
		return "unavailable"
	}
	defer fd.Close()

	fd.Write(page)
	slog.Warn("threads extraction failed, raw page persisted", slog.String("path", fd.Name()))
	return fd.Name()
}

// extractMediaURLs returns the best-quality media URL per item of the post
// matching the shortcode: the carousel items when present, otherwise the
// single video or the widest image.
func extractMediaURLs(page []byte, shortcode string) []string {
	var urls []string
	seen := map[string]bool{}

	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	for _, m := range threadsScriptRe.FindAllSubmatch(page, -1) {
		var payload any
		if err := json.Unmarshal(m[1], &payload); err != nil {
			continue
		}

		node, ok := findNodeWithCode(payload, shortcode).(map[string]any)
		if !ok {
			continue
		}

		if carousel, ok := node["carousel_media"].([]any); ok && len(carousel) > 0 {
			for _, item := range carousel {
				itemNode, ok := item.(map[string]any)
				if !ok {
					continue
				}
				if v := bestVideoURL(itemNode); v != "" {
					add(v)
				} else {
					add(bestImageURL(itemNode))
				}
			}
			break
		}

		if v := bestVideoURL(node); v != "" {
			add(v)
		} else {
			add(bestImageURL(node))
		}
		break
	}

	return urls
}

// findNodeWithCode walks the decoded payload depth-first for the node whose
// "code" field equals code.
func findNodeWithCode(data any, code string) any {
	switch v := data.(type) {
	case map[string]any:
		if v["code"] == code {
			return v
		}
		for _, child := range v {
			if found := findNodeWithCode(child, code); found != nil {
				return found
			}
		}
	case []any:
		for _, item := range v {
			if found := findNodeWithCode(item, code); found != nil {
				return found
			}
		}
	}
	return nil
}

func bestVideoURL(node map[string]any) string {
	versions, ok := node["video_versions"].([]any)
	if !ok || len(versions) == 0 {
		return ""
	}
	first, ok := versions[0].(map[string]any)
	if !ok {
		return ""
	}
	u, _ := first["url"].(string)
	return u
}

func bestImageURL(node map[string]any) string {
	iv, ok := node["image_versions2"].(map[string]any)
	if !ok {
		return ""
	}
	candidates, ok := iv["candidates"].([]any)
	if !ok || len(candidates) == 0 {
		return ""
	}

	type cand struct {
		url   string
		width float64
	}

	var all []cand
	for _, c := range candidates {
		m, ok := c.(map[string]any)
		if !ok {
			continue
		}
		u, _ := m["url"].(string)
		w, _ := m["width"].(float64)
		all = append(all, cand{url: u, width: w})
	}
	if len(all) == 0 {
		return ""
	}

	sort.Slice(all, func(i, j int) bool { return all[i].width > all[j].width })
	return all[0].url
}
