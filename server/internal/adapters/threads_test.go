package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threadsPage(payload string) string {
	return fmt.Sprintf(
		`<html><head><script type="application/json" data-sjs>%s</script></head><body></body></html>`,
		payload,
	)
}

func TestThreadsSingleImagePost(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("picture"))
	}))
	defer media.Close()

	payload := fmt.Sprintf(`{"require":[{"post":{"code":"Cpost1",
		"image_versions2":{"candidates":[
			{"url":"%[1]s/small.jpg","width":320},
			{"url":"%[1]s/large.jpg","width":1080}
		]}}}]}`, media.URL)

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, threadsPage(payload))
	}))
	defer page.Close()

	a := NewThreadsAdapter()
	ws := &workspace.Workspace{Id: "w", Dir: t.TempDir()}

	res, err := a.Fetch(context.Background(), page.URL+"/@user/post/Cpost1", ws, Options{}, nil)
	require.NoError(t, err)

	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, internal.CategoryImage, res.Artifacts[0].Category)
}

func TestThreadsCarouselCappedAtTen(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer media.Close()

	items := ""
	for i := 0; i < 15; i++ {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"image_versions2":{"candidates":[{"url":"%s/img-%d.jpg","width":800}]}}`, media.URL, i)
	}

	payload := fmt.Sprintf(`{"post":{"code":"Cbig","carousel_media":[%s]}}`, items)

	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, threadsPage(payload))
	}))
	defer page.Close()

	a := NewThreadsAdapter()
	ws := &workspace.Workspace{Id: "w", Dir: t.TempDir()}

	res, err := a.Fetch(context.Background(), page.URL+"/@user/post/Cbig", ws, Options{}, nil)
	require.NoError(t, err)

	assert.Len(t, res.Artifacts, threadsMaxItems)
}

func TestThreadsNoMatchingNodePersistsPage(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, threadsPage(`{"post":{"code":"Cother"}}`))
	}))
	defer page.Close()

	debugDir := t.TempDir()
	a := NewThreadsAdapter()
	a.DebugDir = debugDir

	ws := &workspace.Workspace{Id: "w", Dir: t.TempDir()}

	_, err := a.Fetch(context.Background(), page.URL+"/@user/post/Cwanted", ws, Options{}, nil)
	assert.ErrorIs(t, err, internal.ErrNoMedia)

	kept, globErr := filepath.Glob(filepath.Join(debugDir, "threads-debug-*.html"))
	require.NoError(t, globErr)
	require.Len(t, kept, 1)

	html, readErr := os.ReadFile(kept[0])
	require.NoError(t, readErr)
	assert.Contains(t, string(html), "Cother")
}

func TestThreadsMissingShortcodeYieldsNoMedia(t *testing.T) {
	a := NewThreadsAdapter()
	ws := &workspace.Workspace{Id: "w", Dir: t.TempDir()}

	_, err := a.Fetch(context.Background(), "https://www.threads.net/@user", ws, Options{}, nil)
	assert.ErrorIs(t, err, internal.ErrNoMedia)
}

func TestFindNodeWithCode(t *testing.T) {
	var payload any = map[string]any{
		"a": []any{
			map[string]any{"code": "wrong"},
			map[string]any{
				"nested": map[string]any{"code": "right", "marker": true},
			},
		},
	}

	node, ok := findNodeWithCode(payload, "right").(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, node["marker"])

	assert.Nil(t, findNodeWithCode(payload, "absent"))
}

func TestBestVideoURLPreferredOverImage(t *testing.T) {
	node := map[string]any{
		"video_versions":  []any{map[string]any{"url": "https://cdn/video.mp4"}},
		"image_versions2": map[string]any{"candidates": []any{map[string]any{"url": "https://cdn/img.jpg", "width": 100.0}}},
	}

	urls := extractMediaURLsFromNodeForTest(node, "c")
	require.Len(t, urls, 1)
	assert.Equal(t, "https://cdn/video.mp4", urls[0])
}

func extractMediaURLsFromNodeForTest(node map[string]any, code string) []string {
	node["code"] = code
	raw, _ := json.Marshal(node)
	page := []byte(threadsPage(string(raw)))
	return extractMediaURLs(page, code)
}
