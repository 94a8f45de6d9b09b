package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTikTok(apiURL string) *TikTokAdapter {
	return NewTikTokAdapter(apiURL, time.Second*5)
}

func TestTikTokNonZeroCodeYieldsNoMediaAndNoWrites(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code": -1, "msg": "url parse error"}`)
	}))
	defer api.Close()

	ws := &workspace.Workspace{Id: "w", Dir: t.TempDir()}

	_, err := newTikTok(api.URL).Fetch(context.Background(), "https://www.tiktok.com/@u/video/1", ws, Options{}, nil)
	assert.ErrorIs(t, err, internal.ErrNoMedia)

	entries, readErr := os.ReadDir(ws.Dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestTikTokDownloadsSingleVideo(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-video-bytes"))
	}))
	defer media.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1", r.Form.Get("hd"))

		fmt.Fprintf(w, `{"code":0,"data":{"title":"Some Clip","play":"%s/v.mp4","author":{"nickname":"creator"}}}`, media.URL)
	}))
	defer api.Close()

	ws := &workspace.Workspace{Id: "w", Dir: t.TempDir()}

	res, err := newTikTok(api.URL).Fetch(context.Background(), "https://www.tiktok.com/@u/video/1", ws, Options{}, nil)
	require.NoError(t, err)

	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, internal.CategoryVideo, res.Artifacts[0].Category)
	assert.Equal(t, int64(len("fake-video-bytes")), res.Artifacts[0].SizeBytes)
	assert.Equal(t, "Some Clip", res.Title)
	assert.Equal(t, "creator", res.Uploader)
	assert.True(t, ws.Contains(res.Artifacts[0].Path))
}

func TestTikTokDownloadsImageCarousel(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("img"))
	}))
	defer media.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"data":{"images":["%[1]s/1.jpg","%[1]s/2.jpg","%[1]s/3.jpg"]}}`, media.URL)
	}))
	defer api.Close()

	ws := &workspace.Workspace{Id: "w", Dir: t.TempDir()}

	res, err := newTikTok(api.URL).Fetch(context.Background(), "https://www.tiktok.com/@u/photo/1", ws, Options{}, nil)
	require.NoError(t, err)

	assert.Len(t, res.Artifacts, 3)
	for _, a := range res.Artifacts {
		assert.Equal(t, internal.CategoryImage, a.Category)
	}
}

func TestTikTokEmptyPayloadYieldsNoMedia(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{}}`)
	}))
	defer api.Close()

	ws := &workspace.Workspace{Id: "w", Dir: t.TempDir()}

	_, err := newTikTok(api.URL).Fetch(context.Background(), "https://www.tiktok.com/@u/video/1", ws, Options{}, nil)
	assert.ErrorIs(t, err, internal.ErrNoMedia)
}

func TestTikTokResolverDownYieldsUnreachable(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer api.Close()

	ws := &workspace.Workspace{Id: "w", Dir: t.TempDir()}

	_, err := newTikTok(api.URL).Fetch(context.Background(), "https://www.tiktok.com/@u/video/1", ws, Options{}, nil)
	assert.ErrorIs(t, err, internal.ErrUnreachable)
}
