package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/mediafetch/mediafetch/server/internal"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// downloadFile streams url into dest and returns the byte count. No partial
// file is left behind on failure.
func downloadFile(ctx context.Context, client *http.Client, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", internal.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status %d", internal.ErrUnreachable, resp.StatusCode)
	}

	fd, err := os.Create(dest)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(fd, resp.Body)
	if cerr := fd.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("%w: %s", internal.ErrUnreachable, err)
	}

	return n, nil
}
