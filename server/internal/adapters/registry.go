package adapters

import (
	"github.com/mediafetch/mediafetch/server/config"
	"github.com/mediafetch/mediafetch/server/internal/metadata"
)

// DefaultRegistry wires the stock adapter set in its match order:
// Instagram, TikTok, Threads, then the generic engine for everything else.
func DefaultRegistry(cfg *config.Config) *Registry {
	probe := metadata.NewCommandFetcher(cfg.Paths.DownloaderPath)
	generic := NewYouTubeAdapter(cfg.Paths.DownloaderPath, cfg.Paths.CookiesFile, probe)

	return NewRegistry(
		generic,
		Rule{
			Match: DomainMatcher("instagram.com"),
			Adapter: NewInstagramAdapter(
				cfg.Paths.InstaloaderPath,
				cfg.Instagram.Username,
				cfg.Instagram.SessionFile,
			),
		},
		Rule{
			Match:   DomainMatcher("tiktok.com"),
			Adapter: NewTikTokAdapter(cfg.TikTok.APIURL, cfg.TikTok.Timeout),
		},
		Rule{
			Match:   DomainMatcher("threads.net", "threads.com"),
			Adapter: NewThreadsAdapter(),
		},
	)
}
