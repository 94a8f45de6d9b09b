package adapters

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mediafetch/mediafetch/server/internal"
	"github.com/mediafetch/mediafetch/server/internal/workspace"
)

// Options carries the per-request knobs an adapter honors.
type Options struct {
	AudioOnly bool
	MaxHeight int    // 0 = uncapped
	FormatId  string // manual format override
}

// ReportFunc receives raw progress updates from the adapter. Implementations
// are free to call it from any goroutine; throttling and cross-thread
// marshaling happen downstream.
type ReportFunc func(internal.ProgressEvent)

// Result is what an adapter hands back to the dispatcher. Title and
// Uploader are best-effort and may be empty. Warning carries a non-fatal
// degradation (e.g. a platform-limited carousel).
type Result struct {
	Artifacts []internal.MediaArtifact
	Title     string
	Uploader  string
	Warning   error
}

// Adapter turns a URL into local media files inside the given workspace.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, url string, ws *workspace.Workspace, opts Options, report ReportFunc) (*Result, error)
}

// Rule binds an ordered URL predicate to an adapter.
type Rule struct {
	Match   func(url string) bool
	Adapter Adapter
}

// Registry resolves a URL to an adapter via an ordered predicate list.
// First matching rule wins; unmatched URLs fall through to the generic
// adapter, which may still resolve arbitrary sites.
type Registry struct {
	rules    []Rule
	fallback Adapter
}

func NewRegistry(fallback Adapter, rules ...Rule) *Registry {
	return &Registry{rules: rules, fallback: fallback}
}

func (r *Registry) Resolve(url string) Adapter {
	for _, rule := range r.rules {
		if rule.Match(url) {
			return rule.Adapter
		}
	}
	return r.fallback
}

// DomainMatcher matches when the lowercased URL contains any of the given
// domain fragments.
func DomainMatcher(domains ...string) func(string) bool {
	return func(url string) bool {
		url = strings.ToLower(url)
		for _, d := range domains {
			if strings.Contains(url, d) {
				return true
			}
		}
		return false
	}
}

// collectArtifacts walks the workspace directory and returns every regular
// file whose extension maps to one of the wanted categories.
func collectArtifacts(dir string, wanted ...internal.MimeCategory) ([]internal.MediaArtifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	allowed := make(map[internal.MimeCategory]bool, len(wanted))
	for _, c := range wanted {
		allowed[c] = true
	}

	var out []internal.MediaArtifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		cat, ok := internal.CategoryForExt(strings.ToLower(filepath.Ext(e.Name())))
		if !ok || !allowed[cat] {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		out = append(out, internal.MediaArtifact{
			Path:      filepath.Join(dir, e.Name()),
			Category:  cat,
			SizeBytes: info.Size(),
		})
	}

	return out, nil
}
