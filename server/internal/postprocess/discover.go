package postprocess

import (
	"os"
	"path/filepath"
	"strings"
)

var thumbnailExts = []string{".jpg", ".jpeg", ".png", ".webp"}

// FindThumbnail locates the image written next to an audio file. The chain
// is deliberate and ordered: exact base-name match across the known image
// extensions first, then any image in the directory that is not the audio
// file itself.
func FindThumbnail(dir, audioPath string) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))

	for _, ext := range thumbnailExts {
		candidate := filepath.Join(dir, base+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()
		if filepath.Join(dir, name) == audioPath {
			continue
		}

		ext := strings.ToLower(filepath.Ext(name))
		for _, allowed := range thumbnailExts {
			if ext == allowed {
				return filepath.Join(dir, name), true
			}
		}
	}

	return "", false
}
