package source

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/gaplessbox/internal/domain/track"
)

// ReadInfo reads title, artist and album tags from an audio file.
// Files without readable tags are titled after their file name.
func ReadInfo(path string) track.Info {
	info := track.Info{
		Title:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Source: path,
		Origin: track.OriginFile,
	}

	file, err := os.Open(path)
	if err != nil {
		zlog.Debug().Msgf("source: cannot open %s for tags: %v", path, err)
		return info
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		zlog.Debug().Msgf("source: no tags in %s: %v", path, err)
		return info
	}

	if title := strings.TrimSpace(meta.Title()); title != "" {
		info.Title = title
	}
	if artist := strings.TrimSpace(meta.Artist()); artist != "" {
		info.Artists = []string{artist}
	}
	info.Album = strings.TrimSpace(meta.Album())
	return info
}
