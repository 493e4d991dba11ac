package audio

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"VibingStorage/logger"
	"VibingStorage/model"

	"github.com/bogem/id3v2"
)

// ID3Extractor reads title, artist, genre and length from ID3v2 tags.
// Files without a tag yield only a title derived from the file name.
type ID3Extractor struct {
	// Root is joined with relative track paths before opening.
	Root string
}

// NewID3Extractor returns an extractor resolving relative paths against root.
func NewID3Extractor(root string) *ID3Extractor {
	return &ID3Extractor{Root: root}
}

// Extract opens path and returns whatever metadata its tag carries. Missing
// files surface as the underlying *fs.PathError.
func (e *ID3Extractor) Extract(path string) (model.TrackMetadata, error) {
	meta := model.TrackMetadata{Path: path}

	full := path
	if e.Root != "" && !filepath.IsAbs(path) {
		full = filepath.Join(e.Root, path)
	}

	tag, err := id3v2.Open(full, id3v2.Options{Parse: true})
	if err != nil {
		return meta, fmt.Errorf("id3 open error: %w", err)
	}
	defer tag.Close()

	meta.Title = nonEmpty(tag.Title())
	meta.Author = nonEmpty(tag.Artist())
	meta.Genre = nonEmpty(tag.Genre())

	// TLEN holds the length in milliseconds.
	if length := tag.GetTextFrame(tag.CommonID("Length")).Text; length != "" {
		if ms, err := strconv.Atoi(strings.TrimSpace(length)); err == nil && ms >= 0 {
			meta.Duration = model.Ptr(ms / 1000)
		} else {
			logger.Debug("ignoring malformed TLEN frame", logger.String("path", path), logger.String("value", length))
		}
	}

	if meta.Title == nil {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		meta.Title = nonEmpty(stem)
	}
	return meta, nil
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
