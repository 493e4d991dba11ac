// Package library keeps the track catalog in step with the files held by a
// storage provider.
package library

import (
	"context"
	"errors"
	"fmt"

	"VibingStorage/logger"
	"VibingStorage/model"
	"VibingStorage/repository"
	"VibingStorage/storage"
)

// ImportResult counts what one scan did.
type ImportResult struct {
	Scanned int `json:"scanned"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Importer creates catalog entries for stored files that have none.
type Importer struct {
	tracks    repository.TrackRepository
	store     storage.Provider
	extractor repository.MetadataExtractor
}

// NewImporter wires an importer. extractor may be nil, in which case tracks
// are created with only their path.
func NewImporter(tracks repository.TrackRepository, store storage.Provider, extractor repository.MetadataExtractor) *Importer {
	return &Importer{tracks: tracks, store: store, extractor: extractor}
}

// ImportFile creates a track for path unless one already exists. It
// reports whether a track was created.
func (im *Importer) ImportFile(ctx context.Context, path string) (bool, error) {
	if !storage.IsAudioFile(path) {
		return false, nil
	}

	_, err := im.tracks.GetByPath(ctx, path)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	track, err := im.tracks.CreateWithDefaults(ctx, model.TrackMetadata{Path: path}, im.extractor)
	if err != nil {
		return false, fmt.Errorf("import %s: %w", path, err)
	}
	logger.Info("imported track",
		logger.Int64("trackId", track.Track.ID),
		logger.String("path", path),
		logger.String("store", im.store.Name()))
	return true, nil
}

// ImportAll scans every audio file under prefix. A failing file is logged
// and counted; only listing errors and cancellation abort the scan.
func (im *Importer) ImportAll(ctx context.Context, prefix string) (ImportResult, error) {
	var res ImportResult

	objects, err := im.store.List(ctx, prefix)
	if err != nil {
		return res, fmt.Errorf("list %s: %w", im.store.Name(), err)
	}

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++

		created, err := im.ImportFile(ctx, obj.Key)
		switch {
		case err != nil:
			res.Failed++
			logger.Warn("import failed", logger.String("path", obj.Key), logger.ErrorField(err))
		case created:
			res.Created++
		default:
			res.Skipped++
		}
	}

	logger.Info("library scan finished",
		logger.String("store", im.store.Name()),
		logger.Int("scanned", res.Scanned),
		logger.Int("created", res.Created),
		logger.Int("skipped", res.Skipped),
		logger.Int("failed", res.Failed))
	return res, nil
}
