// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package engine

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cmalpass/frame-connect/internal/adb"
	"github.com/cmalpass/frame-connect/internal/metrics"
	"github.com/cmalpass/frame-connect/internal/models"
	"github.com/cmalpass/frame-connect/internal/processor"
	"github.com/cmalpass/frame-connect/internal/source"
)

// Run reconciles one mapping. It always returns a result; failures are
// reported through result.Errors rather than a separate error value so the
// run history and the caller see the same outcome.
func (e *Engine) Run(ctx context.Context, mappingID string, trigger models.TriggerKind) models.RunResult {
	result := models.RunResult{
		MappingID: mappingID,
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	logger := e.logger.With().Str("mapping_id", mappingID).Str("run_id", result.RunID).Logger()
	logger.Info().Str("trigger", string(trigger)).Msg("Run started")

	mapping, err := e.store.GetMapping(ctx, mappingID)
	if err != nil {
		return e.abort(logger, &result, nil, fmt.Errorf("resolve mapping: %w", err))
	}
	if !mapping.Active {
		return e.abort(logger, &result, mapping, fmt.Errorf("mapping %s is inactive", mappingID))
	}

	src, ok := e.sources[mapping.SourceID]
	if !ok {
		return e.abort(logger, &result, mapping, fmt.Errorf("unknown source %s", mapping.SourceID))
	}
	dev, err := e.devices.Resolve(mapping.DeviceID)
	if err != nil {
		return e.abort(logger, &result, mapping, fmt.Errorf("resolve device: %w", err))
	}

	// Pre-flight. An unreachable device aborts before any photo work so a
	// powered-off frame costs one probe, not one timeout per photo.
	if !e.transport.IsReady(ctx, dev) {
		return e.abort(logger, &result, mapping, fmt.Errorf("device %s is not ready", dev.ID))
	}
	if err := e.transport.EnsureDirectory(ctx, dev, dev.BaseDir); err != nil {
		return e.abort(logger, &result, mapping, fmt.Errorf("ensure base directory: %w", err))
	}

	photos, err := src.ListPhotos(ctx, mapping.AlbumID)
	if err != nil {
		return e.abort(logger, &result, mapping, fmt.Errorf("list photos: %w", err))
	}
	if mapping.MaxPhotos > 0 && len(photos) > mapping.MaxPhotos {
		logger.Debug().Int("listed", len(photos)).Int("cap", mapping.MaxPhotos).Msg("Applying photo cap")
		photos = photos[:mapping.MaxPhotos]
	}

	entries, err := e.store.LedgerEntries(ctx, mappingID)
	if err != nil {
		return e.abort(logger, &result, mapping, fmt.Errorf("load ledger: %w", err))
	}

	// current collects the IDs of the (possibly capped) listing; the
	// removal pass treats everything outside it as stale.
	current := make(map[string]bool, len(photos))
	e.addMissing(ctx, logger, mapping, src, dev, photos, entries, current, &result)

	if mapping.Policy.Deletes() {
		e.removeStale(ctx, logger, mapping, dev, current, &result)
	}

	if err := src.MarkSynced(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to mark source synced")
	}

	result.FinishedAt = time.Now().UTC()
	result.Success = len(result.Errors) == 0
	return e.finish(logger, &result, mapping.Policy)
}

// addMissing syncs every listed photo the ledger does not know about.
func (e *Engine) addMissing(
	ctx context.Context,
	logger zerolog.Logger,
	mapping *models.Mapping,
	src source.Source,
	dev models.DeviceHandle,
	photos []models.SourcePhoto,
	entries map[string]*models.LedgerEntry,
	current map[string]bool,
	result *models.RunResult,
) {
	for i := range photos {
		photo := &photos[i]
		current[photo.ID] = true

		if _, synced := entries[photo.ID]; synced {
			result.Skipped++
			continue
		}

		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("run interrupted: %v", err))
			return
		}

		transferred, err := e.syncPhoto(ctx, mapping, src, dev, photo)
		switch {
		case err != nil:
			logger.Warn().Err(err).Str("photo_id", photo.ID).Msg("Photo sync failed")
			result.Errors = append(result.Errors, fmt.Sprintf("photo %s: %v", photo.ID, err))
		case transferred:
			result.Added++
		default:
			// Bytes were already on the device.
			result.Skipped++
		}
	}
}

// syncPhoto downloads, processes, and places one photo. The bool reports
// whether bytes actually moved; false with a nil error is a remote dedup hit.
// Scratch files are released on every outcome.
func (e *Engine) syncPhoto(
	ctx context.Context,
	mapping *models.Mapping,
	src source.Source,
	dev models.DeviceHandle,
	photo *models.SourcePhoto,
) (bool, error) {
	tmpDir, err := os.MkdirTemp(e.opts.WorkDir, "frame-sync-")
	if err != nil {
		metrics.RecordPhotoError("workspace")
		return false, fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	localPath, err := src.Download(ctx, photo, tmpDir)
	if err != nil {
		metrics.RecordPhotoError("download")
		return false, fmt.Errorf("download: %w", err)
	}

	artifact, err := e.processor.Process(ctx, localPath, e.opts.Processor)
	if err != nil {
		metrics.RecordPhotoError("process")
		return false, fmt.Errorf("process: %w", err)
	}
	defer e.processor.Cleanup(artifact.Path)

	hash, err := adb.HashFile(artifact.Path)
	if err != nil {
		metrics.RecordPhotoError("hash")
		return false, fmt.Errorf("hash artifact: %w", err)
	}
	remotePath := remotePathFor(dev.BaseDir, hash, artifact.Format, photo)

	remoteHash, err := e.transport.RemoteHash(ctx, dev, remotePath)
	if err != nil {
		metrics.RecordPhotoError("remote_hash")
		return false, fmt.Errorf("remote hash: %w", err)
	}
	if remoteHash == hash {
		// Identical bytes are already in place, possibly pushed for a
		// different photo with the same content. Record, don't transfer.
		if err := e.recordEntry(ctx, mapping.ID, photo, remotePath, hash, artifact.Size); err != nil {
			return false, err
		}
		return false, nil
	}

	err = e.retryWithBackoff(ctx, func() error {
		_, pushErr := e.transport.PushFile(ctx, dev, artifact.Path, remotePath)
		return pushErr
	})
	if err != nil {
		metrics.RecordPhotoError("push")
		return false, fmt.Errorf("push: %w", err)
	}
	if err := e.transport.NotifyIndexed(ctx, dev, remotePath); err != nil {
		e.logger.Debug().Err(err).Str("remote_path", remotePath).Msg("Media index notification failed")
	}

	if err := e.recordEntry(ctx, mapping.ID, photo, remotePath, hash, artifact.Size); err != nil {
		return false, err
	}
	return true, nil
}

// recordEntry writes the ledger entry for a placed (or confirmed) photo. A
// write failure fails the photo: the push is not remembered, so the next run
// redoes the remote-hash check and recovers without retransferring.
func (e *Engine) recordEntry(ctx context.Context, mappingID string, photo *models.SourcePhoto, remotePath, hash string, size int64) error {
	entry := &models.LedgerEntry{
		MappingID:   mappingID,
		PhotoID:     photo.ID,
		Locator:     photo.Locator,
		RemotePath:  remotePath,
		ContentHash: hash,
		Size:        size,
	}
	if err := e.store.RecordEntry(ctx, entry); err != nil {
		metrics.RecordPhotoError("ledger")
		e.logger.Error().Err(err).Str("photo_id", photo.ID).Msg("Ledger write failed after successful placement")
		return fmt.Errorf("ledger write: %w", err)
	}
	return nil
}

// removeStale deletes remote files and ledger entries for photos that left
// the source set. Only mapping policies that delete reach here.
func (e *Engine) removeStale(
	ctx context.Context,
	logger zerolog.Logger,
	mapping *models.Mapping,
	dev models.DeviceHandle,
	current map[string]bool,
	result *models.RunResult,
) {
	// Re-read so entries the addition pass just wrote count as references.
	entries, err := e.store.LedgerEntries(ctx, mapping.ID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("removal pass: load ledger: %v", err))
		return
	}

	refs := make(map[string]int, len(entries))
	for _, entry := range entries {
		refs[entry.RemotePath]++
	}

	victims := make([]string, 0)
	for photoID := range entries {
		if !current[photoID] {
			victims = append(victims, photoID)
		}
	}
	sort.Strings(victims)

	for _, photoID := range victims {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("run interrupted: %v", err))
			return
		}
		entry := entries[photoID]

		if refs[entry.RemotePath] <= 1 {
			if err := e.transport.DeleteFile(ctx, dev, entry.RemotePath); err != nil {
				// Keep the entry so the next run retries the delete.
				metrics.RecordPhotoError("delete")
				logger.Warn().Err(err).Str("photo_id", photoID).Str("remote_path", entry.RemotePath).Msg("Remote delete failed")
				result.Errors = append(result.Errors, fmt.Sprintf("photo %s: delete %s: %v", photoID, entry.RemotePath, err))
				continue
			}
			if err := e.transport.NotifyIndexed(ctx, dev, entry.RemotePath); err != nil {
				logger.Debug().Err(err).Str("remote_path", entry.RemotePath).Msg("Media index notification failed")
			}
		} else {
			logger.Debug().Str("photo_id", photoID).Str("remote_path", entry.RemotePath).Msg("Remote file still referenced, dropping entry only")
		}

		if err := e.store.RemoveEntry(ctx, mapping.ID, photoID); err != nil {
			metrics.RecordPhotoError("ledger")
			result.Errors = append(result.Errors, fmt.Sprintf("photo %s: remove ledger entry: %v", photoID, err))
			continue
		}
		refs[entry.RemotePath]--
		result.Removed++
	}
}

// abort ends a run that could not start its passes. State is unchanged.
func (e *Engine) abort(logger zerolog.Logger, result *models.RunResult, mapping *models.Mapping, err error) models.RunResult {
	logger.Error().Err(err).Msg("Run aborted")
	result.Errors = append(result.Errors, err.Error())
	result.FinishedAt = time.Now().UTC()
	result.Success = false

	policy := models.Policy("none")
	if mapping != nil {
		policy = mapping.Policy
	}
	return e.finish(logger, result, policy)
}

// finish records the run in the history, updates metrics, and publishes the
// completion event. The caller's result is never affected by history
// failures.
func (e *Engine) finish(logger zerolog.Logger, result *models.RunResult, policy models.Policy) models.RunResult {
	// The run context may already be done; history still gets written.
	record := result.Record()
	if err := e.store.AppendRun(context.Background(), &record); err != nil {
		logger.Error().Err(err).Msg("Failed to append run record")
	}

	metrics.RecordRun(string(result.Trigger), string(policy), result.Success, result.Added, result.Removed, result.Skipped, result.Duration())
	if result.Success {
		metrics.RecordRunSuccess(result.MappingID)
	}
	if count, err := e.store.CountEntries(context.Background(), result.MappingID); err == nil {
		metrics.SetLedgerEntries(result.MappingID, count)
	}

	if e.hub != nil {
		e.hub.BroadcastJSON("sync_completed", result)
	}

	event := logger.Info()
	if !result.Success {
		event = logger.Warn()
	}
	event.
		Bool("success", result.Success).
		Int("added", result.Added).
		Int("removed", result.Removed).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration()).
		Msg("Run finished")

	return *result
}

// remotePathFor derives the content-addressed device path for an artifact.
// The extension follows the processed format, falling back to the photo's
// MIME type and name when the processor did not report one.
func remotePathFor(baseDir, hash, artifactFormat string, photo *models.SourcePhoto) string {
	ext := ""
	if artifactFormat != "" {
		ext = processor.FormatExt(artifactFormat)
	} else if ext = models.ExtForMime(photo.MimeType); ext == "" {
		ext = models.ExtForName(photo.Name)
	}
	if ext == "" {
		ext = ".jpg"
	}
	return models.RemotePathFor(baseDir, hash, ext)
}
