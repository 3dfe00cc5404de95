// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

/*
immich.go - Immich REST API Client

Photo source backed by an Immich server. Albums and assets come from the
Immich REST API; downloads stream the original asset bytes.

API Reference: https://immich.app/docs/api/
*/

package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/logging"
	"github.com/cmalpass/frame-connect/internal/metrics"
	"github.com/cmalpass/frame-connect/internal/models"
)

const (
	defaultImmichTimeout = 30 * time.Second
	defaultImmichRate    = 5.0

	// searchPageSize is how many assets one metadata-search page requests.
	searchPageSize = 1000
)

// ImmichSource reads photos from an Immich server. All API calls go through
// a circuit breaker and a client-side rate limiter so a degraded server is
// backed off rather than hammered by every scheduled run.
type ImmichSource struct {
	id         string
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[any]
	limiter    *rate.Limiter
	marks      SyncMarker
	logger     zerolog.Logger
}

var _ Source = (*ImmichSource)(nil)

// NewImmich creates an Immich source client.
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewImmich(cfg config.SourceConfig, marks SyncMarker) (*ImmichSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("source %s: url is required", cfg.ID)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("source %s: api_key is required", cfg.ID)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultImmichTimeout
	}

	var limiter *rate.Limiter
	switch rps := cfg.RequestsPerSecond; {
	case rps < 0:
		// Negative disables client-side limiting entirely.
		limiter = rate.NewLimiter(rate.Inf, 1)
	case rps == 0:
		limiter = rate.NewLimiter(rate.Limit(defaultImmichRate), 1)
	default:
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	logger := logging.With().Str("component", "source").Str("source_id", cfg.ID).Logger()
	cbName := "immich-" + cfg.ID

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		// Opens when failure rate >= 60% with minimum 10 requests.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logger.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening Immich circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)
			logger.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] Immich state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &ImmichSource{
		id:      cfg.ID,
		name:    cfg.Name,
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cb:      cb,
		limiter: limiter,
		marks:   marks,
		logger:  logger,
	}, nil
}

// ID returns the configured source identifier.
func (s *ImmichSource) ID() string { return s.id }

// Kind returns KindImmich.
func (s *ImmichSource) Kind() Kind { return KindImmich }

// immichAlbum is the album shape the Immich API reports.
type immichAlbum struct {
	ID         string        `json:"id"`
	AlbumName  string        `json:"albumName"`
	AssetCount int           `json:"assetCount"`
	Assets     []immichAsset `json:"assets"`
}

// immichAsset is the asset shape the Immich API reports.
type immichAsset struct {
	ID               string      `json:"id"`
	Type             string      `json:"type"`
	OriginalFileName string      `json:"originalFileName"`
	OriginalMimeType string      `json:"originalMimeType"`
	Checksum         string      `json:"checksum"`
	FileCreatedAt    *time.Time  `json:"fileCreatedAt"`
	ExifInfo         *immichExif `json:"exifInfo"`
}

type immichExif struct {
	ExifImageWidth   *int       `json:"exifImageWidth"`
	ExifImageHeight  *int       `json:"exifImageHeight"`
	DateTimeOriginal *time.Time `json:"dateTimeOriginal"`
	FileSizeInByte   *int64     `json:"fileSizeInByte"`
}

// searchPage is one page of a metadata search response.
type searchPage struct {
	Items    []immichAsset `json:"items"`
	NextPage *string       `json:"nextPage"`
}

// TestConnection pings the server.
func (s *ImmichSource) TestConnection(ctx context.Context) bool {
	_, err := s.execute(func() (any, error) {
		resp, err := s.doRequest(ctx, http.MethodGet, "/api/server/ping", nil)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("immich ping returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Msg("Immich connection test failed")
		return false
	}
	return true
}

// ListAlbums retrieves all albums from the server.
func (s *ImmichSource) ListAlbums(ctx context.Context) ([]models.Album, error) {
	result, err := s.execute(func() (any, error) {
		resp, err := s.doRequest(ctx, http.MethodGet, "/api/albums", nil)
		if err != nil {
			return nil, fmt.Errorf("immich albums request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, statusError("immich albums", resp)
		}

		var albums []immichAlbum
		if err := json.NewDecoder(resp.Body).Decode(&albums); err != nil {
			return nil, fmt.Errorf("failed to decode immich albums: %w", err)
		}
		return albums, nil
	})
	if err != nil {
		return nil, err
	}
	raw, ok := result.([]immichAlbum)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for ListAlbums")
	}

	albums := make([]models.Album, 0, len(raw))
	for _, a := range raw {
		albums = append(albums, models.Album{
			ID:         a.ID,
			Name:       a.AlbumName,
			PhotoCount: a.AssetCount,
		})
	}
	return albums, nil
}

// ListPhotos returns the image assets of one album, or of the whole library
// when albumID is empty, in capture order.
func (s *ImmichSource) ListPhotos(ctx context.Context, albumID string) ([]models.SourcePhoto, error) {
	start := time.Now()

	var assets []immichAsset
	var err error
	if albumID != "" {
		assets, err = s.albumAssets(ctx, albumID)
	} else {
		assets, err = s.allAssets(ctx)
	}
	if err != nil {
		return nil, err
	}

	photos := make([]models.SourcePhoto, 0, len(assets))
	for i := range assets {
		if photo, ok := assetToPhoto(&assets[i]); ok {
			photos = append(photos, photo)
		}
	}

	orderPhotos(photos)
	metrics.RecordSourceList(string(KindImmich), time.Since(start))
	return photos, nil
}

// albumAssets fetches one album with its assets.
func (s *ImmichSource) albumAssets(ctx context.Context, albumID string) ([]immichAsset, error) {
	result, err := s.execute(func() (any, error) {
		resp, err := s.doRequest(ctx, http.MethodGet, "/api/albums/"+albumID, nil)
		if err != nil {
			return nil, fmt.Errorf("immich album request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrAlbumNotFound, albumID)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, statusError("immich album", resp)
		}

		var album immichAlbum
		if err := json.NewDecoder(resp.Body).Decode(&album); err != nil {
			return nil, fmt.Errorf("failed to decode immich album: %w", err)
		}
		return album.Assets, nil
	})
	if err != nil {
		return nil, err
	}
	assets, ok := result.([]immichAsset)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for album assets")
	}
	return assets, nil
}

// allAssets pages through the metadata search endpoint for every image asset
// in the library.
func (s *ImmichSource) allAssets(ctx context.Context) ([]immichAsset, error) {
	var all []immichAsset

	for page := 1; ; page++ {
		body := map[string]any{
			"type": "IMAGE",
			"size": searchPageSize,
			"page": page,
		}

		result, err := s.execute(func() (any, error) {
			resp, err := s.doRequest(ctx, http.MethodPost, "/api/search/metadata", body)
			if err != nil {
				return nil, fmt.Errorf("immich search request failed: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return nil, statusError("immich search", resp)
			}

			var decoded struct {
				Assets searchPage `json:"assets"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
				return nil, fmt.Errorf("failed to decode immich search page: %w", err)
			}
			return decoded.Assets, nil
		})
		if err != nil {
			return nil, err
		}
		assets, ok := result.(searchPage)
		if !ok {
			return nil, errors.New("circuit breaker: unexpected result type for search page")
		}

		all = append(all, assets.Items...)
		if assets.NextPage == nil || len(assets.Items) == 0 {
			break
		}
	}
	return all, nil
}

// Download streams one asset's original bytes into destDir.
func (s *ImmichSource) Download(ctx context.Context, photo *models.SourcePhoto, destDir string) (string, error) {
	dest, err := s.download(ctx, photo, destDir)
	metrics.RecordSourceDownload(string(KindImmich), err)
	return dest, err
}

func (s *ImmichSource) download(ctx context.Context, photo *models.SourcePhoto, destDir string) (string, error) {
	name := filepath.Base(photo.Name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = photo.ID + models.ExtForMime(photo.MimeType)
	}
	dest := filepath.Join(destDir, name)

	_, err := s.execute(func() (any, error) {
		resp, err := s.doRequest(ctx, http.MethodGet, "/api/assets/"+photo.Locator+"/original", nil)
		if err != nil {
			return nil, fmt.Errorf("immich download request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return nil, statusError("immich download", resp)
		}

		out, err := os.Create(dest)
		if err != nil {
			return nil, fmt.Errorf("create download target: %w", err)
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			_ = out.Close()     //nolint:errcheck // copy already failed
			_ = os.Remove(dest) //nolint:errcheck // best-effort cleanup
			return nil, fmt.Errorf("stream asset: %w", err)
		}
		if err := out.Close(); err != nil {
			return nil, fmt.Errorf("close download target: %w", err)
		}
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

// MarkSynced records that a run over this source completed.
func (s *ImmichSource) MarkSynced(ctx context.Context) error {
	return s.marks.MarkSourceSynced(ctx, s.id, time.Now().UTC())
}

// execute wraps one API call with the rate limiter and circuit breaker.
func (s *ImmichSource) execute(fn func() (any, error)) (any, error) {
	result, err := s.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.logger.Warn().Err(err).Msg("[CIRCUIT BREAKER] Immich request rejected")
		}
		return nil, err
	}
	return result, nil
}

// doRequest performs one HTTP request against the Immich API. The rate
// limiter gates every request, including downloads.
func (s *ImmichSource) doRequest(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.httpClient.Do(req)
}

// assetToPhoto maps an Immich asset to a SourcePhoto. Non-image assets are
// dropped.
func assetToPhoto(a *immichAsset) (models.SourcePhoto, bool) {
	if a.Type != "" && a.Type != "IMAGE" {
		return models.SourcePhoto{}, false
	}

	photo := models.SourcePhoto{
		ID:       a.ID,
		Name:     a.OriginalFileName,
		Locator:  a.ID,
		MimeType: a.OriginalMimeType,
		// Immich reports a base64 SHA-1; carried as reported (see the
		// ContentHash field doc).
		ContentHash: a.Checksum,
	}
	if a.ExifInfo != nil {
		photo.Width = a.ExifInfo.ExifImageWidth
		photo.Height = a.ExifInfo.ExifImageHeight
		if a.ExifInfo.FileSizeInByte != nil {
			photo.Size = *a.ExifInfo.FileSizeInByte
		}
		if a.ExifInfo.DateTimeOriginal != nil {
			photo.TakenAt = a.ExifInfo.DateTimeOriginal
		}
	}
	if photo.TakenAt == nil && a.FileCreatedAt != nil {
		photo.TakenAt = a.FileCreatedAt
	}
	return photo, true
}

// statusError reads a non-OK response into an error.
func statusError(operation string, resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body)", operation, resp.StatusCode)
	}
	return fmt.Errorf("%s returned status %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(body)))
}

// breakerStateString renders a gobreaker state for logs and metric labels.
func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// breakerStateFloat renders a gobreaker state for the state gauge.
func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
