package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/kardainfra/karda/inventory"
	"github.com/kardainfra/karda/models"
)

// ListingStore is the part of inventory.Repository the store writer needs.
type ListingStore interface {
	Upsert(ctx context.Context, l *models.Listing) (*models.Listing, error)
	AttachImage(ctx context.Context, assetID, keyPrefix string, sources ...inventory.ImageSource) (*models.ImageRef, error)
}

// StoreWriter upserts listings into the inventory and, when enabled,
// captures each listing's source image.
type StoreWriter struct {
	store         ListingStore
	captureImages bool

	// ImageKey prefixes the _key of captured images.
	ImageKey string
	// ImageFilename names the uploaded image; defaults to the source basename.
	ImageFilename string

	mu      sync.Mutex
	written int
	stored  []*models.Listing
}

// NewStoreWriter writes to store.
func NewStoreWriter(store ListingStore, captureImages bool) *StoreWriter {
	return &StoreWriter{store: store, captureImages: captureImages, ImageKey: "main"}
}

// Write upserts every listing. A failed image capture is logged and does
// not fail the batch.
func (sw *StoreWriter) Write(ctx context.Context, listings []*models.Listing) error {
	for _, l := range listings {
		stored, err := sw.store.Upsert(ctx, l)
		if err != nil {
			return fmt.Errorf("store %s: %w", l.ID, err)
		}
		slog.Info("listing stored",
			slog.String("id", stored.ID),
			slog.String("doc_id", stored.DocID),
			slog.String("price", stored.Price.Text),
		)

		if sw.captureImages && l.SourceImageURL != "" {
			src := inventory.ImageSource{URL: l.SourceImageURL, Filename: sw.filename(l)}
			if _, err := sw.store.AttachImage(ctx, l.ID, sw.ImageKey, src); err != nil {
				slog.Warn("image capture skipped", slog.String("id", l.ID), slog.Any("error", err))
			}
		}

		sw.mu.Lock()
		sw.written++
		sw.stored = append(sw.stored, stored)
		sw.mu.Unlock()
	}
	return nil
}

func (sw *StoreWriter) filename(l *models.Listing) string {
	if sw.ImageFilename != "" {
		return sw.ImageFilename
	}
	base := path.Base(strings.SplitN(l.SourceImageURL, "?", 2)[0])
	if base == "." || base == "/" {
		return strings.ToLower(l.ID) + ".jpg"
	}
	return base
}

// Stored returns the listings as the store saved them.
func (sw *StoreWriter) Stored() []*models.Listing {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return append([]*models.Listing(nil), sw.stored...)
}

// Close is a no-op; the store outlives the writer.
func (sw *StoreWriter) Close() error { return nil }

// Validate fails when nothing reached the store.
func (sw *StoreWriter) Validate() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.written == 0 {
		return fmt.Errorf("no listings stored")
	}
	return nil
}
