// Package inventory reads and writes asset listings in the content store.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kardainfra/karda/content"
	"github.com/kardainfra/karda/models"
	"github.com/kardainfra/karda/parser"
)

// ErrAssetNotFound is returned when no inventory document carries an asset id.
var ErrAssetNotFound = errors.New("inventory: asset not found")

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Filter narrows List.
type Filter struct {
	Status models.Status
	Limit  int
}

// ImageSource is one candidate download for AttachImage.
type ImageSource struct {
	URL      string
	Filename string
}

// Repository maps listings onto inventory documents.
type Repository struct {
	store     content.Store
	projectID string
	dataset   string
	http      *resty.Client
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithAssetLocation sets the project and dataset used to build image URLs.
func WithAssetLocation(projectID, dataset string) Option {
	return func(r *Repository) {
		r.projectID = projectID
		r.dataset = dataset
	}
}

// WithDownloadTransport replaces the transport used to fetch remote images
// and documents.
func WithDownloadTransport(rt http.RoundTripper) Option {
	return func(r *Repository) { r.http.SetTransport(rt) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// NewRepository returns a repository backed by store.
func NewRepository(store content.Store, opts ...Option) *Repository {
	r := &Repository{
		store: store,
		http: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", defaultUserAgent),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns the inventory, ordered by asset id.
func (r *Repository) List(ctx context.Context, f Filter) ([]*models.Listing, error) {
	q := content.ByType(content.InventoryType)
	q.Order = "id asc"
	q.Limit = f.Limit
	if f.Status != "" {
		q = q.Eq("status", string(f.Status))
	}

	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	listings := make([]*models.Listing, 0, len(docs))
	for _, doc := range docs {
		listings = append(listings, r.fromDocument(doc))
	}
	return listings, nil
}

// Get returns the listing with the given asset id.
func (r *Repository) Get(ctx context.Context, assetID string) (*models.Listing, error) {
	docs, err := r.store.Query(ctx, byAssetID(assetID))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", assetID, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	}
	return r.fromDocument(docs[0]), nil
}

// FindDocID resolves an asset id to its document id.
func (r *Repository) FindDocID(ctx context.Context, assetID string) (string, error) {
	q := byAssetID(assetID)
	q.Fields = []string{content.KeyID}
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return "", fmt.Errorf("find %s: %w", assetID, err)
	}
	if len(docs) == 0 || docs[0].ID() == "" {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	}
	return docs[0].ID(), nil
}

// Create stores a new listing. When DocID is empty the store assigns one.
func (r *Repository) Create(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	if err := Validate(l); err != nil {
		return nil, err
	}
	res, err := content.NewTransaction(r.store).Create(ToDocument(l)).Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", l.ID, err)
	}
	return r.resultListing(ctx, res)
}

// Upsert creates or replaces the listing's document, inventory-<ID> unless
// DocID says otherwise.
func (r *Repository) Upsert(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	if err := Validate(l); err != nil {
		return nil, err
	}
	doc := ToDocument(l)
	if l.DocID == "" {
		doc[content.KeyID] = parser.DocumentID(l.ID)
	}
	res, err := content.NewTransaction(r.store).CreateOrReplace(doc).Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", l.ID, err)
	}
	return r.resultListing(ctx, res)
}

// Patch sets raw document fields on the listing with the given asset id.
func (r *Repository) Patch(ctx context.Context, assetID string, fields map[string]any) (*models.Listing, error) {
	docID, err := r.FindDocID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if status, ok := fields["status"].(string); ok && !content.InventorySchema.Field("status").Allows(status) {
		return nil, fmt.Errorf("patch %s: %w: %q", assetID, parser.ErrInvalidStatus, status)
	}
	doc, err := content.NewPatch(r.store, docID).Set(canonicalFields(fields)).Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", assetID, err)
	}
	return r.fromDocument(doc), nil
}

// patchAliases maps drifted field names to the name ToDocument writes, so a
// patch on either name is what FromDocument reads back.
var patchAliases = map[string]string{
	"description":      "desc",
	"title":            "type",
	"leadTimeSavings":  "lead_time",
	"leadTime":         "lead_time",
	"mfg_year":         "mfgYear",
	"source_url":       "sourceUrl",
	"primaryVoltage":   "primary_voltage",
	"secondaryVoltage": "secondary_voltage",
}

// canonicalFields copies fields and mirrors every alias onto its canonical
// name unless the patch sets that name itself.
func canonicalFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for alias, canonical := range patchAliases {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		if _, set := fields[canonical]; !set {
			out[canonical] = v
		}
	}
	return out
}

// Reset deletes every inventory document in one transaction and returns how
// many were removed.
func (r *Repository) Reset(ctx context.Context) (int, error) {
	q := content.ByType(content.InventoryType)
	q.Fields = []string{content.KeyID}
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("reset: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	tx := content.NewTransaction(r.store)
	for _, doc := range docs {
		tx.Delete(doc.ID())
	}
	if _, err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("reset: %w", err)
	}
	r.logger.Info("inventory reset", slog.Int("deleted", len(docs)))
	return len(docs), nil
}

// AttachImage downloads the first source that works, uploads it and makes
// it the listing's only image.
func (r *Repository) AttachImage(ctx context.Context, assetID, keyPrefix string, sources ...ImageSource) (*models.ImageRef, error) {
	if len(sources) == 0 {
		return nil, errors.New("attach image: no sources")
	}
	docID, err := r.FindDocID(ctx, assetID)
	if err != nil {
		return nil, err
	}

	var errs []error
	var asset *content.Asset
	for _, src := range sources {
		asset, err = r.CaptureImage(ctx, src.URL, src.Filename)
		if err == nil {
			break
		}
		r.logger.Warn("image source failed",
			slog.String("asset", assetID),
			slog.String("url", src.URL),
			slog.Any("error", err),
		)
		errs = append(errs, err)
	}
	if asset == nil {
		return nil, fmt.Errorf("attach image to %s: %w", assetID, errors.Join(errs...))
	}

	if keyPrefix == "" {
		keyPrefix = "main_visual"
	}
	key := visualKey(keyPrefix, r.now())
	_, err = content.NewPatch(r.store, docID).
		Set(map[string]any{"images": []any{ImageValue(asset.ID, key)}}).
		Commit(ctx)
	if err != nil {
		return nil, fmt.Errorf("attach image to %s: %w", assetID, err)
	}
	return &models.ImageRef{Key: key, AssetRef: asset.ID, URL: asset.URL}, nil
}

// CaptureImage downloads an image and uploads it as an image asset.
func (r *Repository) CaptureImage(ctx context.Context, url, filename string) (*content.Asset, error) {
	return r.capture(ctx, content.AssetImage, url, filename)
}

// CaptureDocument downloads a file such as a brochure and uploads it.
func (r *Repository) CaptureDocument(ctx context.Context, url, filename string) (*content.Asset, error) {
	return r.capture(ctx, content.AssetFile, url, filename)
}

func (r *Repository) capture(ctx context.Context, kind content.AssetKind, url, filename string) (*content.Asset, error) {
	body, err := r.download(ctx, url)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		filename = path.Base(strings.SplitN(url, "?", 2)[0])
	}
	asset, err := r.store.Upload(ctx, kind, filename, body)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	r.logger.Info("asset uploaded",
		slog.String("kind", string(kind)),
		slog.String("id", asset.ID),
		slog.Int("bytes", len(body)),
	)
	return asset, nil
}

func (r *Repository) download(ctx context.Context, url string) ([]byte, error) {
	res, err := r.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("download %s: status %d", url, res.StatusCode())
	}
	if len(res.Body()) == 0 {
		return nil, fmt.Errorf("download %s: empty body", url)
	}
	return res.Body(), nil
}

func (r *Repository) resultListing(ctx context.Context, res *content.MutationResult) (*models.Listing, error) {
	if len(res.Results) == 0 {
		return nil, errors.New("store returned no result")
	}
	item := res.Results[0]
	doc := item.Document
	if doc == nil {
		var err error
		if doc, err = r.store.Get(ctx, item.ID); err != nil {
			return nil, err
		}
	}
	return r.fromDocument(doc), nil
}

func (r *Repository) fromDocument(doc content.Document) *models.Listing {
	l := FromDocument(doc)
	if r.projectID == "" {
		return l
	}
	for i := range l.Images {
		if l.Images[i].URL != "" {
			continue
		}
		if u, err := content.ImageURL(r.projectID, r.dataset, l.Images[i].AssetRef, content.ImageOptions{}); err == nil {
			l.Images[i].URL = u
		}
	}
	for i := range l.Documents {
		if l.Documents[i].URL != "" {
			continue
		}
		if u, err := content.FileURL(r.projectID, r.dataset, l.Documents[i].AssetRef); err == nil {
			l.Documents[i].URL = u
		}
	}
	return l
}

func byAssetID(assetID string) content.Query {
	q := content.ByType(content.InventoryType).Eq("id", assetID)
	q.Limit = 1
	return q
}

// Validate checks a listing before it is written.
func Validate(l *models.Listing) error {
	if l == nil {
		return errors.New("inventory: nil listing")
	}
	if err := parser.ValidateListing(l); err != nil {
		return err
	}
	if !content.InventorySchema.Field("status").Allows(string(l.Status)) {
		return fmt.Errorf("%w: %q", parser.ErrInvalidStatus, l.Status)
	}
	return nil
}
