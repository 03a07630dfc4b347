package content

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// AssetKind is the upload endpoint family.
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetFile  AssetKind = "file"
)

// Asset is an uploaded image or file.
type Asset struct {
	ID               string    `json:"_id"`
	Kind             AssetKind `json:"-"`
	URL              string    `json:"url"`
	OriginalFilename string    `json:"originalFilename,omitempty"`
	MimeType         string    `json:"mimeType,omitempty"`
	Size             int64     `json:"size,omitempty"`
	SHA1             string    `json:"sha1hash,omitempty"`
}

// Reference returns the object stored in a document to point at the asset.
func (a *Asset) Reference() map[string]any {
	return map[string]any{"_type": "reference", "_ref": a.ID}
}

const imageCDN = "https://cdn.sanity.io"

// ImageRef is a parsed image asset id, "image-<hash>-<w>x<h>-<ext>".
type ImageRef struct {
	Hash   string
	Width  int
	Height int
	Format string
}

// ParseImageRef splits an image asset id into its parts.
func ParseImageRef(ref string) (ImageRef, error) {
	parts := strings.Split(ref, "-")
	if len(parts) != 4 || parts[0] != "image" {
		return ImageRef{}, fmt.Errorf("content: malformed image ref %q", ref)
	}
	w, h, ok := strings.Cut(parts[2], "x")
	if !ok {
		return ImageRef{}, fmt.Errorf("content: malformed image dimensions in %q", ref)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return ImageRef{}, fmt.Errorf("content: image width in %q: %w", ref, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return ImageRef{}, fmt.Errorf("content: image height in %q: %w", ref, err)
	}
	return ImageRef{Hash: parts[1], Width: width, Height: height, Format: parts[3]}, nil
}

// String renders the ref back into its asset id.
func (r ImageRef) String() string {
	return fmt.Sprintf("image-%s-%dx%d-%s", r.Hash, r.Width, r.Height, r.Format)
}

// ImageOptions are the CDN transformations applied to an image URL.
type ImageOptions struct {
	Width   int
	Height  int
	Format  string // jpg, png, webp
	Fit     string // clip, crop, fill, max, min, scale
	Quality int
}

// ImageURL builds the CDN URL for an image asset id.
func ImageURL(projectID, dataset, ref string, opts ImageOptions) (string, error) {
	img, err := ParseImageRef(ref)
	if err != nil {
		return "", err
	}
	u := fmt.Sprintf("%s/images/%s/%s/%s-%dx%d.%s", imageCDN, projectID, dataset, img.Hash, img.Width, img.Height, img.Format)

	q := url.Values{}
	if opts.Width > 0 {
		q.Set("w", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		q.Set("h", strconv.Itoa(opts.Height))
	}
	if opts.Format != "" {
		q.Set("fm", opts.Format)
	}
	if opts.Fit != "" {
		q.Set("fit", opts.Fit)
	}
	if opts.Quality > 0 {
		q.Set("q", strconv.Itoa(opts.Quality))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u, nil
}

// FileURL builds the CDN URL for a file asset id, "file-<hash>-<ext>".
func FileURL(projectID, dataset, ref string) (string, error) {
	parts := strings.Split(ref, "-")
	if len(parts) != 3 || parts[0] != "file" {
		return "", fmt.Errorf("content: malformed file ref %q", ref)
	}
	return fmt.Sprintf("%s/files/%s/%s/%s.%s", imageCDN, projectID, dataset, parts[1], parts[2]), nil
}
