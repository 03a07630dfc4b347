// Package jobs runs the hard-coded scrape, seed, patch and image jobs that
// populate the inventory.
package jobs

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/kardainfra/karda/inventory"
	"github.com/kardainfra/karda/models"
	"github.com/titanous/json5"
)

// Kind groups jobs by what they do to the inventory.
type Kind string

const (
	KindScrape Kind = "scrape"
	KindSeed   Kind = "seed"
	KindPatch  Kind = "patch"
	KindImage  Kind = "image"
)

// Engine selects how a scrape job fetches pages.
type Engine string

const (
	EngineHTTP    Engine = "http"
	EngineBrowser Engine = "browser"
)

// Artifact is a remote file uploaded alongside a listing.
type Artifact struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Key      string `json:"key,omitempty"`
}

// SeedItem is one listing a seed job writes, with optional media.
type SeedItem struct {
	Listing  models.Listing `json:"listing"`
	Image    *Artifact      `json:"image,omitempty"`
	Document *Artifact      `json:"document,omitempty"`
}

// Job is one entry of the embedded definitions.
type Job struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Summary string `json:"summary"`

	// scrape
	Engine  Engine          `json:"engine,omitempty"`
	Targets []models.Target `json:"targets,omitempty"`
	Image   *Artifact       `json:"image,omitempty"`

	// seed
	Purge  bool       `json:"purge,omitempty"`
	Upsert bool       `json:"upsert,omitempty"`
	Derive bool       `json:"derive,omitempty"`
	Items  []SeedItem `json:"items,omitempty"`

	// patch and image
	AssetID   string                  `json:"asset_id,omitempty"`
	Set       map[string]any          `json:"set,omitempty"`
	KeyPrefix string                  `json:"key_prefix,omitempty"`
	Sources   []inventory.ImageSource `json:"sources,omitempty"`
}

//go:embed definitions.json5
var definitionsFile []byte

type definitions struct {
	Jobs []Job `json:"jobs"`
}

// Definitions parses the embedded job list.
func Definitions() ([]Job, error) {
	return parseDefinitions(definitionsFile)
}

func parseDefinitions(data []byte) ([]Job, error) {
	var defs definitions
	if err := json5.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse job definitions: %w", err)
	}

	seen := make(map[string]bool, len(defs.Jobs))
	var errs []error
	for _, job := range defs.Jobs {
		if seen[job.Name] {
			errs = append(errs, fmt.Errorf("job %q defined twice", job.Name))
		}
		seen[job.Name] = true
		if err := job.validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return defs.Jobs, nil
}

func (j Job) validate() error {
	if j.Name == "" {
		return errors.New("job without a name")
	}
	switch j.Kind {
	case KindScrape:
		if len(j.Targets) == 0 {
			return fmt.Errorf("job %s: no targets", j.Name)
		}
		if j.Engine != EngineHTTP && j.Engine != EngineBrowser {
			return fmt.Errorf("job %s: unknown engine %q", j.Name, j.Engine)
		}
	case KindSeed:
		if len(j.Items) == 0 {
			return fmt.Errorf("job %s: no items", j.Name)
		}
	case KindPatch:
		if j.AssetID == "" || len(j.Set) == 0 {
			return fmt.Errorf("job %s: patch needs asset_id and set", j.Name)
		}
	case KindImage:
		if j.AssetID == "" || len(j.Sources) == 0 {
			return fmt.Errorf("job %s: image job needs asset_id and sources", j.Name)
		}
	default:
		return fmt.Errorf("job %s: unknown kind %q", j.Name, j.Kind)
	}
	return nil
}
