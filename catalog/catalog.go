// Package catalog turns listings into the view models shared by every
// inventory surface: the site's grid, table and terminal variants and the
// `karda inventory` command.
package catalog

import (
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/kardainfra/karda/models"
)

// fuzzyThreshold is the Jaro-Winkler similarity a word must reach when no
// listing contains the query outright.
const fuzzyThreshold = 0.88

// Filter keeps listings whose title, id or location contains query,
// ignoring case. When nothing matches that way it falls back to listings
// with a word close to the query, so "maddx" still finds the Maddox unit.
// An empty query keeps everything.
func Filter(listings []*models.Listing, query string) []*models.Listing {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return listings
	}

	var out []*models.Listing
	for _, l := range listings {
		if strings.Contains(searchText(l), query) {
			out = append(out, l)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, l := range listings {
		if fuzzyMatch(searchText(l), query) {
			out = append(out, l)
		}
	}
	return out
}

// ByStatus keeps listings with the given status. An empty status keeps all.
func ByStatus(listings []*models.Listing, status models.Status) []*models.Listing {
	if status == "" {
		return listings
	}
	var out []*models.Listing
	for _, l := range listings {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out
}

func searchText(l *models.Listing) string {
	return strings.ToLower(strings.Join([]string{l.DisplayName(), l.ID, l.Location}, " "))
}

func fuzzyMatch(text, query string) bool {
	for _, word := range strings.Fields(text) {
		if matchr.JaroWinkler(word, query, false) >= fuzzyThreshold {
			return true
		}
	}
	return false
}
