// Package playlist provides the Manifest domain entity.
package playlist

import (
	"github.com/samber/lo"
)

// Entry is one declared track: a source type plus its type specific settings.
type Entry struct {
	Type        string         // Source type, e.g. "file" or "tone"
	DisplayName string         // Optional label
	Settings    map[string]any // Decoded by the source factory
}

// Manifest is an ordered list of entries to enqueue.
type Manifest struct {
	Name    string
	Entries []Entry
}

// DisplayNames returns the labels of all entries in order.
func (m *Manifest) DisplayNames() []string {
	return lo.Map(m.Entries, func(e Entry, _ int) string {
		return e.DisplayName
	})
}

// Types returns the distinct source types in order of first use.
func (m *Manifest) Types() []string {
	return lo.Uniq(lo.Map(m.Entries, func(e Entry, _ int) string {
		return e.Type
	}))
}

// OfType returns the entries with the given source type.
func (m *Manifest) OfType(typ string) []Entry {
	return lo.Filter(m.Entries, func(e Entry, _ int) bool {
		return e.Type == typ
	})
}
