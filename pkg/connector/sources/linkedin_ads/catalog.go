package linkedinads

import (
	"sort"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/errors"
)

// Catalog is the stream and field selection for a run.
type Catalog struct {
	selected map[string]config.StreamSelection
}

// NewCatalog builds a catalog from the configured selection. Unknown
// stream names are rejected.
func NewCatalog(streams map[string]config.StreamSelection) (*Catalog, error) {
	var unknown []string
	selected := make(map[string]config.StreamSelection, len(streams))
	for name, sel := range streams {
		if _, ok := Lookup(name); !ok {
			unknown = append(unknown, name)
			continue
		}
		if sel.Selected {
			selected[name] = sel
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.New(errors.ErrorTypeConfig, "unknown streams in selection").
			WithDetail("streams", unknown)
	}
	return &Catalog{selected: selected}, nil
}

// IsSelected reports whether records of the stream are emitted.
func (c *Catalog) IsSelected(name string) bool {
	_, ok := c.selected[name]
	return ok
}

// Needed reports whether the stream must be synced: it is selected or one
// of its descendants is.
func (c *Catalog) Needed(d *Descriptor) bool {
	if c.IsSelected(d.Name) {
		return true
	}
	for _, child := range d.Children {
		if cd, ok := Lookup(child); ok && c.Needed(cd) {
			return true
		}
	}
	return false
}

// Fields returns the selected fields of an analytics stream, falling back
// to the stream's default metrics.
func (c *Catalog) Fields(d *Descriptor) []string {
	if sel, ok := c.selected[d.Name]; ok && len(sel.Fields) > 0 {
		return sel.Fields
	}
	return d.DefaultFields
}

// Selected returns the selected stream names in sync order.
func (c *Catalog) Selected() []string {
	var out []string
	for _, name := range StreamNames() {
		if c.IsSelected(name) {
			out = append(out, name)
		}
	}
	return out
}
