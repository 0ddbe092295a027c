package stac

import (
	"encoding/json"
	"os"

	"github.com/glorpus-work/stacgrab/pkg/fsutil"
)

// DefaultStacVersion is written into catalogs and collections this tool creates.
const DefaultStacVersion = "1.0.0"

// Well-known link relation types.
const (
	RelRoot   = "root"
	RelParent = "parent"
	RelChild  = "child"
	RelItem   = "item"
	RelSelf   = "self"
)

// Link connects catalog objects. Hrefs in persisted artifacts are always
// relative to the catalog root.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Catalog is the root metadata artifact of a finished download.
type Catalog struct {
	Type        string `json:"type"`
	StacVersion string `json:"stac_version"`
	ID          string `json:"id"`
	Description string `json:"description"`
	Links       []Link `json:"links"`
}

// NewCatalog creates an empty root catalog.
func NewCatalog(id, description string) *Catalog {
	return &Catalog{
		Type:        "Catalog",
		StacVersion: DefaultStacVersion,
		ID:          id,
		Description: description,
	}
}

// Collection groups the items downloaded for one source collection together
// with their derived spatio-temporal extent.
type Collection struct {
	Type        string  `json:"type"`
	StacVersion string  `json:"stac_version"`
	ID          string  `json:"id"`
	Description string  `json:"description"`
	License     string  `json:"license"`
	Extent      *Extent `json:"extent"`
	Links       []Link  `json:"links"`
}

// NewCollection creates a collection with the given id and extent.
func NewCollection(id, description string, extent *Extent) *Collection {
	return &Collection{
		Type:        "Collection",
		StacVersion: DefaultStacVersion,
		ID:          id,
		Description: description,
		License:     "proprietary",
		Extent:      extent,
	}
}

// Extent summarizes a collection's items: the bounding box of the union of
// member geometries and the [min, max] interval of member timestamps.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// SpatialExtent holds one or more bounding boxes ([west, south, east, north]).
type SpatialExtent struct {
	Bbox [][]float64 `json:"bbox"`
}

// TemporalExtent holds one or more [start, end] intervals as RFC 3339 strings.
type TemporalExtent struct {
	Interval [][]*string `json:"interval"`
}

// AddLink appends a link to the catalog.
func (c *Catalog) AddLink(rel, href, mediaType, title string) {
	c.Links = append(c.Links, Link{Rel: rel, Href: href, Type: mediaType, Title: title})
}

// AddLink appends a link to the collection.
func (c *Collection) AddLink(rel, href, mediaType, title string) {
	c.Links = append(c.Links, Link{Rel: rel, Href: href, Type: mediaType, Title: title})
}

// MediaTypeJSON is the media type used for catalog, collection and item links.
const MediaTypeJSON = "application/json"

// Indent-marshals v with a trailing newline, the layout all persisted
// metadata artifacts share.
func marshalArtifact(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteArtifact persists any catalog object as an indented JSON artifact.
func WriteArtifact(path string, v interface{}) error {
	data, err := marshalArtifact(v)
	if err != nil {
		return err
	}
	if err := fsutil.EnsureFileDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, fsutil.FileModeDefault)
}
