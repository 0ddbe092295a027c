// Package stac models STAC items, item collections, catalogs and collections
// as they travel through the download pipeline. Fields this tool does not
// understand are carried verbatim so the persisted metadata stays equivalent
// to the search result that produced it (e.g. extra asset fields such as
// "semantique:key").
package stac

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/glorpus-work/stacgrab/pkg/errors"
)

// Asset is a single downloadable file referenced by an item.
type Asset struct {
	Href  string
	Title string
	Type  string
	Roles []string

	// Extra holds asset fields this tool does not model, preserved verbatim.
	Extra map[string]json.RawMessage
}

// Item is a discrete geospatial observation record with geometry, timestamp
// and asset references. An item belongs to exactly one source collection for
// its whole lifecycle.
type Item struct {
	ID          string
	Collection  string
	StacVersion string
	Geometry    *geojson.Geometry
	Bbox        []float64
	Links       []Link

	// Properties carries the full properties object untouched; Datetime is
	// parsed out of it for extent computation and never written back.
	Properties map[string]json.RawMessage
	Datetime   time.Time

	Assets map[string]*Asset

	// assetOrder remembers the key order of the assets object as received.
	assetOrder []string

	// Extra holds top-level item fields this tool does not model.
	Extra map[string]json.RawMessage
}

// AssetKeys returns the asset keys in their original order. Keys added after
// decoding are appended in sorted order.
func (item *Item) AssetKeys() []string {
	keys := make([]string, 0, len(item.Assets))
	seen := make(map[string]bool, len(item.Assets))
	for _, k := range item.assetOrder {
		if _, ok := item.Assets[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var added []string
	for k := range item.Assets {
		if !seen[k] {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	return append(keys, added...)
}

// Clone returns a deep copy of the item. Signing mutates asset hrefs on the
// copy so concurrent attempts never share state.
func (item *Item) Clone() (*Item, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, errors.Wrap(err, "failed to clone item")
	}
	out := &Item{}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, errors.Wrap(err, "failed to clone item")
	}
	return out, nil
}

// itemKnownKeys are the top-level keys the Item struct models itself.
var itemKnownKeys = map[string]bool{
	"type": true, "stac_version": true, "id": true, "collection": true,
	"geometry": true, "bbox": true, "properties": true, "assets": true,
	"links": true,
}

// UnmarshalJSON decodes a GeoJSON Feature into an Item, keeping unknown
// top-level and asset fields verbatim and recording asset key order.
func (item *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(errors.ErrStructural, err.Error())
	}
	if err := unmarshalKey(raw, "id", &item.ID); err != nil {
		return err
	}
	if err := unmarshalKey(raw, "collection", &item.Collection); err != nil {
		return err
	}
	if err := unmarshalKey(raw, "stac_version", &item.StacVersion); err != nil {
		return err
	}
	if err := unmarshalKey(raw, "geometry", &item.Geometry); err != nil {
		return err
	}
	if err := unmarshalKey(raw, "bbox", &item.Bbox); err != nil {
		return err
	}
	if err := unmarshalKey(raw, "links", &item.Links); err != nil {
		return err
	}
	if err := unmarshalKey(raw, "properties", &item.Properties); err != nil {
		return err
	}
	if err := unmarshalKey(raw, "assets", &item.Assets); err != nil {
		return err
	}
	if assets, ok := raw["assets"]; ok {
		order, err := objectKeyOrder(assets)
		if err != nil {
			return err
		}
		item.assetOrder = order
	}
	item.Extra = nil
	for k, v := range raw {
		if itemKnownKeys[k] {
			continue
		}
		if item.Extra == nil {
			item.Extra = map[string]json.RawMessage{}
		}
		item.Extra[k] = v
	}
	if dt, ok := item.Properties["datetime"]; ok {
		var s string
		if err := json.Unmarshal(dt, &s); err == nil && s != "" {
			if parsed, err := time.Parse(time.RFC3339, s); err == nil {
				item.Datetime = parsed.UTC()
			}
		}
	}
	return nil
}

// MarshalJSON encodes the item as a GeoJSON Feature. Asset keys keep their
// received order; unknown fields are written back untouched.
func (item *Item) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	w.field("type", "Feature")
	if item.StacVersion != "" {
		w.field("stac_version", item.StacVersion)
	}
	w.field("id", item.ID)
	if item.Collection != "" {
		w.field("collection", item.Collection)
	}
	w.field("geometry", item.Geometry)
	if item.Bbox != nil {
		w.field("bbox", item.Bbox)
	}
	if item.Properties != nil {
		w.field("properties", item.Properties)
	}
	if item.Links != nil {
		w.field("links", item.Links)
	}
	if item.Assets != nil {
		w.rawField("assets", marshalAssets(item.Assets, item.AssetKeys()))
	}
	w.extras(item.Extra)
	return w.finish()
}

// assetKnownKeys are the asset fields the Asset struct models itself.
var assetKnownKeys = map[string]bool{
	"href": true, "title": true, "type": true, "roles": true,
}

// UnmarshalJSON decodes an asset, keeping unknown fields verbatim.
func (a *Asset) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(errors.ErrStructural, err.Error())
	}
	if err := unmarshalKey(raw, "href", &a.Href); err != nil {
		return err
	}
	if err := unmarshalKey(raw, "title", &a.Title); err != nil {
		return err
	}
	if err := unmarshalKey(raw, "type", &a.Type); err != nil {
		return err
	}
	if err := unmarshalKey(raw, "roles", &a.Roles); err != nil {
		return err
	}
	a.Extra = nil
	for k, v := range raw {
		if assetKnownKeys[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = map[string]json.RawMessage{}
		}
		a.Extra[k] = v
	}
	return nil
}

// MarshalJSON encodes the asset, writing unknown fields back untouched.
func (a *Asset) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	w.field("href", a.Href)
	if a.Title != "" {
		w.field("title", a.Title)
	}
	if a.Type != "" {
		w.field("type", a.Type)
	}
	if a.Roles != nil {
		w.field("roles", a.Roles)
	}
	w.extras(a.Extra)
	return w.finish()
}

func marshalAssets(assets map[string]*Asset, order []string) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(assets[key])
		if err != nil {
			v = []byte("null")
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func unmarshalKey(raw map[string]json.RawMessage, key string, dst interface{}) error {
	v, ok := raw[key]
	if !ok || bytes.Equal(v, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return errors.Wrapf(errors.ErrStructural, "field %s: %v", key, err)
	}
	return nil
}

// objectKeyOrder returns the keys of a JSON object in document order.
func objectKeyOrder(data json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Wrap(errors.ErrStructural, err.Error())
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.Wrap(errors.ErrStructural, "assets is not an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Wrap(errors.ErrStructural, err.Error())
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Wrap(errors.ErrStructural, "unexpected assets token")
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, errors.Wrap(errors.ErrStructural, err.Error())
		}
	}
	return keys, nil
}

// objectWriter emits a JSON object with deterministic field order.
type objectWriter struct {
	buf   bytes.Buffer
	count int
	err   error
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		if w.err == nil {
			w.err = err
		}
		return
	}
	w.rawField(key, data)
}

func (w *objectWriter) rawField(key string, value json.RawMessage) {
	if w.count > 0 {
		w.buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(value)
	w.count++
}

func (w *objectWriter) extras(extra map[string]json.RawMessage) {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.rawField(k, extra[k])
	}
}

func (w *objectWriter) finish() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.buf.WriteByte('}')
	return w.buf.Bytes(), nil
}
