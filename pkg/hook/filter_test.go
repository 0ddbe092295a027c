package hook

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

func filterItem(t *testing.T, id, collection, datetime string) *stac.Item {
	t.Helper()
	item := &stac.Item{}
	doc := fmt.Sprintf(`{
		"type": "Feature",
		"stac_version": "1.0.0",
		"id": %q,
		"collection": %q,
		"geometry": null,
		"properties": {"datetime": %q}
	}`, id, collection, datetime)
	require.NoError(t, json.Unmarshal([]byte(doc), item))
	return item
}

func TestFilterApply(t *testing.T) {
	coll := &stac.ItemCollection{Items: []*stac.Item{
		filterItem(t, "a", "sentinel-2-l2a", "2023-01-15T00:00:00Z"),
		filterItem(t, "b", "landsat-c2-l2", "2023-03-01T00:00:00Z"),
		filterItem(t, "c", "sentinel-2-l2a", "2023-07-01T00:00:00Z"),
	}}

	tests := []struct {
		name     string
		expr     string
		expected []string
	}{
		{
			name:     "by collection",
			expr:     `collection == "sentinel-2-l2a"`,
			expected: []string{"a", "c"},
		},
		{
			name:     "by datetime range",
			expr:     `datetime >= "2023-02-01" && datetime < "2023-08-01"`,
			expected: []string{"b", "c"},
		},
		{
			name:     "by id",
			expr:     `id != "b"`,
			expected: []string{"a", "c"},
		},
		{
			name:     "keeps nothing",
			expr:     `collection == "modis"`,
			expected: nil,
		},
		{
			name:     "keeps everything",
			expr:     `true`,
			expected: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := NewFilter(tt.expr)
			require.NoError(t, err)

			filtered, err := filter.Apply(coll)
			require.NoError(t, err)

			var ids []string
			for _, item := range filtered.Items {
				ids = append(ids, item.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestNewFilterCompileError(t *testing.T) {
	_, err := NewFilter(`collection == `)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFilterCompile)
}
