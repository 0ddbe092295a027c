package stac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glorpus-work/stacgrab/pkg/errors"
)

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version     string
		expectError bool
	}{
		{version: "", expectError: false},
		{version: "1.0.0", expectError: false},
		{version: "1.1.0", expectError: false},
		{version: "0.9.0", expectError: true},
		{version: "2.0.0", expectError: true},
		{version: "not-a-version", expectError: true},
	}

	for _, tt := range tests {
		t.Run("version "+tt.version, func(t *testing.T) {
			err := CheckVersion(tt.version)
			if tt.expectError {
				assert.ErrorIs(t, err, errors.ErrUnsupportedVersion)
				return
			}
			assert.NoError(t, err)
		})
	}
}
