package stac

import (
	goversion "github.com/hashicorp/go-version"

	"github.com/glorpus-work/stacgrab/pkg/errors"
)

// supportedVersions is the STAC spec range this tool understands.
var supportedVersions = goversion.MustConstraints(goversion.NewConstraint(">= 1.0.0, < 2.0.0"))

// CheckVersion validates an item's stac_version against the supported range.
// Items without a version are accepted; older search backends omit it.
func CheckVersion(v string) error {
	if v == "" {
		return nil
	}
	parsed, err := goversion.NewVersion(v)
	if err != nil {
		return errors.Wrapf(errors.ErrUnsupportedVersion, "%q", v)
	}
	if !supportedVersions.Check(parsed) {
		return errors.Wrapf(errors.ErrUnsupportedVersion, "%s (supported: %s)", v, supportedVersions)
	}
	return nil
}
