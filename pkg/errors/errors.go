package errors

import "fmt"

// Common error types.
var (
	// Config errors.
	ErrEmptyConfigPath   = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath = fmt.Errorf("invalid config file path")
	ErrConfigParse       = fmt.Errorf("failed to parse config")
	ErrConfigValidation  = fmt.Errorf("invalid configuration")

	// Fetch errors.
	ErrFetchFailed   = fmt.Errorf("asset fetch failed")
	ErrNoClient      = fmt.Errorf("no fetch client accepts href")
	ErrInvalidPath   = fmt.Errorf("invalid path")
	ErrInvalidS3Href = fmt.Errorf("invalid s3 href")

	// Signing errors.
	ErrSigningTransient = fmt.Errorf("transient signing failure")
	ErrSigningFatal     = fmt.Errorf("signing failed")

	// Catalog / artifact errors.
	ErrStructural         = fmt.Errorf("malformed item collection artifact")
	ErrMissingCollection  = fmt.Errorf("item collection file not found")
	ErrUnsupportedVersion = fmt.Errorf("unsupported STAC version")
	ErrEmptyCollection    = fmt.Errorf("item collection is empty")

	// Hook errors.
	ErrHookExecution = fmt.Errorf("error executing hook")
	ErrHookScript    = fmt.Errorf("hook script error")
	ErrFilterCompile = fmt.Errorf("failed to compile filter expression")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
