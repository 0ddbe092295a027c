//go:generate mockgen -destination=./mocks/fetch.go -package=mocks . Client

// Package fetch provides the pluggable per-backend asset fetch clients used
// by the download orchestrator. Each client owns its own transport-level
// retry policy; a fetch that exhausts it surfaces as a missing file, never as
// a fault to the orchestrator.
package fetch

import "context"

// Client downloads a single remote asset to a local path.
type Client interface {
	// Matches reports whether this client understands the given href.
	Matches(href string) bool

	// Fetch downloads href to dest, creating parent directories as needed.
	// The file only appears at dest if the download completed.
	Fetch(ctx context.Context, href, dest string) error
}

// For selects the first client that accepts href, or nil.
func For(clients []Client, href string) Client {
	for _, c := range clients {
		if c.Matches(href) {
			return c
		}
	}
	return nil
}
