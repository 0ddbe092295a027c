package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/glorpus-work/stacgrab/pkg/config"
	"github.com/glorpus-work/stacgrab/pkg/download"
	"github.com/glorpus-work/stacgrab/pkg/fetch"
	"github.com/glorpus-work/stacgrab/pkg/sign"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
)

// loadConfig loads the configuration from the --config flag or the default
// location.
func loadConfig() (*config.Config, error) {
	path := ""
	if ConfigPath != nil {
		path = *ConfigPath
	}
	if path == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
		path = defaultPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadItemCollection reads the input item collection from a file, or from
// stdin when path is "-".
func loadItemCollection(path string) (*stac.ItemCollection, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read item collection from stdin: %w", err)
		}
		coll := &stac.ItemCollection{}
		if err := json.Unmarshal(data, coll); err != nil {
			return nil, err
		}
		for _, item := range coll.Items {
			if err := stac.CheckVersion(item.StacVersion); err != nil {
				return nil, err
			}
		}
		return coll, nil
	}
	return stac.ReadItemCollection(path)
}

// buildRunner assembles the download core from the configuration: the fetch
// clients, the batch signer and the runner around them.
func buildRunner(ctx context.Context, cfg *config.Config) (*download.Runner, error) {
	clients := []fetch.Client{
		fetch.NewHTTPClient(fetch.HTTPOptions{
			Timeout:         cfg.HTTP.Timeout,
			RetryAttempts:   cfg.HTTP.RetryAttempts,
			RetryBackoff:    cfg.HTTP.RetryBackoff,
			RetryMaxBackoff: cfg.HTTP.RetryMaxBackoff,
			UserAgent:       cfg.HTTP.UserAgent,
		}),
	}

	var signer sign.Signer = sign.NoopSigner{}
	if cfg.S3.Enabled {
		s3Client, err := fetch.NewS3Client(ctx, fetch.S3Options{
			Region:      cfg.S3.Region,
			AccessKey:   cfg.S3.AccessKey,
			SecretKey:   cfg.S3.SecretKey,
			AccessToken: cfg.S3.AccessToken,
			EndpointURL: cfg.S3.EndpointURL,
		})
		if err != nil {
			return nil, err
		}
		clients = append(clients, s3Client)
		if cfg.S3.Presign {
			signer = sign.NewPresignSigner(s3Client.API(), cfg.Download.SignExpiry)
		}
	}

	orchestrator := &download.Orchestrator{
		Clients:   clients,
		Signer:    sign.NewBatchSigner(signer, cfg.Download.SignBackoff),
		BatchSize: cfg.Download.ResignBatchSize,
		AssetKeys: cfg.Download.Assets,
	}
	return &download.Runner{
		Orchestrator: orchestrator,
		MaxAttempts:  cfg.Download.MaxAttempts,
		Grouped:      cfg.Download.Grouped,
		SkipPreview:  cfg.Download.SkipPreview,
		SampleSize:   cfg.Download.PreviewSize,
		Threshold:    cfg.Download.PreviewThreshold,
		Seed:         cfg.Download.PreviewSeed,
		Interval:     cfg.Settings.ProgressInterval,
	}, nil
}
