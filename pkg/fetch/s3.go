package fetch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	pkgerrors "github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/fsutil"
)

// S3Options configure the S3 fetch client.
type S3Options struct {
	Region      string
	AccessKey   string
	SecretKey   string
	AccessToken string

	// EndpointURL points at an S3-compatible service. Path-style addressing
	// is forced when set; most S3-compatible stores require it.
	EndpointURL string
}

// S3Client fetches s3:// assets via the AWS transfer manager, which retries
// at the transport level on its own.
type S3Client struct {
	downloader *manager.Downloader
	s3         *s3.Client
}

// NewS3Client creates an S3 fetch client. Without explicit keys the ambient
// credential chain is used.
func NewS3Client(ctx context.Context, opts S3Options) (*S3Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			opts.AccessToken,
		))
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(creds))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load AWS config")
	}

	s3Options := func(o *s3.Options) {
		if opts.EndpointURL != "" {
			o.BaseEndpoint = aws.String(opts.EndpointURL)
			o.UsePathStyle = true
		}
	}
	client := s3.NewFromConfig(cfg, s3Options)
	return &S3Client{
		downloader: manager.NewDownloader(client),
		s3:         client,
	}, nil
}

// API exposes the underlying S3 client, e.g. for building a presigner on the
// same credentials and endpoint.
func (c *S3Client) API() *s3.Client {
	return c.s3
}

// Matches reports whether href is an s3 URL.
func (c *S3Client) Matches(href string) bool {
	return strings.HasPrefix(href, "s3://")
}

// Fetch downloads the object behind href to dest.
func (c *S3Client) Fetch(ctx context.Context, href, dest string) error {
	bucket, key, err := ParseS3Href(href)
	if err != nil {
		return err
	}
	if err := fsutil.EnsureFileDir(dest); err != nil {
		return pkgerrors.Wrap(err, "could not create download dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "dl-*.tmp")
	if err != nil {
		return pkgerrors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()

	_, err = c.downloader.Download(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return pkgerrors.Wrapf(err, "failed to download s3://%s/%s", bucket, key)
	}
	if err := fsutil.Move(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return pkgerrors.Wrap(err, "could not finalize file")
	}
	return nil
}

// ParseS3Href splits an s3://bucket/key href into bucket and key.
func ParseS3Href(href string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(href, "s3://")
	if !ok {
		return "", "", pkgerrors.Wrap(pkgerrors.ErrInvalidS3Href, href)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", pkgerrors.Wrap(pkgerrors.ErrInvalidS3Href, href)
	}
	return bucket, key, nil
}
