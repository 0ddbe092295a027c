package sign

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/glorpus-work/stacgrab/pkg/errors"
	"github.com/glorpus-work/stacgrab/pkg/fetch"
	"github.com/glorpus-work/stacgrab/pkg/stac"
)

// DefaultPresignExpiry is how long presigned asset URLs stay valid. It must
// comfortably exceed the fetch time of one batch; the orchestrator re-signs
// every batch anyway.
const DefaultPresignExpiry = time.Hour

// presignAPI is the subset of the S3 presign client used here.
type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// PresignSigner rewrites s3:// asset hrefs to time-limited presigned HTTPS
// URLs. Assets with other schemes pass through unchanged.
type PresignSigner struct {
	presign presignAPI
	expiry  time.Duration
}

// NewPresignSigner creates a PresignSigner from an S3 client. expiry <= 0
// falls back to DefaultPresignExpiry.
func NewPresignSigner(client *s3.Client, expiry time.Duration) *PresignSigner {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &PresignSigner{presign: s3.NewPresignClient(client), expiry: expiry}
}

// Sign presigns every s3 asset href in place and returns the items. Presign
// failures are transient: the signing endpoint is retried by the caller.
func (p *PresignSigner) Sign(ctx context.Context, items []*stac.Item) ([]*stac.Item, error) {
	for _, item := range items {
		for _, key := range item.AssetKeys() {
			asset := item.Assets[key]
			bucket, objectKey, err := fetch.ParseS3Href(asset.Href)
			if err != nil {
				// Not an s3 href; nothing to sign.
				continue
			}
			req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(objectKey),
			}, func(o *s3.PresignOptions) {
				o.Expires = p.expiry
			})
			if err != nil {
				return nil, errors.Wrapf(errors.ErrSigningTransient, "presign %s: %v", asset.Href, err)
			}
			asset.Href = req.URL
		}
	}
	return items, nil
}
