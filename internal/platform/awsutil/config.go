// Package awsutil loads AWS SDK configuration for the storage adapters.
package awsutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Load resolves credentials from the default chain. Checksums are only sent
// when an operation requires them so streamed uploads need no trailer.
func Load(ctx context.Context, region string) (aws.Config, error) {
	return awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion(region),
		awsConfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	)
}

// NewS3Client builds an S3 client. A non-empty endpoint points it at an
// S3-compatible store (LocalStack, MinIO) with path-style addressing.
func NewS3Client(cfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}
