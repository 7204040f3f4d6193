package s3

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Profile      string
	Region       string
	Endpoint     string // custom endpoint for S3-compatible stores
	UsePathStyle bool
	Credentials  aws.CredentialsProvider
}

// S3Fetcher serves s3://bucket/key URLs. The AWS client is built on first use
// so runs without S3 jobs never touch AWS configuration.
type S3Fetcher struct {
	opts Options

	once   sync.Once
	client *s3.Client
	err    error
}

func NewFetcher(opts Options) *S3Fetcher {
	return &S3Fetcher{opts: opts}
}

func (f *S3Fetcher) Validate(link string) error {
	if !strings.HasPrefix(link, "s3://") {
		return fmt.Errorf("not an S3 URL: %s", link)
	}
	bucket, key, err := parseS3URL(link)
	if err != nil {
		return err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return fmt.Errorf("S3 URL must name an object, got prefix s3://%s/%s", bucket, key)
	}
	log.Debug().Str("op", "s3/initial").Msgf("job validated for s3://%s/%s", bucket, key)
	return nil
}

func parseS3URL(url string) (string, string, error) {
	url = strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(url, "/", 2)
	if len(parts) < 1 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URL format")
	}
	bucket := parts[0]
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}
	return bucket, key, nil
}
