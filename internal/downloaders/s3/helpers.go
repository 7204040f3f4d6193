package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// getClient loads AWS configuration once. Retries are disabled in the SDK;
// the download pipeline owns the retry policy.
func (f *S3Fetcher) getClient(ctx context.Context) (*s3.Client, error) {
	f.once.Do(func() {
		loadOpts := []func(*config.LoadOptions) error{
			config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
		}
		if f.opts.Profile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(f.opts.Profile))
		}
		if f.opts.Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(f.opts.Region))
		}
		if f.opts.Credentials != nil {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(f.opts.Credentials))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			f.err = fmt.Errorf("error loading AWS config: %w", err)
			return
		}
		f.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if f.opts.Endpoint != "" {
				o.BaseEndpoint = aws.String(f.opts.Endpoint)
			}
			o.UsePathStyle = f.opts.UsePathStyle
		})
	})
	return f.client, f.err
}
