package s3

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/ruget/internal/errcode"
	"github.com/tanq16/ruget/internal/resume"
	"github.com/tanq16/ruget/internal/utils"
)

// Fetch performs GetObject, with a Range when resuming. Service errors that
// carry an HTTP status are returned as responses so they are classified the
// same way as plain HTTP downloads. Custom headers are not sent; requests are
// signed by the SDK.
func (f *S3Fetcher) Fetch(ctx context.Context, req utils.FetchRequest) (*utils.FetchResponse, error) {
	bucket, key, err := parseS3URL(req.URL)
	if err != nil {
		return nil, errcode.Wrap(errcode.E204, err)
	}
	client, err := f.getClient(ctx)
	if err != nil {
		return nil, errcode.Wrap(errcode.E502, err)
	}
	if len(req.Headers) > 0 {
		log.Debug().Str("op", "s3/download").Msgf("ignoring %d custom headers for s3://%s/%s", len(req.Headers), bucket, key)
	}
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if req.Offset > 0 {
		input.Range = aws.String(resume.RangeHeader(req.Offset))
		log.Debug().Str("op", "s3/download").Msgf("resuming s3://%s/%s from offset %d", bucket, key, req.Offset)
	}
	result, err := client.GetObject(ctx, input)
	if err != nil {
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) && respErr.HTTPStatusCode() > 0 {
			log.Debug().Str("op", "s3/download").Err(err).Msg("GetObject failed")
			contentRange := ""
			if respErr.Response != nil && respErr.Response.Response != nil {
				contentRange = respErr.Response.Header.Get("Content-Range")
			}
			return &utils.FetchResponse{
				Status:        respErr.HTTPStatusCode(),
				ContentLength: 0,
				ContentRange:  contentRange,
				Body:          io.NopCloser(strings.NewReader("")),
			}, nil
		}
		if isNetworkError(err) {
			return nil, err
		}
		// credential, signing and serialization failures will not fix themselves
		return nil, errcode.Wrap(errcode.E502, err)
	}

	resp := &utils.FetchResponse{
		Status:        http.StatusOK,
		ContentLength: -1,
		ContentRange:  aws.ToString(result.ContentRange),
		Body:          result.Body,
	}
	if resp.ContentRange != "" {
		resp.Status = http.StatusPartialContent
	}
	if result.ContentLength != nil {
		resp.ContentLength = *result.ContentLength
	}
	return resp, nil
}

// Size returns the object's ContentLength from HeadObject.
func (f *S3Fetcher) Size(ctx context.Context, req utils.FetchRequest) (int64, error) {
	bucket, key, err := parseS3URL(req.URL)
	if err != nil {
		return -1, err
	}
	client, err := f.getClient(ctx)
	if err != nil {
		return -1, err
	}
	result, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return -1, err
	}
	if result.ContentLength == nil {
		return -1, nil
	}
	return *result.ContentLength, nil
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
