package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"openmediamap/internal/platform/config"
	dErrors "openmediamap/pkg/domain-errors"
)

const (
	pendingPrefix = "submissions/pending"
	cacheControl  = "public, max-age=31536000, immutable"
)

// SpacesStore writes photos to a DigitalOcean Spaces (S3-compatible) bucket
// and returns their CDN URL.
type SpacesStore struct {
	uploader       s3manageriface.UploaderAPI
	bucket         string
	cdnBaseURL     string
	requestTimeout time.Duration
	newKey         func(ext string) string
	breaker        *gobreaker.CircuitBreaker
}

// SpacesOption configures a SpacesStore.
type SpacesOption func(*SpacesStore)

// WithUploader replaces the S3 uploader.
func WithUploader(u s3manageriface.UploaderAPI) SpacesOption {
	return func(s *SpacesStore) {
		if u != nil {
			s.uploader = u
		}
	}
}

// WithKeyFunc overrides object key generation.
func WithKeyFunc(fn func(ext string) string) SpacesOption {
	return func(s *SpacesStore) {
		if fn != nil {
			s.newKey = fn
		}
	}
}

// NewSpaces builds a store from configuration. The HTTP client bounds connect
// time and the SDK retries a failed request at most cfg.MaxRetries times.
func NewSpaces(cfg config.SpacesConfig, opts ...SpacesOption) (*SpacesStore, error) {
	s := &SpacesStore{
		bucket:         cfg.Bucket,
		cdnBaseURL:     strings.TrimRight(cfg.CDNBaseURL, "/"),
		requestTimeout: cfg.RequestTimeout,
		newKey:         pendingKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = newBreaker(cfg)
	if s.bucket == "" {
		return nil, fmt.Errorf("spaces bucket is required")
	}

	if s.uploader == nil {
		httpClient := &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
				TLSHandshakeTimeout:   cfg.ConnectTimeout,
				ResponseHeaderTimeout: cfg.RequestTimeout,
				MaxIdleConnsPerHost:   8,
				IdleConnTimeout:       90 * time.Second,
			},
		}
		sess, err := session.NewSession(&aws.Config{
			Region:      aws.String(cfg.Region),
			Endpoint:    aws.String(cfg.Endpoint),
			Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
			HTTPClient:  httpClient,
			MaxRetries:  aws.Int(cfg.MaxRetries),
		})
		if err != nil {
			return nil, fmt.Errorf("create spaces session: %w", err)
		}
		s.uploader = s3manager.NewUploader(sess)
	}
	return s, nil
}

// Put uploads data under a fresh pending key and returns its public URL.
// Any failure, including cancellation, is reported as an upstream error and
// leaves nothing for the caller to clean up in the database.
func (s *SpacesStore) Put(ctx context.Context, data []byte, image ImageType) (string, error) {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	key := s.newKey(image.Ext)
	_, err := s.breaker.Execute(func() (interface{}, error) {
		out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket:             aws.String(s.bucket),
			Key:                aws.String(key),
			Body:               bytes.NewReader(data),
			ContentType:        aws.String(image.MIME),
			ACL:                aws.String("public-read"),
			CacheControl:       aws.String(cacheControl),
			ContentDisposition: aws.String("inline"),
		})
		// awserr values do not unwrap to the context error.
		if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return out, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", dErrors.Wrap(err, dErrors.CodeUpstream, "Photo storage is temporarily unavailable")
		}
		return "", dErrors.Wrap(err, dErrors.CodeUpstream, "Failed to upload photo")
	}
	return s.cdnBaseURL + "/" + key, nil
}

// newBreaker trips after cfg.BreakerFailures consecutive upload failures and
// probes again after cfg.BreakerCooldown. Caller cancellation is not a failure.
func newBreaker(cfg config.SpacesConfig) *gobreaker.CircuitBreaker {
	threshold := uint32(cfg.BreakerFailures)
	if cfg.BreakerFailures <= 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "spaces-upload",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

func pendingKey(ext string) string {
	return fmt.Sprintf("%s/%s.%s", pendingPrefix, uuid.NewString(), ext)
}
