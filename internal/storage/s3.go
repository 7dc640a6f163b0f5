package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aws-samples/sample-AgentCore-BroswerTool-ChromeExtension-demo/pkg/logger"
)

// S3Config encapsulates the connection info for the extension bucket.
type S3Config struct {
	Bucket string
	Region string
	Prefix string
	// Endpoint overrides the default AWS endpoint, e.g. for LocalStack.
	Endpoint string
	UseSSL   bool
}

// S3Client implements ExtensionStore against S3.
type S3Client struct {
	client *minio.Client
	bucket string
	region string
	prefix string
}

// NewS3Client builds a new S3Client using the standard AWS credential chain
// (environment, shared credentials file, instance role).
func NewS3Client(cfg S3Config) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name must be provided")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	if endpoint == "" {
		endpoint = fmt.Sprintf("s3.%s.amazonaws.com", region)
		secure = true
	}

	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.FileAWSCredentials{},
		&credentials.IAM{},
	})

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "extensions/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3Client{
		client: client,
		bucket: cfg.Bucket,
		region: region,
		prefix: prefix,
	}, nil
}

// EnsureBucket creates the extension bucket if it does not exist. A bucket
// already owned by the caller counts as success; a bucket name taken by
// another account does not.
func (c *S3Client) EnsureBucket(ctx context.Context) error {
	logger.Log.Info().Str("bucket", c.bucket).Msg("Checking S3 bucket")

	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", c.bucket, err)
	}
	if exists {
		logger.Log.Info().Str("bucket", c.bucket).Msg("Bucket already exists")
		return nil
	}

	logger.Log.Info().Str("bucket", c.bucket).Str("region", c.region).Msg("Creating S3 bucket")

	err = c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region})
	if err != nil {
		if isOwnedByCaller(minio.ToErrorResponse(err).Code) {
			logger.Log.Info().Str("bucket", c.bucket).Msg("Bucket already owned by you")
			return nil
		}
		if minio.ToErrorResponse(err).Code == "BucketAlreadyExists" {
			return fmt.Errorf("bucket name already taken: %s", c.bucket)
		}
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}

	logger.Log.Info().Str("bucket", c.bucket).Msg("Bucket created")
	return nil
}

// isOwnedByCaller reports whether a create-bucket error code means the bucket
// exists and belongs to the caller, which EnsureBucket treats as success.
func isOwnedByCaller(code string) bool {
	return code == "BucketAlreadyOwnedByYou"
}

// Upload uploads an extension zip under the extension prefix and returns its
// locator.
func (c *S3Client) Upload(ctx context.Context, localPath string) (Locator, error) {
	key := c.prefix + filepath.Base(localPath)

	logger.Log.Info().
		Str("bucket", c.bucket).
		Str("key", key).
		Msg("Uploading extension to S3")

	info, err := c.client.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return Locator{}, fmt.Errorf("failed to upload %s: %w", localPath, err)
	}

	loc := Locator{Bucket: c.bucket, Key: key}
	logger.Log.Info().
		Str("uri", loc.String()).
		Int64("size", info.Size).
		Msg("Extension uploaded")

	return loc, nil
}

// Verify fetches the object metadata and compares the reported size with the
// local file size.
func (c *S3Client) Verify(ctx context.Context, loc Locator, wantSize int64) error {
	stat, err := c.client.StatObject(ctx, loc.Bucket, loc.Key, minio.StatObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", loc, err)
	}

	if err := checkObjectSize(stat.Size, wantSize); err != nil {
		return fmt.Errorf("verify %s: %w", loc, err)
	}

	logger.Log.Info().
		Str("uri", loc.String()).
		Int64("size", stat.Size).
		Time("last_modified", stat.LastModified).
		Msg("S3 object accessible")

	return nil
}

// checkObjectSize compares the remote and local sizes of an uploaded archive.
func checkObjectSize(got, want int64) error {
	if got != want {
		return fmt.Errorf("size mismatch: remote %d bytes, local %d bytes", got, want)
	}
	return nil
}

// ListExtensions lists all objects under the extension prefix.
func (c *S3Client) ListExtensions(ctx context.Context) ([]ObjectInfo, error) {
	var results []ObjectInfo

	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    c.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list extensions: %w", obj.Err)
		}
		results = append(results, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	return results, nil
}

// CleanupOld removes old extension versions, keeping only the latest
// keepLatest by key. Keys embed a timestamp, so a descending sort orders
// newest first. Per-object delete failures are logged and skipped.
func (c *S3Client) CleanupOld(ctx context.Context, keepLatest int) error {
	objects, err := c.ListExtensions(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}

	stale := selectStale(keys, keepLatest)
	if len(stale) == 0 {
		logger.Log.Info().Int("count", len(keys)).Msg("No old extensions to clean up")
		return nil
	}

	logger.Log.Info().Int("count", len(stale)).Msg("Deleting old extensions")

	for _, key := range stale {
		if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			logger.Log.Warn().Err(err).Str("key", key).Msg("Failed to delete old extension")
			continue
		}
		logger.Log.Debug().Str("key", key).Msg("Deleted old extension")
	}

	return nil
}

// selectStale returns the keys to delete when keeping the newest keepLatest.
func selectStale(keys []string, keepLatest int) []string {
	if keepLatest < 0 {
		keepLatest = 0
	}
	if len(keys) <= keepLatest {
		return nil
	}

	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Sort(sort.Reverse(sort.StringSlice(sorted)))

	return sorted[keepLatest:]
}

var _ ExtensionStore = (*S3Client)(nil)
