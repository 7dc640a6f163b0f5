package storage

import (
	"fmt"
	"strings"
)

const uriScheme = "s3://"

// Locator identifies an uploaded object by bucket and key.
type Locator struct {
	Bucket string
	Key    string
}

// ParseLocator parses an s3://bucket/key URI. Anything not carrying the
// s3:// scheme is rejected before any network call is made.
func ParseLocator(uri string) (Locator, error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return Locator{}, fmt.Errorf("invalid S3 URI %q: must start with %s", uri, uriScheme)
	}

	rest := strings.TrimPrefix(uri, uriScheme)
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Locator{}, fmt.Errorf("invalid S3 URI %q: missing bucket", uri)
	}

	return Locator{Bucket: bucket, Key: key}, nil
}

// String renders the locator back into s3://bucket/key form.
func (l Locator) String() string {
	return uriScheme + l.Bucket + "/" + l.Key
}
