package storage

import (
	"fmt"
	"strings"
)

// URLResolver builds the public URL of an object.
type URLResolver interface {
	ObjectURL(bucket, key string) string
}

// S3URLs produces virtual-hosted style S3 URLs.
type S3URLs struct {
	Region string
}

func (u S3URLs) ObjectURL(bucket, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, u.Region, key)
}

// MinIOURLs produces path-style URLs against a MinIO endpoint.
type MinIOURLs struct {
	Endpoint string
	Secure   bool
}

func (u MinIOURLs) ObjectURL(bucket, key string) string {
	scheme := "http"
	if u.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, strings.TrimRight(u.Endpoint, "/"), bucket, key)
}

// ResolveURL turns a stored reference into a fully qualified URL. Absolute
// URLs pass through; anything else is treated as an object key in bucket.
func ResolveURL(r URLResolver, bucket, ref string) string {
	if ref == "" || isAbsolute(ref) || bucket == "" {
		return ref
	}
	return r.ObjectURL(bucket, strings.TrimPrefix(ref, "/"))
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}
