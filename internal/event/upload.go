// Package event validates object-store write notifications once at the
// boundary so processors only ever see a well-formed Upload.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// ErrMalformed is matched by every error Parse returns.
var ErrMalformed = errors.New("malformed upload event")

type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformed, e.Reason)
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}

func malformed(format string, args ...any) error {
	return &MalformedError{Reason: fmt.Sprintf(format, args...)}
}

// Upload is the validated form of a storage write notification.
type Upload struct {
	Bucket    string
	Key       string
	Region    string
	ETag      string
	EventName string
	EventTime time.Time
}

// ImageID is the last path segment of the object key.
func (u Upload) ImageID() string {
	if i := strings.LastIndex(u.Key, "/"); i >= 0 {
		return u.Key[i+1:]
	}
	return u.Key
}

// notification covers both the S3 schema and the MinIO flavour, which adds
// EventName and Key at the top level next to Records.
type notification struct {
	EventName string                  `json:"EventName,omitempty"`
	Key       string                  `json:"Key,omitempty"`
	Records   *[]events.S3EventRecord `json:"Records"`
}

// Parse decodes a raw notification. Only the first record is read.
func Parse(raw []byte) (Upload, error) {
	if len(raw) == 0 {
		return Upload{}, malformed("empty payload")
	}

	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return Upload{}, malformed("decode: %v", err)
	}
	if n.Records == nil {
		return Upload{}, malformed("missing 'Records' in event")
	}
	return FromS3Event(events.S3Event{Records: *n.Records})
}

// FromS3Event validates an already decoded S3 event.
func FromS3Event(ev events.S3Event) (Upload, error) {
	if len(ev.Records) == 0 {
		return Upload{}, malformed("no records in event")
	}

	rec := ev.Records[0]
	if rec.S3.Bucket.Name == "" {
		return Upload{}, malformed("record has no bucket name")
	}

	key := rec.S3.Object.URLDecodedKey
	if key == "" {
		key = rec.S3.Object.Key
	}
	if key == "" {
		return Upload{}, malformed("record has no object key")
	}

	return Upload{
		Bucket:    rec.S3.Bucket.Name,
		Key:       key,
		Region:    rec.AWSRegion,
		ETag:      rec.S3.Object.ETag,
		EventName: rec.EventName,
		EventTime: rec.EventTime,
	}, nil
}

// NewNotification builds an S3-schema notification for one object, in the
// shape storage services emit on ObjectCreated.
func NewNotification(bucket, key, region, etag string, size int64, at time.Time) events.S3Event {
	return events.S3Event{
		Records: []events.S3EventRecord{{
			EventVersion: "2.1",
			EventSource:  "imgindex:backfill",
			AWSRegion:    region,
			EventTime:    at.UTC(),
			EventName:    "ObjectCreated:Put",
			S3: events.S3Entity{
				SchemaVersion: "1.0",
				Bucket:        events.S3Bucket{Name: bucket},
				Object: events.S3Object{
					Key:           url.QueryEscape(key),
					URLDecodedKey: key,
					Size:          size,
					ETag:          etag,
				},
			},
		}},
	}
}
