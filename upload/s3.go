package upload

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"
)

// S3Uploader writes artifacts under a bucket/prefix parsed from an s3:// URL.
// Credentials come from the default AWS chain.
type S3Uploader struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3Uploader parses an s3://bucket/prefix destination.
func NewS3Uploader(destination string) (*S3Uploader, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing S3 destination %v", destination)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return nil, fmt.Errorf("destination %q is not an s3://bucket[/prefix] URL", destination)
	}
	sess, err := session.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	return &S3Uploader{
		client: s3.New(sess),
		bucket: u.Host,
		prefix: strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// Upload puts one local file at <prefix>/<name> in the bucket.
func (u *S3Uploader) Upload(localPath, name string) error {
	if name == "" {
		name = filepath.Base(localPath)
	}
	contents, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrapf(err, "reading artifact %v", localPath)
	}
	key := path.Join(u.prefix, name)
	_, err = u.client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(contents),
		ContentLength: aws.Int64(int64(len(contents))),
	})
	if err != nil {
		return errors.Wrapf(err, "putting S3 object s3://%s/%s", u.bucket, key)
	}
	return nil
}
