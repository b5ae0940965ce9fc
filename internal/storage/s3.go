package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"

	appconfig "github.com/OFFIS-RIT/casegraph/internal/config"
)

// UploadPrefix is the key prefix of archived raw uploads.
const UploadPrefix = "uploads"

func NewS3Client(ctx context.Context, c appconfig.S3) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(c.Region),
		config.WithBaseEndpoint(c.Endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKey,
			c.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

// objectAPI is the part of *s3.Client used by the archive.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Archive stores raw uploaded files in a bucket.
type Archive struct {
	client objectAPI
	bucket string
	now    func() time.Time
}

func NewArchive(client *s3.Client, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket, now: time.Now}
}

func (a *Archive) Bucket() string {
	return a.bucket
}

// ArchiveKey builds the object key for an upload named name:
// uploads/<yyyy>/<mm>/<id>.<ext>. Names without extension get no suffix.
func ArchiveKey(now time.Time, id string, name string) string {
	key := path.Join(UploadPrefix, now.Format("2006"), now.Format("01"), id)
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		key += ext
	}
	return key
}

// PutFile uploads file under a fresh archive key and returns that key.
func (a *Archive) PutFile(ctx context.Context, name string, file io.Reader) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("nanoid: %w", err)
	}
	key := ArchiveKey(a.now().UTC(), id, name)

	input := &s3.PutObjectInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(key),
		Body:     file,
		Metadata: map[string]string{"original-name": name},
	}
	if mimeType := mime.TypeByExtension(filepath.Ext(name)); mimeType != "" {
		input.ContentType = aws.String(mimeType)
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return key, nil
}

// ListFilesWithPrefix returns all object keys below prefix.
func (a *Archive) ListFilesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	}

	for {
		listOutput, err := a.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %s: %w", prefix, err)
		}

		for _, obj := range listOutput.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}

		if listOutput.IsTruncated != nil && *listOutput.IsTruncated {
			listInput.ContinuationToken = listOutput.NextContinuationToken
		} else {
			break
		}
	}

	return keys, nil
}
