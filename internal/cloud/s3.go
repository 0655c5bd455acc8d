package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/videodiary/internal/common"
	"github.com/dmitrijs2005/videodiary/internal/logging"
	"github.com/dmitrijs2005/videodiary/internal/models"
)

// ProviderNameS3 identifies the S3-compatible adapter.
const ProviderNameS3 = "s3"

// S3Config holds the connection settings for an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3Client stores entries in an S3-compatible bucket. Object identity is
// the deterministic key itself, so re-uploads overwrite in place and no
// pre-create lookup is needed. Each object carries {type, entryId} user
// metadata.
type S3Client struct {
	client *s3.Client
	bucket string
	log    logging.Logger
}

func NewS3Client(ctx context.Context, cfg S3Config, log logging.Logger) (*S3Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{client: client, bucket: cfg.Bucket, log: log}, nil
}

func (c *S3Client) Name() string { return ProviderNameS3 }

func (c *S3Client) put(ctx context.Context, key, contentType, kind, entryID string, data []byte) error {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"type":    kind,
			"entryid": entryID,
		},
	})
	if err != nil {
		return mapS3Error(err)
	}
	return nil
}

func (c *S3Client) UploadVideo(ctx context.Context, entryID, mimeType string, data []byte, progress ProgressFunc) (*models.CloudFileRef, error) {
	key := videoName(entryID, mimeType)
	if err := c.put(ctx, key, mimeType, TagVideo, entryID, data); err != nil {
		return nil, err
	}
	if progress != nil {
		progress(int64(len(data)), int64(len(data)))
	}
	return &models.CloudFileRef{Provider: ProviderNameS3, FileID: key, MimeType: mimeType}, nil
}

func (c *S3Client) UploadMeta(ctx context.Context, entryID string, meta []byte) (*models.CloudFileRef, error) {
	key := metaName(entryID)
	if err := c.put(ctx, key, "application/json", TagEntryMeta, entryID, meta); err != nil {
		return nil, err
	}
	return &models.CloudFileRef{Provider: ProviderNameS3, FileID: key, MimeType: "application/json"}, nil
}

// ListMetas lists entry metadata objects. Keys are deterministic, so the
// entry id is recovered from the key without a per-object metadata fetch.
func (c *S3Client) ListMetas(ctx context.Context) ([]RemoteObject, error) {
	var result []RemoteObject

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String("entry_"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error(err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			id, ok := entryIDFromKey(key)
			if !ok {
				continue
			}
			result = append(result, RemoteObject{
				Ref:     models.CloudFileRef{Provider: ProviderNameS3, FileID: key, MimeType: "application/json"},
				Name:    key,
				EntryID: id,
				Kind:    TagEntryMeta,
			})
		}
	}
	return result, nil
}

// entryIDFromKey recovers the entry id from an entry_{id}.json key.
func entryIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, "entry_") || !strings.HasSuffix(key, ".json") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, "entry_"), ".json")
	return id, id != ""
}

func (c *S3Client) Download(ctx context.Context, ref *models.CloudFileRef) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(ref.FileID),
	})
	if err != nil {
		return nil, mapS3Error(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransient, err)
	}
	return data, nil
}

func (c *S3Client) Delete(ctx context.Context, ref *models.CloudFileRef) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(ref.FileID),
	})
	if err != nil {
		if errors.Is(mapS3Error(err), common.ErrNotFound) {
			return nil
		}
		return mapS3Error(err)
	}
	return nil
}

func mapS3Error(err error) error {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &noKey), errors.As(err, &noBucket):
		return fmt.Errorf("%w: %v", common.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrTransient, err)
	}
}
