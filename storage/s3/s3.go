package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbukum/mediafs/logger"
	"github.com/kbukum/mediafs/storage"
	"github.com/kbukum/mediafs/vpath"
)

// deleteBatch is the DeleteObjects per-request limit.
const deleteBatch = 1000

func init() {
	storage.RegisterFactory(storage.ProviderS3, func(cfg storage.Config, log *logger.Logger) (storage.Client, error) {
		c := FromStorage(cfg)
		c.ApplyDefaults()
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return NewStorage(context.Background(), c)
	})
}

// Storage implements storage.Client on an S3 bucket. Folders are key
// prefixes; an empty folder is kept alive by a zero-byte "<path>/" marker.
type Storage struct {
	client *awss3.Client
	bucket string
}

var (
	_ storage.Client = (*Storage)(nil)
	_ storage.Pinger = (*Storage)(nil)
)

// NewStorage creates a new S3 storage client from the given config.
func NewStorage(ctx context.Context, cfg *Config) (*Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		} else if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return &Storage{client: client, bucket: cfg.Bucket}, nil
}

// ListFolders returns the common prefixes one level below parent.
func (s *Storage) ListFolders(ctx context.Context, parent string, maxResults int) ([]storage.Folder, error) {
	var out []storage.Folder
	err := s.list(ctx, folderPrefix(parent), true, func(page *awss3.ListObjectsV2Output) bool {
		for _, cp := range page.CommonPrefixes {
			p := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			out = append(out, storage.Folder{Name: vpath.LeafName(p), Path: p})
			if maxResults > 0 && len(out) >= maxResults {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListResources returns the objects directly under folder.
func (s *Storage) ListResources(ctx context.Context, folder string) ([]storage.Resource, error) {
	return s.listResources(ctx, folderPrefix(folder), true)
}

// ListAllResources returns every object in the bucket.
func (s *Storage) ListAllResources(ctx context.Context) ([]storage.Resource, error) {
	return s.listResources(ctx, "", false)
}

func (s *Storage) listResources(ctx context.Context, prefix string, delimited bool) ([]storage.Resource, error) {
	var out []storage.Resource
	err := s.list(ctx, prefix, delimited, func(page *awss3.ListObjectsV2Output) bool {
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			out = append(out, s.resource(key, aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified)))
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Storage) list(ctx context.Context, prefix string, delimited bool, each func(*awss3.ListObjectsV2Output) bool) error {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if delimited {
		input.Delimiter = aws.String("/")
	}

	pager := awss3.NewListObjectsV2Paginator(s.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return classify(fmt.Errorf("storage: s3 list: %w", err))
		}
		if !each(page) {
			return nil
		}
	}
	return nil
}

// GetResource returns the object metadata, or nil when the key is absent.
func (s *Storage) GetResource(ctx context.Context, key string) (*storage.Resource, error) {
	out, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, classify(fmt.Errorf("storage: s3 head: %w", err))
	}
	res := s.resource(key, aws.ToInt64(out.ContentLength), aws.ToTime(out.LastModified))
	return &res, nil
}

// Upload writes content to key. With overwrite false the put carries
// If-None-Match: * so the bucket rejects it when the key already exists.
// The body is buffered so the SDK can sign and checksum it.
func (s *Storage) Upload(ctx context.Context, key string, content io.Reader, overwrite bool) (*storage.Resource, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("storage: s3 upload: read content: %w", err)
	}

	input := &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if !overwrite {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if !overwrite && isPreconditionFailed(err) {
			return nil, storage.ErrAlreadyExists
		}
		return nil, classify(fmt.Errorf("storage: s3 upload: %w", err))
	}

	res := s.resource(key, int64(len(data)), time.Now().UTC())
	return &res, nil
}

// Download returns a reader for the S3 object at the given key.
func (s *Storage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, classify(fmt.Errorf("storage: s3 download: %w", err))
	}
	return out.Body, nil
}

// DeleteResource removes an S3 object. S3 does not report missing keys.
func (s *Storage) DeleteResource(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify(fmt.Errorf("storage: s3 delete: %w", err))
	}
	return nil
}

// DeleteFolder removes every object under the folder prefix, marker
// included, in DeleteObjects batches.
func (s *Storage) DeleteFolder(ctx context.Context, folder string) error {
	var keys []types.ObjectIdentifier
	err := s.list(ctx, folderPrefix(folder), false, func(page *awss3.ListObjectsV2Output) bool {
		for _, obj := range page.Contents {
			keys = append(keys, types.ObjectIdentifier{Key: obj.Key})
		}
		return true
	})
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		out, err := s.client.DeleteObjects(ctx, &awss3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: keys[start:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return classify(fmt.Errorf("storage: s3 delete folder: %w", err))
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return &storage.Error{
				Reason: storage.ReasonRemote,
				Err:    fmt.Errorf("s3 delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message)),
			}
		}
	}
	return nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return classify(fmt.Errorf("storage: s3 head bucket: %w", err))
	}
	return nil
}

func (s *Storage) resource(key string, size int64, modified time.Time) storage.Resource {
	ext := strings.TrimPrefix(path.Ext(key), ".")
	return storage.Resource{
		Key:          key,
		Folder:       vpath.Parent(key),
		DisplayName:  vpath.LeafName(key),
		Format:       ext,
		ResourceType: "raw",
		Bytes:        size,
		CreatedAt:    modified,
		URL:          s.objectURL(key),
	}
}

func (s *Storage) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.resolveEndpoint(), s.bucket, key)
}

func (s *Storage) resolveEndpoint() string {
	opts := s.client.Options()
	if opts.BaseEndpoint != nil && *opts.BaseEndpoint != "" {
		return strings.TrimRight(*opts.BaseEndpoint, "/")
	}
	return fmt.Sprintf("https://s3.%s.amazonaws.com", opts.Region)
}

func folderPrefix(folder string) string {
	if folder == "" {
		return ""
	}
	return strings.Trim(folder, "/") + "/"
}
