// Package snapshot is the byte-blob sink for the content store's SQLite
// file (spec §6): upload, list, download, delete, and retention cleanup
// against an S3-compatible bucket. It never inspects the store file's
// contents — it is handed an io.Reader/io.Writer and a
// types.SnapshotMetadata and treats the bytes opaquely.
//
// Grounded on the teacher's lode/client_s3.go: AWS SDK v2's default
// credential chain via config.LoadDefaultConfig, s3.NewFromConfig with
// optional custom endpoint and path-style addressing for S3-compatible
// providers (R2, MinIO). The teacher wraps its own S3 client behind
// justapithecus/lode, whose internals are not present in the retrieved
// examples to ground an adaptation of; this package calls the AWS SDK
// directly instead, still exercising the same upload/download/checksum
// concern lode exists to serve.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/lookervault/lookervault/lverrors"
	"github.com/lookervault/lookervault/types"
)

// crc32cTable is the Castagnoli polynomial table, the same checksum
// variant S3 itself uses for its own object checksums.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Config configures a Sink.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional), distinct
	// from SnapshotMetadata.Prefix (the filename prefix).
	Prefix string
	// Region is the AWS region; empty uses the default credential
	// chain's region resolution.
	Region string
	// Endpoint overrides the default AWS endpoint, for S3-compatible
	// providers.
	Endpoint string
	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("snapshot: bucket is required")
	}
	return nil
}

// Sink uploads, lists, downloads, and prunes store snapshots in an S3
// bucket.
type Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// New builds a Sink from cfg, loading AWS credentials from the default
// chain (env vars, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Sink{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *Sink) key(filename string) string {
	if s.prefix == "" {
		return filename
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + filename
}

// countingReader wraps an io.Reader, accumulating a CRC32C checksum and
// byte count as it is read, so Upload can compute both in a single pass
// without buffering the whole file in memory.
type countingReader struct {
	r   io.Reader
	crc uint32
	n   int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.crc = crc32.Update(c.crc, crc32cTable, p[:n])
		c.n += int64(n)
	}
	return n, err
}

// Upload streams r to the bucket under meta's filename, computing
// CRC32C and size in a single pass as it streams. Because the checksum
// is only known once the stream is exhausted — after the PutObject body
// has already been sent — a second, bodyless CopyObject call (copying
// the object onto itself with a replaced metadata set) attaches the
// computed crc32c/size without re-uploading the blob. The returned
// SnapshotMetadata has SizeBytes/CRC32C filled in from what was actually
// written.
func (s *Sink) Upload(ctx context.Context, r io.Reader, meta types.SnapshotMetadata) (types.SnapshotMetadata, error) {
	cr := &countingReader{r: r}
	key := s.key(meta.Filename())

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   cr,
		Metadata: map[string]string{
			"content-encoding-kind": meta.ContentEncoding,
		},
	}); err != nil {
		return types.SnapshotMetadata{}, &lverrors.StorageError{Op: "snapshot_upload", Err: err}
	}

	meta.SizeBytes = cr.n
	meta.CRC32C = cr.crc

	copySource := s.bucket + "/" + url.QueryEscape(key)
	if _, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(copySource),
		MetadataDirective: s3types.MetadataDirectiveReplace,
		Metadata: map[string]string{
			"crc32c":                strconv.FormatUint(uint64(cr.crc), 10),
			"size-bytes":            strconv.FormatInt(cr.n, 10),
			"content-encoding-kind": meta.ContentEncoding,
		},
	}); err != nil {
		return types.SnapshotMetadata{}, &lverrors.StorageError{Op: "snapshot_upload_metadata", Err: err}
	}

	return meta, nil
}

// Download streams the snapshot stored under key to w, returning the
// CRC32C/size recorded in its object metadata for the caller to verify
// against what was actually streamed.
func (s *Sink) Download(ctx context.Context, key string, w io.Writer) (types.SnapshotMetadata, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return types.SnapshotMetadata{}, &lverrors.StorageError{Op: "snapshot_download", Err: err}
	}
	defer out.Body.Close()

	cr := &countingReader{r: out.Body}
	if _, err := io.Copy(w, cr); err != nil {
		return types.SnapshotMetadata{}, &lverrors.StorageError{Op: "snapshot_download_copy", Err: err}
	}

	meta := parseKeyMetadata(key, out.Metadata)
	meta.SizeBytes = cr.n
	if meta.CRC32C == 0 {
		meta.CRC32C = cr.crc
	} else if meta.CRC32C != cr.crc {
		return meta, fmt.Errorf("snapshot: crc32c mismatch for %q: stored %d, computed %d", key, meta.CRC32C, cr.crc)
	}
	return meta, nil
}

// List returns every snapshot under the configured prefix, newest first.
func (s *Sink) List(ctx context.Context) ([]types.SnapshotMetadata, error) {
	var out []types.SnapshotMetadata
	var token *string
	for {
		resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, &lverrors.StorageError{Op: "snapshot_list", Err: err}
		}
		for _, obj := range resp.Contents {
			out = append(out, objectToMetadata(obj, s.prefix))
		}
		if resp.IsTruncated == nil || !*resp.IsTruncated {
			break
		}
		token = resp.NextContinuationToken
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// Delete removes the snapshot stored under key.
func (s *Sink) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return &lverrors.StorageError{Op: "snapshot_delete", Err: err}
	}
	return nil
}

// Cleanup applies a retention policy, deleting every snapshot beyond the
// keep most recent, returning the keys it deleted.
func (s *Sink) Cleanup(ctx context.Context, keep int) ([]string, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(all) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, meta := range all[keep:] {
		if err := s.Delete(ctx, meta.Filename()); err != nil {
			return deleted, err
		}
		deleted = append(deleted, meta.Filename())
	}
	return deleted, nil
}

func objectToMetadata(obj s3types.Object, prefix string) types.SnapshotMetadata {
	key := aws.ToString(obj.Key)
	filename := strings.TrimPrefix(key, strings.TrimSuffix(prefix, "/")+"/")
	meta := parseKeyMetadata(filename, nil)
	meta.SizeBytes = aws.ToInt64(obj.Size)
	return meta
}

// parseKeyMetadata extracts the snapshot's filename-prefix and timestamp
// from its "{prefix}-YYYY-MM-DDTHH-MM-SS.db[.gz]" name, and its
// checksum/encoding from S3 object metadata when present.
func parseKeyMetadata(filename string, objMeta map[string]string) types.SnapshotMetadata {
	meta := types.SnapshotMetadata{Key: filename}

	base := filename
	encoding := ""
	if strings.HasSuffix(base, ".gz") {
		encoding = "gzip"
		base = strings.TrimSuffix(base, ".gz")
	}
	base = strings.TrimSuffix(base, ".db")

	const tsLayout = "2006-01-02T15-04-05"
	if len(base) > len(tsLayout) {
		split := len(base) - len(tsLayout) - 1
		if split > 0 && base[split] == '-' {
			meta.Prefix = base[:split]
			if ts, err := time.Parse(tsLayout, base[split+1:]); err == nil {
				meta.Timestamp = ts
			}
		}
	}
	meta.ContentEncoding = encoding

	if objMeta != nil {
		if v, ok := objMeta["crc32c"]; ok {
			if n, err := strconv.ParseUint(v, 10, 32); err == nil {
				meta.CRC32C = uint32(n)
			}
		}
		if v, ok := objMeta["content-encoding-kind"]; ok && v != "" {
			meta.ContentEncoding = v
		}
	}
	return meta
}
