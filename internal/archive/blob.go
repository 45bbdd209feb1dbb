package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/kode4food/stepflow/pkg/api"
)

// BlobSink stores runs as JSON objects using gocloud.dev/blob, supporting
// S3, GCS, Azure Blob Storage, local files, and memory
type BlobSink struct {
	bucket *blob.Bucket
	prefix string
}

var _ Sink = (*BlobSink)(nil)

// NewBlobSink opens the bucket at bucketURL
func NewBlobSink(
	ctx context.Context, bucketURL, prefix string,
) (*BlobSink, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &BlobSink{bucket: bucket, prefix: prefix}, nil
}

func (s *BlobSink) Get(
	ctx context.Context, id api.RunID,
) (*api.RunState, error) {
	data, err := s.bucket.ReadAll(ctx, s.keyFor(id))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var st api.RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *BlobSink) Put(ctx context.Context, st *api.RunState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.bucket.WriteAll(ctx, s.keyFor(st.ID), data, nil)
}

// Delete removes an archived run. Deleting a missing run succeeds
func (s *BlobSink) Delete(ctx context.Context, id api.RunID) error {
	err := s.bucket.Delete(ctx, s.keyFor(id))
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (s *BlobSink) Close() error {
	return s.bucket.Close()
}

func (s *BlobSink) keyFor(id api.RunID) string {
	return s.prefix + string(id) + ".json"
}
