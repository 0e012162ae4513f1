package loracache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const blobExtension = ".msgpack"

// FileProvider keeps one msgpack blob per key under a working directory.
// It is the dry-run store: a later run with ReadFromCache replays it.
type FileProvider struct {
	dir string
}

func NewFileProvider(dir string) Provider[Blob, BlobID] {
	return &FileProvider{dir: dir}
}

func (f *FileProvider) path(key string) string {
	return filepath.Join(f.dir, key+blobExtension)
}

func (f *FileProvider) Get(ctx context.Context, key *Key[BlobID], requiredModelVersion uint16) (*Blob, error) {
	_ = ctx

	bts, err := os.ReadFile(f.path(key.Key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	item, err := decodeBlob(bts)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", key.Key)
	}

	if item.GetCacheModelVersion() != requiredModelVersion {
		return nil, nil
	}

	return item, nil
}

func (f *FileProvider) MGet(ctx context.Context, keys []*Key[BlobID], requiredModelVersion uint16) (map[*Key[BlobID]]*Blob, []*Key[BlobID], error) {
	found := map[*Key[BlobID]]*Blob{}
	var missing []*Key[BlobID]

	for _, k := range keys {
		item, err := f.Get(ctx, k, requiredModelVersion)
		if err != nil {
			return nil, nil, err
		}

		if item == nil {
			missing = append(missing, k)
			continue
		}

		found[k] = item
	}

	return found, missing, nil
}

// MSet writes each blob through a temporary file and a rename. ttl is ignored.
func (f *FileProvider) MSet(ctx context.Context, values map[string]*Blob, ttl time.Duration) error {
	_, _ = ctx, ttl

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return errors.WithStack(err)
	}

	for k, v := range values {
		bts, err := encodeBlob(v)
		if err != nil {
			return errors.Wrapf(err, "encode %s", k)
		}

		tmp, err := os.CreateTemp(f.dir, k+".*.tmp")
		if err != nil {
			return errors.WithStack(err)
		}

		if _, err = tmp.Write(bts); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return errors.WithStack(err)
		}

		if err = tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return errors.WithStack(err)
		}

		if err = os.Rename(tmp.Name(), f.path(k)); err != nil {
			_ = os.Remove(tmp.Name())
			return errors.WithStack(err)
		}
	}

	return nil
}
