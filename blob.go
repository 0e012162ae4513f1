package loracache

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// ModelVersion is bumped whenever the snapshot field layout changes, so blobs
// written by an older build are ignored instead of misread.
const ModelVersion = uint16(3)

// Blob is the persisted form of one kind of one populate run.
type Blob struct {
	ModelVersion uint16    `msgpack:"model_version"`
	Engine       string    `msgpack:"engine"`
	Kind         Kind      `msgpack:"kind"`
	Temporal     Temporal  `msgpack:"temporal"`
	WrittenAt    time.Time `msgpack:"written_at"`
	Entities     Entities  `msgpack:"entities"`
}

func (b Blob) GetCacheModelVersion() uint16 {
	return b.ModelVersion
}

// BlobID addresses one blob.
type BlobID struct {
	Engine   string
	Kind     Kind
	Temporal Temporal
}

// Name is deterministic in engine, kind and configuration flags.
func (id BlobID) Name() string {
	return fmt.Sprintf("%s_%s_%s", id.Engine, id.Kind, id.Temporal.Name())
}

func (id BlobID) Key() *Key[BlobID] {
	return &Key[BlobID]{Key: id.Name(), OriginalValue: id}
}

func encodeBlob(b *Blob) ([]byte, error) {
	bts, err := msgpack.Marshal(b)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return bts, nil
}

// decodeBlob restores a blob and folds decoded values back into the
// snapshot value set so a reload equals the populated store.
func decodeBlob(bts []byte) (*Blob, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(bts))
	dec.UseLooseInterfaceDecoding(true)

	var b Blob
	if err := dec.Decode(&b); err != nil {
		return nil, errors.WithStack(err)
	}

	if b.Entities == nil {
		b.Entities = Entities{}
	}

	for _, snapshots := range b.Entities {
		for _, s := range snapshots {
			s.canonicalize()
		}
	}

	return &b, nil
}
