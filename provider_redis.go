package loracache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	DefaultRedisPrefix    = "loracache:"
	defaultRedisChunkSize = 8
)

// RedisProvider shares persisted blobs between hosts. Blobs of a full history
// run can be large, so MGet fetches in small concurrent chunks.
type RedisProvider struct {
	client    redis.UniversalClient
	prefix    string
	chunkSize int
}

func NewRedisProvider(client redis.UniversalClient, prefix string) Provider[Blob, BlobID] {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &RedisProvider{
		client:    client,
		prefix:    prefix,
		chunkSize: defaultRedisChunkSize,
	}
}

func (r *RedisProvider) redisKey(key string) string {
	return r.prefix + key
}

func (r *RedisProvider) Get(ctx context.Context, key *Key[BlobID], requiredModelVersion uint16) (*Blob, error) {
	bts, err := r.client.Get(ctx, r.redisKey(key.Key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	item, err := decodeBlob(bts)
	if err != nil {
		return nil, err
	}

	if item.GetCacheModelVersion() != requiredModelVersion {
		return nil, nil
	}

	return item, nil
}

func chunkBy[E any](items []E, chunkSize int) (chunks [][]E) {
	if chunkSize <= 0 {
		return [][]E{items}
	}

	for chunkSize < len(items) {
		items, chunks = items[chunkSize:], append(chunks, items[0:chunkSize:chunkSize])
	}
	return append(chunks, items)
}

type redisChunkResponse struct {
	Error   error
	Missing []*Key[BlobID]
	Results map[*Key[BlobID]]*Blob
}

func (r *RedisProvider) MGet(ctx context.Context, keys []*Key[BlobID], requiredModelVersion uint16) (map[*Key[BlobID]]*Blob, []*Key[BlobID], error) {
	if len(keys) == 0 {
		return map[*Key[BlobID]]*Blob{}, nil, nil
	}

	chunks := chunkBy(keys, r.chunkSize)

	var respChannels []chan redisChunkResponse

	for _, chunk := range chunks {
		chCopy := chunk
		ch := make(chan redisChunkResponse, 1)
		respChannels = append(respChannels, ch)

		go func() {
			defer close(ch)

			strSlice := make([]string, 0, len(chCopy))
			for _, v := range chCopy {
				strSlice = append(strSlice, r.redisKey(v.Key))
			}

			vals, err := r.client.MGet(ctx, strSlice...).Result()
			if err != nil {
				ch <- redisChunkResponse{Error: errors.WithStack(err)}
				return
			}

			var missing []*Key[BlobID]
			results := map[*Key[BlobID]]*Blob{}

			for i, v := range vals {
				var toUnpack []byte

				switch val := v.(type) {
				case []byte:
					toUnpack = val
				case string:
					toUnpack = []byte(val)
				default:
					missing = append(missing, chCopy[i])
					continue
				}

				item, err := decodeBlob(toUnpack)
				if err != nil {
					zerolog.Ctx(ctx).Err(err).Str("key", chCopy[i].Key).Msg("undecodable blob in redis")
					missing = append(missing, chCopy[i])
					continue
				}

				if item.GetCacheModelVersion() != requiredModelVersion {
					missing = append(missing, chCopy[i])
					continue
				}

				results[chCopy[i]] = item
			}

			ch <- redisChunkResponse{
				Missing: missing,
				Results: results,
			}
		}()
	}

	var missing []*Key[BlobID]
	results := map[*Key[BlobID]]*Blob{}

	for i, ch := range respChannels {
		resp := <-ch

		if resp.Error != nil {
			zerolog.Ctx(ctx).Err(resp.Error).Send()
			missing = append(missing, chunks[i]...)
			continue
		}

		missing = append(missing, resp.Missing...)

		for k, v := range resp.Results {
			results[k] = v
		}
	}

	return results, missing, nil
}

func (r *RedisProvider) MSet(ctx context.Context, values map[string]*Blob, ttl time.Duration) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		b, err := encodeBlob(v)
		if err != nil {
			return errors.Wrapf(err, "encode %s", k)
		}
		encoded[k] = b
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, b := range encoded {
			pipe.Set(ctx, r.redisKey(k), b, ttl)
		}

		return nil
	})

	return errors.WithStack(err)
}
