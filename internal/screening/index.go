package screening

import (
	"context"
	"fmt"

	"github.com/ananyasub/argus/internal/infra/redis"
)

// BandIndex is the corpus-wide LSH index over Redis sets. One set per
// (band, hash) bucket; documents whose signatures agree on any full band
// land in the same bucket.
type BandIndex struct {
	client *redis.Client
}

func NewBandIndex(client *redis.Client) *BandIndex {
	return &BandIndex{client: client}
}

func bandKey(band int, hash uint32) string {
	return fmt.Sprintf("lsh:band:%d:%d", band, hash)
}

// Add registers a document under each of its band buckets.
func (ix *BandIndex) Add(ctx context.Context, documentID string, bandHashes []uint32) error {
	pipe := ix.client.Pipeline()
	for band, hash := range bandHashes {
		pipe.SAdd(ctx, bandKey(band, hash), documentID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index band hashes: %w", err)
	}
	return nil
}

// Candidates returns the IDs of all documents sharing at least one band
// bucket with the given band hashes, excluding the document itself.
func (ix *BandIndex) Candidates(ctx context.Context, documentID string, bandHashes []uint32) ([]string, error) {
	seen := make(map[string]bool)
	for band, hash := range bandHashes {
		members, err := ix.client.SMembers(ctx, bandKey(band, hash)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read band bucket: %w", err)
		}
		for _, id := range members {
			if id != documentID {
				seen[id] = true
			}
		}
	}

	candidates := make([]string, 0, len(seen))
	for id := range seen {
		candidates = append(candidates, id)
	}
	return candidates, nil
}
