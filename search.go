package vecflat

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vecflat/index"
)

// SearchResult is one ranked match: the vector ID and its inner product with
// the query.
type SearchResult = index.SearchResult

type searchOptions struct {
	filter index.Filter
}

// SearchOption configures Search and SearchBatch.
type SearchOption func(*searchOptions)

// WithFilter restricts results to the IDs in allow. A nil bitmap disables
// filtering; an empty bitmap matches nothing.
func WithFilter(allow *roaring.Bitmap) SearchOption {
	return func(o *searchOptions) {
		if allow == nil {
			o.filter = nil
			return
		}
		o.filter = func(id int64) bool {
			return id >= 0 && id <= math.MaxUint32 && allow.Contains(uint32(id))
		}
	}
}

// WithFilterFunc restricts results to IDs for which fn returns true.
// fn may be called concurrently by SearchBatch.
func WithFilterFunc(fn func(id int64) bool) SearchOption {
	return func(o *searchOptions) {
		o.filter = fn
	}
}

func applySearchOptions(optFns []SearchOption) searchOptions {
	var o searchOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
