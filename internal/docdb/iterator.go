package docdb

import (
	"context"
	"fmt"
)

// PageFunc fetches the page that starts at continuation.
type PageFunc func(ctx context.Context, continuation string) (*FeedResponse, error)

// Iterator is a lazy single-pass sequence over a paged feed. Pages are only
// requested when the buffered documents are exhausted.
type Iterator struct {
	fetch        PageFunc
	buf          []Document
	cur          Document
	continuation string
	started      bool
	done         bool
	err          error
	charge       float64
	pages        int
}

func NewIterator(fetch PageFunc) *Iterator {
	return &Iterator{fetch: fetch}
}

// ReadFeed iterates every document of a collection.
func ReadFeed(c Client, coll CollectionLink, opts *FeedOptions) *Iterator {
	base := Feed(opts)
	return NewIterator(func(ctx context.Context, continuation string) (*FeedResponse, error) {
		o := base
		o.Continuation = continuation
		return c.ReadDocuments(ctx, coll, &o)
	})
}

// QueryFeed iterates every document matching q.
func QueryFeed(c Client, coll CollectionLink, q Query, opts *FeedOptions) *Iterator {
	base := Feed(opts)
	return NewIterator(func(ctx context.Context, continuation string) (*FeedResponse, error) {
		o := base
		o.Continuation = continuation
		return c.QueryDocuments(ctx, coll, q, &o)
	})
}

func (it *Iterator) Next(ctx context.Context) bool {
	for len(it.buf) == 0 {
		if it.err != nil || it.done {
			return false
		}
		if it.started && it.continuation == "" {
			it.done = true
			return false
		}
		prev := it.continuation
		resp, err := it.fetch(ctx, it.continuation)
		if err != nil {
			it.err = err
			return false
		}
		it.started = true
		it.pages++
		it.charge += resp.RequestCharge
		it.buf = resp.Documents
		it.continuation = resp.Continuation
		if it.continuation != "" && it.continuation == prev {
			it.err = fmt.Errorf("feed continuation did not advance: %q", prev)
			return false
		}
	}
	it.cur = it.buf[0]
	it.buf = it.buf[1:]
	return true
}

func (it *Iterator) Document() Document {
	return it.cur
}

func (it *Iterator) Err() error {
	return it.err
}

// RequestCharge is the total charge of the pages fetched so far.
func (it *Iterator) RequestCharge() float64 {
	return it.charge
}

func (it *Iterator) Pages() int {
	return it.pages
}

// All drains the iterator.
func (it *Iterator) All(ctx context.Context) ([]Document, error) {
	var docs []Document
	for it.Next(ctx) {
		docs = append(docs, it.Document())
	}
	return docs, it.Err()
}
