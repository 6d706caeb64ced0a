package search

import (
	"context"
	"fmt"
	"time"

	pkglogger "github.com/dev7ch/api/pkg/logger"
)

// Indexer mirrors item mutations into per-collection indices. All
// methods are nil-safe and asynchronous; indexing failures are logged
// and never surface to the request that caused them.
type Indexer struct {
	client *Client
	prefix string
}

// NewIndexer creates an indexer over the given client. A nil client
// yields a disabled indexer.
func NewIndexer(client *Client, indexPrefix string) *Indexer {
	if indexPrefix == "" {
		indexPrefix = "items"
	}
	return &Indexer{client: client, prefix: indexPrefix}
}

func (ix *Indexer) enabled() bool {
	return ix != nil && ix.client != nil
}

func (ix *Indexer) index(collection string) string {
	return ix.prefix + "-" + collection
}

// IndexItem mirrors one record after a create or update
func (ix *Indexer) IndexItem(collection string, id interface{}, record map[string]interface{}) {
	if !ix.enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ix.client.IndexDocument(ctx, ix.index(collection), fmt.Sprint(id), record); err != nil {
			pkglogger.GetLogger().Warn().
				Err(err).
				Str("collection", collection).
				Msg("search index update failed")
		}
	}()
}

// RemoveItem drops one record after a delete
func (ix *Indexer) RemoveItem(collection string, id interface{}) {
	if !ix.enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ix.client.DeleteDocument(ctx, ix.index(collection), fmt.Sprint(id)); err != nil {
			pkglogger.GetLogger().Warn().
				Err(err).
				Str("collection", collection).
				Msg("search index delete failed")
		}
	}()
}

// RemoveCollection drops the whole index when a collection is deleted
func (ix *Indexer) RemoveCollection(collection string) {
	if !ix.enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ix.client.DeleteIndex(ctx, ix.index(collection)); err != nil {
			pkglogger.GetLogger().Warn().
				Err(err).
				Str("collection", collection).
				Msg("search index drop failed")
		}
	}()
}
