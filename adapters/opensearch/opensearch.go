// Package opensearch indexes unified events into OpenSearch for operator
// search/dashboarding, a secondary write path alongside the primary
// Postgres sink. Grounded on ingest/internal/storage/opensearch.go's
// client construction and bulk-indexer usage, generalized from OCSF
// security-event documents to unified seismic-event documents.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/seismic-fusion/quakefusion/internal/model"
)

// Config holds connection details for the OpenSearch cluster.
type Config struct {
	Addresses     []string
	Username      string
	Password      string
	Index         string
	TLSSkipVerify bool
}

// Indexer bulk-indexes unified events into OpenSearch.
type Indexer struct {
	client *opensearch.Client
	index  string
}

// New constructs an Indexer and verifies connectivity via Info.
func New(cfg Config) (*Indexer, error) {
	httpClient := &http.Client{}
	if cfg.TLSSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("connect to opensearch: %w", err)
	}
	defer info.Body.Close()
	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error status: %s", info.Status())
	}

	index := cfg.Index
	if index == "" {
		index = "quakefusion-unified-events"
	}

	return &Indexer{client: client, index: index}, nil
}

// PublishUnified satisfies internal/pipeline.Publisher by indexing u.
func (idx *Indexer) PublishUnified(ctx context.Context, u model.UnifiedEvent) error {
	return idx.IndexOne(ctx, u)
}

// IndexOne indexes a single unified event document, keyed by its
// unified_event_id so re-indexing the same event is idempotent.
func (idx *Indexer) IndexOne(ctx context.Context, u model.UnifiedEvent) error {
	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal unified event: %w", err)
	}

	res, err := idx.client.Index(
		idx.index,
		bytes.NewReader(body),
		idx.client.Index.WithContext(ctx),
		idx.client.Index.WithDocumentID(u.UnifiedEventID),
	)
	if err != nil {
		return fmt.Errorf("index unified event %s: %w", u.UnifiedEventID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch index error for %s: %s", u.UnifiedEventID, res.Status())
	}
	return nil
}

// IndexBatch bulk-indexes a slice of unified events, matching
// ingest/internal/storage's BulkIndexer usage pattern.
func (idx *Indexer) IndexBatch(ctx context.Context, events []model.UnifiedEvent) (indexed, failed int, errs []string) {
	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client: idx.client,
		Index:  idx.index,
	})
	if err != nil {
		return 0, len(events), []string{fmt.Sprintf("create bulk indexer: %v", err)}
	}

	for _, u := range events {
		data, err := json.Marshal(u)
		if err != nil {
			failed++
			errs = append(errs, fmt.Sprintf("marshal %s: %v", u.UnifiedEventID, err))
			continue
		}

		u := u
		addErr := bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: u.UnifiedEventID,
			Body:       bytes.NewReader(data),
			OnSuccess: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem) {
				indexed++
			},
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				failed++
				if err != nil {
					errs = append(errs, err.Error())
				} else {
					errs = append(errs, fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason))
				}
			},
		})
		if addErr != nil {
			failed++
			errs = append(errs, fmt.Sprintf("add %s to bulk indexer: %v", u.UnifiedEventID, addErr))
		}
	}

	if err := bi.Close(ctx); err != nil {
		errs = append(errs, fmt.Sprintf("bulk indexer close: %v", err))
	}

	return indexed, failed, errs
}
