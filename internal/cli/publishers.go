package cli

import (
	"context"

	natspublish "github.com/seismic-fusion/quakefusion/adapters/nats"
	"github.com/seismic-fusion/quakefusion/adapters/opensearch"
	"github.com/seismic-fusion/quakefusion/internal/config"
	"github.com/seismic-fusion/quakefusion/internal/logging"
	"github.com/seismic-fusion/quakefusion/internal/pipeline"
)

// buildPublishers wires the optional secondary fan-out targets named in
// cfg: an OpenSearch index when opensearch.addresses is set, a NATS
// publisher when nats.url is set. Either, both, or neither may be active;
// a configured-but-unreachable target is logged and skipped rather than
// failing the whole process, since these are best-effort secondary paths.
func buildPublishers(ctx context.Context, cfg *config.Config, logger *logging.Logger) []pipeline.Publisher {
	var publishers []pipeline.Publisher

	if len(cfg.OpenSearch.Addresses) > 0 {
		idx, err := opensearch.New(opensearch.Config{
			Addresses: cfg.OpenSearch.Addresses,
			Index:     cfg.OpenSearch.Index,
		})
		if err != nil {
			logger.WarnContext(ctx, "opensearch publisher unavailable, skipping", "error", err)
		} else {
			publishers = append(publishers, idx)
		}
	}

	if cfg.NATS.URL != "" {
		pub, err := natspublish.New(cfg.NATS.URL)
		if err != nil {
			logger.WarnContext(ctx, "nats publisher unavailable, skipping", "error", err)
		} else {
			publishers = append(publishers, pub)
		}
	}

	return publishers
}
