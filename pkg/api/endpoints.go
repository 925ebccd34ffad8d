package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/taxomigrate/pkg/kit"
	"github.com/hazyhaar/taxomigrate/pkg/taxonomy"
)

// MaxBatch caps the number of labels per batch request.
const MaxBatch = 100

// Shared request/response types used by both HTTP and MCP transports.

type resolveReq struct {
	Label string
}

type resolveBatchReq struct {
	Labels []string
}

type batchResponse struct {
	Results []taxonomy.Resolution `json:"results"`
}

type taxonomyResponse struct {
	ID         string              `json:"id"`
	Version    string              `json:"version"`
	Fallback   string              `json:"fallback"`
	Threshold  float64             `json:"threshold"`
	Categories []taxonomy.Category `json:"categories"`
	Labels     []string            `json:"labels"`
}

// endpoints holds the three core kit.Endpoints backed by the resolver.
type endpoints struct {
	resolve      kit.Endpoint
	resolveBatch kit.Endpoint
	listTaxonomy kit.Endpoint
}

func newEndpoints(res *taxonomy.Resolver, logger *slog.Logger) endpoints {
	if logger == nil {
		logger = slog.Default()
	}
	wrap := func(name string, ep kit.Endpoint) kit.Endpoint {
		return kit.Chain(kit.RequestID(), kit.Logging(logger, name))(ep)
	}
	return endpoints{
		resolve:      wrap("resolve", resolveEndpoint(res)),
		resolveBatch: wrap("resolve_batch", resolveBatchEndpoint(res)),
		listTaxonomy: wrap("list_taxonomy", listTaxonomyEndpoint(res)),
	}
}

func resolveEndpoint(res *taxonomy.Resolver) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*resolveReq)
		return res.Resolve(req.Label), nil
	}
}

func resolveBatchEndpoint(res *taxonomy.Resolver) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*resolveBatchReq)
		if len(req.Labels) == 0 {
			return nil, fmt.Errorf("labels array is empty")
		}
		if len(req.Labels) > MaxBatch {
			return nil, fmt.Errorf("too many labels (max %d, got %d)", MaxBatch, len(req.Labels))
		}
		results := make([]taxonomy.Resolution, len(req.Labels))
		for i, label := range req.Labels {
			results[i] = res.Resolve(label)
		}
		return batchResponse{Results: results}, nil
	}
}

func listTaxonomyEndpoint(res *taxonomy.Resolver) kit.Endpoint {
	return func(_ context.Context, _ any) (any, error) {
		cat := res.Catalog()
		labels := cat.Labels()
		texts := make([]string, len(labels))
		for i, l := range labels {
			texts[i] = l.Text
		}
		return taxonomyResponse{
			ID:         cat.ID,
			Version:    cat.Version,
			Fallback:   cat.Fallback().Label(),
			Threshold:  res.Threshold(),
			Categories: cat.Categories(),
			Labels:     texts,
		}, nil
	}
}
