// Package qdrant provides a similarity-search Store backed by a Qdrant
// collection.
package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/dsilvera/ragpipe/pkg/search"
)

// Store implements search.Store using the Qdrant gRPC client.
//
// The collection is expected to hold one point per document with the
// document text under the "content" payload key and remaining metadata as
// flat payload fields. Scores use cosine distance, so Qdrant returns them
// already normalized to [0,1] for normalized embeddings.
type Store struct {
	client     *qdrant.Client
	collection string
	dimensions int
}

// Config is the configuration for the Qdrant store.
type Config struct {
	// Host is the Qdrant host (default "localhost").
	Host string

	// Port is the Qdrant gRPC port (default 6334).
	Port int

	// APIKey is the optional API key.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Collection is the collection name holding the knowledge base.
	Collection string

	// Dimensions is the embedding dimension used when creating the
	// collection.
	Dimensions int
}

// NewStore connects to Qdrant and ensures the configured collection exists.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: connect: %w", err)
	}

	store := &Store{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
	}

	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the collection with cosine distance when absent.
func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant: collection check: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection: %w", err)
	}
	return nil
}

// Match performs vector similarity search against the collection.
//
// The score threshold and result cap are pushed down to Qdrant; results come
// back ordered by similarity descending.
func (s *Store) Match(ctx context.Context, vector []float64, threshold float64, limit int) ([]search.Result, error) {
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(narrow(vector)...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(float32(threshold)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query: %w", err)
	}

	results := make([]search.Result, 0, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		content, _ := payloadValue(payload["content"]).(string)

		metadata := make(map[string]interface{}, len(payload))
		for key, value := range payload {
			if key == "content" {
				continue
			}
			metadata[key] = payloadValue(value)
		}

		results = append(results, search.Result{
			ID:         pointID(point.GetId()),
			Content:    content,
			Metadata:   metadata,
			Similarity: float64(point.GetScore()),
		})
	}

	return results, nil
}

// Upsert writes documents into the collection, content under the "content"
// payload key and metadata as flat payload fields.
func (s *Store) Upsert(ctx context.Context, docs []search.Document) error {
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		payload := map[string]interface{}{
			"content": doc.Content,
		}
		for key, value := range doc.Metadata {
			payload[key] = value
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(doc.ID),
			Vectors: qdrant.NewVectors(narrow(doc.Embedding)...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert: %w", err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// pointID renders a point identifier as a string regardless of its kind.
func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// payloadValue converts a Qdrant payload value to a plain Go value.
func payloadValue(v *qdrant.Value) interface{} {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]interface{}, len(values))
		for i, item := range values {
			out[i] = payloadValue(item)
		}
		return out
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()
		out := make(map[string]interface{}, len(fields))
		for key, item := range fields {
			out[key] = payloadValue(item)
		}
		return out
	default:
		return nil
	}
}

// narrow converts a float64 vector to the float32 wire representation.
func narrow(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
