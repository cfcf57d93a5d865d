package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField stores the caller-supplied point id when it isn't itself a
// UUID, since Qdrant only accepts UUIDs or positive integers as point ids.
const payloadIDField = "_original_id"

// QdrantIndex is a VectorIndex backed by Qdrant's gRPC API. Grounded on the
// teacher's qdrant_vector.go, generalized from one fixed collection to
// per-Collection named indexes tracked in ensured.
type QdrantIndex struct {
	client *qdrant.Client

	mu      sync.Mutex
	ensured map[string]bool
}

// NewQdrantIndex dials Qdrant at dsn (host[:port], default port 6334;
// "?api_key=..." optional query param for auth).
func NewQdrantIndex(dsn string) (*QdrantIndex, error) {
	if !strings.Contains(dsn, "://") {
		dsn = "http://" + dsn
	}
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsedURL.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsedURL.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &QdrantIndex{client: client, ensured: make(map[string]bool)}, nil
}

func (q *QdrantIndex) EnsureCollection(ctx context.Context, collection string, dim int, metric string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ensured[collection] {
		return nil
	}

	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		q.ensured[collection] = true
		return nil
	}
	if dim <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}

	var distance qdrant.Distance
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: distance,
		}),
	}); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	q.ensured[collection] = true
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, collection string, points []Point) error {
	pbPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		uuidStr := p.ID
		if _, err := uuid.Parse(p.ID); err != nil {
			uuidStr = uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.ID)).String()
		}
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		if uuidStr != p.ID {
			payload[payloadIDField] = p.ID
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		pbPoints = append(pbPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         pbPoints,
	})
	return err
}

func (q *QdrantIndex) Query(ctx context.Context, collection string, vector []float32, k int, filter Filter) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	var queryFilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for key, val := range filter {
			must = append(must, qdrant.NewMatch(key, val))
		}
		queryFilter = &qdrant.Filter{Must: must}
	}

	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		id := hit.Id.GetUuid()
		if id == "" {
			id = hit.Id.String()
		}
		payload := make(map[string]any)
		for key, v := range hit.Payload {
			if key == payloadIDField {
				id = v.GetStringValue()
				continue
			}
			payload[key] = v.GetStringValue()
		}
		results = append(results, Result{ID: id, Score: float64(hit.Score), Payload: payload})
	}
	return results, nil
}

// Close releases the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
