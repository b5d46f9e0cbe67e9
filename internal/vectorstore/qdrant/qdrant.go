package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"hsindex/internal/vectorstore"
)

// Storage is a Qdrant collection accessed over gRPC.
// Each Storage owns a collection named after Config.Collection plus a
// unique suffix; it is recreated on Init, dropped on Clear and uses cosine
// distance.
type Storage struct {
	client     *qdrant.Client
	collection string
	batchSize  int
	dimension  int
}

type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	// Collection is the name prefix of the per-storage collection.
	Collection     string
	MaxMessageSize int
	BatchSize      int
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "hs_units"
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 256
	}
}

// NewStorage dials Qdrant. The connection is lazy; errors surface on first call.
func NewStorage(cfg Config) (*Storage, error) {
	cfg.applyDefaults()
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Storage{client: client, collection: collectionName(cfg.Collection), batchSize: cfg.BatchSize}, nil
}

func collectionName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Collection returns the name of the collection this storage owns.
func (s *Storage) Collection() string { return s.collection }

func (s *Storage) Metric() vectorstore.Metric { return vectorstore.MetricCosine }

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	if err := s.Clear(ctx); err != nil {
		return err
	}
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection %s: %w", s.collection, err)
	}
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if s.dimension == 0 {
		return vectorstore.ErrNotInitialized
	}
	for start := 0; start < len(points); start += s.batchSize {
		end := min(start+s.batchSize, len(points))
		batch, err := toPoints(points[start:end], s.dimension)
		if err != nil {
			return err
		}
		_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         batch,
		})
		if err != nil {
			return fmt.Errorf("qdrant upsert: %w", err)
		}
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.Match, error) {
	if s.dimension == 0 {
		return nil, vectorstore.ErrNotInitialized
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, want %d", vectorstore.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = 5
	}
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		Params: &qdrant.SearchParams{
			Exact: qdrant.PtrOf(true),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}
	return toMatches(res)
}

// Clear drops the collection if it exists.
func (s *Storage) Clear(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant collection exists: %w", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("qdrant delete collection: %w", err)
	}
	return nil
}

func (s *Storage) Close() error { return s.client.Close() }

func toPoints(points []vectorstore.Point, dimension int) ([]*qdrant.PointStruct, error) {
	out := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		if len(p.Vector) != dimension {
			return nil, fmt.Errorf("%w: slot %d has %d, want %d", vectorstore.ErrDimensionMismatch, p.Slot, len(p.Vector), dimension)
		}
		if p.Slot < 0 {
			return nil, fmt.Errorf("qdrant: negative slot %d", p.Slot)
		}
		out[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(p.Slot)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: map[string]*qdrant.Value{
				"code":   {Kind: &qdrant.Value_StringValue{StringValue: p.Code}},
				"source": {Kind: &qdrant.Value_StringValue{StringValue: p.Source}},
				"text":   {Kind: &qdrant.Value_StringValue{StringValue: p.Text}},
			},
		}
	}
	return out, nil
}

var errUUIDPoint = errors.New("qdrant: point has a uuid id, expected a numeric slot")

func toMatches(points []*qdrant.ScoredPoint) ([]vectorstore.Match, error) {
	out := make([]vectorstore.Match, 0, len(points))
	for _, p := range points {
		if p.GetId().GetUuid() != "" {
			return nil, errUUIDPoint
		}
		out = append(out, vectorstore.Match{Slot: int(p.GetId().GetNum()), Score: p.GetScore()})
	}
	return out, nil
}
