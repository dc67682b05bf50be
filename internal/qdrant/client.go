// Package qdrant caches text embeddings in a Qdrant collection so repeated
// abstracts are embedded once per model.
package qdrant

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
)

// Config holds the configuration for connecting to a Qdrant instance.
type Config struct {
	// Address is the host:port of the Qdrant gRPC endpoint (e.g. "localhost:6334").
	Address string
	// APIKey is sent with every request when set.
	APIKey string
	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool
	// CollectionName is the Qdrant collection to use (e.g. "abstract_embeddings").
	CollectionName string
	// VectorSize is the dimensionality of the cached vectors (e.g. 384 for all-minilm).
	VectorSize uint64
}

// Validate checks that all required Config fields are set.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("qdrant config: address is required")
	}
	if c.CollectionName == "" {
		return fmt.Errorf("qdrant config: collection name is required")
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("qdrant config: vector size must be > 0")
	}
	return nil
}

// Point is one cached embedding.
type Point struct {
	// ID is the point id, derived from the embedded text.
	ID uuid.UUID
	// Vector is the embedding.
	Vector []float32
	// Model is the embedding model that produced Vector.
	Model string
}

// VectorStore is the subset of vector store operations the embedding cache needs.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not already exist.
	EnsureCollection(ctx context.Context) error
	// Get returns the stored vectors for the ids that exist.
	Get(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]float32, error)
	// Upsert writes points, replacing any with the same id.
	Upsert(ctx context.Context, points []Point) error
	// Close releases the underlying gRPC connection.
	Close() error
}

// pointsAPI is the part of the Qdrant client used here.
type pointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *pb.CreateCollection) error
	Get(ctx context.Context, request *pb.GetPoints) ([]*pb.RetrievedPoint, error)
	Upsert(ctx context.Context, request *pb.UpsertPoints) (*pb.UpdateResult, error)
	HealthCheck(ctx context.Context) (*pb.HealthCheckReply, error)
	Close() error
}

// Compile-time check that Client implements VectorStore.
var _ VectorStore = (*Client)(nil)

// Client is a Qdrant-backed VectorStore.
type Client struct {
	client         pointsAPI
	collectionName string
	vectorSize     uint64
}

// NewClient creates a new Qdrant client for the configured gRPC address.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	host, port, err := parseAddress(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("qdrant: invalid address %q: %w", cfg.Address, err)
	}

	qdrantClient, err := pb.NewClient(&pb.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return newClient(qdrantClient, cfg), nil
}

func newClient(api pointsAPI, cfg Config) *Client {
	return &Client{
		client:         api,
		collectionName: cfg.CollectionName,
		vectorSize:     cfg.VectorSize,
	}
}

// EnsureCollection checks whether the configured collection exists and
// creates it with Euclidean distance if it does not.
func (c *Client) EnsureCollection(ctx context.Context) error {
	exists, err := c.client.CollectionExists(ctx, c.collectionName)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = c.client.CreateCollection(ctx, &pb.CreateCollection{
		CollectionName: c.collectionName,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     c.vectorSize,
			Distance: pb.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", c.collectionName, err)
	}

	return nil
}

// Get fetches the vectors stored under ids. Missing ids are absent from the
// result; vectors of the wrong size are skipped.
func (c *Client) Get(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]float32, error) {
	found := make(map[uuid.UUID][]float32, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pb.NewIDUUID(id.String())
	}

	points, err := c.client.Get(ctx, &pb.GetPoints{
		CollectionName: c.collectionName,
		Ids:            pointIDs,
		WithVectors:    pb.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to get %d points: %w", len(ids), err)
	}

	for _, p := range points {
		uuidStr := p.GetId().GetUuid()
		if uuidStr == "" {
			continue
		}
		id, err := uuid.Parse(uuidStr)
		if err != nil {
			return nil, fmt.Errorf("qdrant: invalid UUID in point %q: %w", uuidStr, err)
		}
		vector := denseVector(p)
		if uint64(len(vector)) != c.vectorSize {
			continue
		}
		found[id] = vector
	}

	return found, nil
}

// Upsert writes points in one request and waits for them to be applied.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		if uint64(len(p.Vector)) != c.vectorSize {
			return fmt.Errorf("qdrant: point %s has %d dimensions, collection expects %d", p.ID, len(p.Vector), c.vectorSize)
		}
		structs[i] = &pb.PointStruct{
			Id:      pb.NewIDUUID(p.ID.String()),
			Vectors: pb.NewVectors(p.Vector...),
			Payload: pb.NewValueMap(map[string]any{"model": p.Model}),
		}
	}

	wait := true
	_, err := c.client.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: c.collectionName,
		Wait:           &wait,
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to upsert %d points: %w", len(points), err)
	}

	return nil
}

// Ping checks that the server answers a health check.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close releases the gRPC connection to Qdrant.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func denseVector(p *pb.RetrievedPoint) []float32 {
	v := p.GetVectors().GetVector()
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	return v.GetData()
}

// parseAddress splits "host:port" and validates the port.
func parseAddress(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	if portStr == "" {
		return "", 0, fmt.Errorf("empty port")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	if port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("port %d out of range", port)
	}

	return host, port, nil
}
