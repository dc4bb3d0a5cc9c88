package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/vectorstore"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Reserved payload keys written next to record metadata.
const (
	payloadItemID    = "item_id"
	payloadNamespace = "namespace"
	payloadPrefix    = "item_prefix"
)

// Config holds Qdrant connection configuration.
type Config struct {
	// URL is the Qdrant server address (e.g., "https://example.qdrant.io:6334").
	URL string

	// CollectionName is the name of the collection holding the vectors.
	CollectionName string

	// APIKey is optional API key for authentication.
	APIKey string

	// Namespace partitions the collection; every read and write is scoped to it.
	Namespace string

	// Dimension is the expected vector size. Zero disables the client-side check.
	Dimension int
}

// pointsAPI is the subset of *qdrant.Client used by Client.
type pointsAPI interface {
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Client implements vectorstore.VectorStore for Qdrant.
type Client struct {
	client         pointsAPI
	collectionName string
	namespace      string
	dimension      int
}

// New creates a new Qdrant client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required: %w", retrieval.ErrInvalidConfig)
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("qdrant collection name is required: %w", retrieval.ErrInvalidConfig)
	}

	// Parse the URL to extract host, port, and scheme
	parsedURL := cfg.URL
	if !strings.HasPrefix(parsedURL, "http://") && !strings.HasPrefix(parsedURL, "https://") {
		parsedURL = "https://" + parsedURL
	}

	u, err := url.Parse(parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	host := u.Hostname()
	port := 6334 // default gRPC port
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return newWithAPI(qdrantClient, cfg), nil
}

func newWithAPI(api pointsAPI, cfg Config) *Client {
	return &Client{
		client:         api,
		collectionName: cfg.CollectionName,
		namespace:      cfg.Namespace,
		dimension:      cfg.Dimension,
	}
}

// Upsert implements vectorstore.VectorStore.
func (c *Client) Upsert(ctx context.Context, records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := vectorstore.CheckDimensions(records, c.dimension); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		payload, err := c.buildPayload(r)
		if err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      c.pointID(r.ID),
			Vectors: qdrant.NewVectorsDense(r.Values),
			Payload: payload,
		})
	}

	wait := true
	if _, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collectionName,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return retrieval.NewIndexError("upsert", fmt.Errorf("qdrant upsert failed: %w", err))
	}
	return nil
}

// Fetch implements vectorstore.VectorStore.
// Returns nil if the record is not found (not an error).
func (c *Client) Fetch(ctx context.Context, id string) (*vectorstore.Record, error) {
	points, err := c.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: c.collectionName,
		Ids:            []*qdrant.PointId{c.pointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, retrieval.NewIndexError("fetch", fmt.Errorf("qdrant get failed: %w", err))
	}

	for _, point := range points {
		if point == nil {
			continue
		}
		r := vectorstore.Record{ID: id, Metadata: c.extractMetadata(point.Payload)}
		if v := point.GetVectors().GetVector(); v != nil {
			r.Values = denseValues(v)
		}
		return &r, nil
	}
	return nil, nil
}

// Query implements vectorstore.VectorStore.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, filter vectorstore.Filter) ([]vectorstore.SearchResult, error) {
	if c.dimension > 0 && len(vector) != c.dimension {
		return nil, retrieval.NewValidationError("vector",
			fmt.Sprintf("query dimension %d does not match namespace dimension %d", len(vector), c.dimension))
	}
	if topK <= 0 {
		return []vectorstore.SearchResult{}, nil
	}

	qdrantFilter, err := buildQdrantFilter(c.namespace, filter)
	if err != nil {
		return nil, err
	}

	limit := uint64(topK)
	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         qdrantFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, retrieval.NewIndexError("query", fmt.Errorf("qdrant search failed: %w", err))
	}

	results := make([]vectorstore.SearchResult, 0, len(points))
	for _, point := range points {
		if point == nil {
			continue
		}
		id := point.Payload[payloadItemID].GetStringValue()
		if id == "" {
			id = point.GetId().GetUuid()
		}
		results = append(results, vectorstore.SearchResult{
			ID:       id,
			Score:    point.Score,
			Metadata: c.extractMetadata(point.Payload),
		})
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Close implements vectorstore.VectorStore.
func (c *Client) Close() error {
	return c.client.Close()
}

// pointID derives a stable UUID for a namespaced record id, since Qdrant
// only accepts UUID or integer point ids.
func (c *Client) pointID(id string) *qdrant.PointId {
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.namespace+"/"+id))
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: u.String()}}
}

func (c *Client) buildPayload(r vectorstore.Record) (map[string]*qdrant.Value, error) {
	payload := make(map[string]*qdrant.Value, len(r.Metadata)+3)
	for k, v := range r.Metadata {
		if isReserved(k) {
			return nil, retrieval.NewValidationError("metadata."+k, "reserved payload key")
		}
		val, err := toValue(v)
		if err != nil {
			return nil, retrieval.NewValidationError("metadata."+k, err.Error())
		}
		payload[k] = val
	}
	payload[payloadItemID] = stringValue(r.ID)
	payload[payloadNamespace] = stringValue(c.namespace)
	payload[payloadPrefix] = stringValue(idPrefix(r.ID))
	return payload, nil
}

func (c *Client) extractMetadata(payload map[string]*qdrant.Value) map[string]any {
	metadata := make(map[string]any, len(payload))
	for k, v := range payload {
		if isReserved(k) {
			continue
		}
		metadata[k] = extractValue(v)
	}
	return metadata
}

// buildQdrantFilter converts a vectorstore.Filter to a Qdrant Filter scoped to the namespace.
func buildQdrantFilter(namespace string, filter vectorstore.Filter) (*qdrant.Filter, error) {
	out := &qdrant.Filter{
		Must: []*qdrant.Condition{keywordCondition(payloadNamespace, namespace)},
	}

	for _, cond := range filter.Must {
		key := cond.Field
		if key == vectorstore.IDField {
			key = payloadItemID
		}

		switch cond.Op {
		case vectorstore.OpIn:
			out.Must = append(out.Must, keywordsCondition(key, cond.Values))
		case vectorstore.OpNe:
			out.MustNot = append(out.MustNot, keywordCondition(key, cond.Values[0]))
		case vectorstore.OpGte:
			n := cond.Number
			out.Must = append(out.Must, rangeCondition(key, &qdrant.Range{Gte: &n}))
		case vectorstore.OpLte:
			n := cond.Number
			out.Must = append(out.Must, rangeCondition(key, &qdrant.Range{Lte: &n}))
		case vectorstore.OpPrefix:
			prefix := cond.Values[0]
			if cond.Field != vectorstore.IDField || idPrefix(prefix) != prefix || prefix == "" {
				return nil, retrieval.NewValidationError("filter."+cond.Field,
					fmt.Sprintf("qdrant supports only kind prefixes on id, got %q", prefix))
			}
			out.Must = append(out.Must, keywordCondition(payloadPrefix, prefix))
		default:
			return nil, retrieval.NewValidationError("filter."+cond.Field, fmt.Sprintf("unsupported operator %q", cond.Op))
		}
	}

	return out, nil
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func keywordsCondition(key string, values []string) *qdrant.Condition {
	if len(values) == 1 {
		return keywordCondition(key, values[0])
	}
	keywords := make([]string, len(values))
	copy(keywords, values)
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keywords{
						Keywords: &qdrant.RepeatedStrings{Strings: keywords},
					},
				},
			},
		},
	}
}

func rangeCondition(key string, r *qdrant.Range) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Range: r,
			},
		},
	}
}

// idPrefix returns the kind prefix of an id, up to and including the first underscore.
func idPrefix(id string) string {
	if i := strings.IndexByte(id, '_'); i >= 0 {
		return id[:i+1]
	}
	return ""
}

// denseValues reads the dense vector, falling back to the legacy data field
// older servers fill.
func denseValues(v *qdrant.VectorOutput) []float32 {
	if d := v.GetDense().GetData(); len(d) > 0 {
		return d
	}
	return v.GetData()
}

func isReserved(key string) bool {
	return key == payloadItemID || key == payloadNamespace || key == payloadPrefix
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

// toValue converts a metadata value to a Qdrant Value.
func toValue(v any) (*qdrant.Value, error) {
	switch val := v.(type) {
	case nil:
		return &qdrant.Value{Kind: &qdrant.Value_NullValue{NullValue: qdrant.NullValue_NULL_VALUE}}, nil
	case string:
		return stringValue(val), nil
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}, nil
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}, nil
	case int32:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}, nil
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}, nil
	case float32:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(val)}}, nil
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}, nil
	case []string:
		values := make([]*qdrant.Value, len(val))
		for i, s := range val {
			values[i] = stringValue(s)
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}, nil
	default:
		return nil, fmt.Errorf("unsupported metadata type %T", v)
	}
}

// extractValue extracts a Go value from a Qdrant Value.
// Lists of strings come back as []string.
func extractValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}

	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_ListValue:
		items := val.ListValue.GetValues()
		strs := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.GetKind().(*qdrant.Value_StringValue)
			if !ok {
				generic := make([]any, len(items))
				for i, it := range items {
					generic[i] = extractValue(it)
				}
				return generic
			}
			strs = append(strs, s.StringValue)
		}
		return strs
	default:
		return nil
	}
}

// Compile-time check that Client implements VectorStore.
var _ vectorstore.VectorStore = (*Client)(nil)
