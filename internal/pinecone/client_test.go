package pinecone

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"brand-rag/internal/config"
	"brand-rag/internal/models"
)

type fakeConn struct {
	upserted  []*pinecone.Vector
	upsertErr error
	query     *pinecone.QueryByVectorValuesRequest
	matches   []*pinecone.ScoredVector
	stats     *pinecone.DescribeIndexStatsResponse
	closed    bool
}

func (f *fakeConn) UpsertVectors(_ context.Context, in []*pinecone.Vector) (uint32, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, in...)
	return uint32(len(in)), nil
}

func (f *fakeConn) QueryByVectorValues(_ context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	f.query = in
	return &pinecone.QueryVectorsResponse{Matches: f.matches}, nil
}

func (f *fakeConn) DescribeIndexStats(context.Context) (*pinecone.DescribeIndexStatsResponse, error) {
	return f.stats, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func metadataStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), &config.PineconeConfig{}, &config.IndexConfig{Name: "x"}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewResolvesHost(t *testing.T) {
	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/indexes/spyder-brand", r.URL.Path)
		assert.Equal(t, "pc-test", r.Header.Get("Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "spyder-brand",
			"dimension": 1536,
			"metric": "cosine",
			"host": "spyder-brand-abc123.svc.aped-4627-b74a.pinecone.io",
			"vector_type": "dense",
			"deletion_protection": "disabled",
			"spec": {"serverless": {"cloud": "aws", "region": "us-east-1"}},
			"status": {"ready": true, "state": "Ready"}
		}`))
	}))
	defer control.Close()

	c, err := New(context.Background(),
		&config.PineconeConfig{APIKey: "pc-test", ControllerURL: control.URL},
		&config.IndexConfig{Name: "spyder-brand", Namespace: "brand"},
		control.Client())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "spyder-brand-abc123.svc.aped-4627-b74a.pinecone.io", c.host)
	assert.Equal(t, "brand", c.namespace)
}

func TestNewUsesConfiguredHost(t *testing.T) {
	c, err := New(context.Background(),
		&config.PineconeConfig{APIKey: "pc-test", Host: "https://brand-xyz.svc.pinecone.io/"},
		&config.IndexConfig{Name: "spyder-brand"}, nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "brand-xyz.svc.pinecone.io", c.host)
}

func TestUpsert(t *testing.T) {
	conn := &fakeConn{}
	c := &Client{conn: conn}

	err := c.Upsert(context.Background(), []models.VectorRecord{
		{ID: "a", Values: []float32{0.1, 0.2}, Metadata: models.Metadata{Source: "a.pdf", DocType: "brand_guidelines", ChunkIndex: 0, PageNum: 3}},
		{ID: "b", Values: []float32{0.3, 0.4}, Metadata: models.Metadata{Source: "playbook.md", Title: "Brand Voice"}},
	})
	require.NoError(t, err)

	require.Len(t, conn.upserted, 2)
	first := conn.upserted[0]
	assert.Equal(t, "a", first.Id)
	require.NotNil(t, first.Values)
	assert.Equal(t, []float32{0.1, 0.2}, *first.Values)

	md := first.Metadata.AsMap()
	assert.Equal(t, "brand_guidelines", md["doc_type"])
	assert.EqualValues(t, 3, md["page_num"])
	assert.NotContains(t, md, "title")
	assert.Equal(t, "Brand Voice", conn.upserted[1].Metadata.AsMap()["title"])
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	conn := &fakeConn{upsertErr: errors.New("should not be called")}
	assert.NoError(t, (&Client{conn: conn}).Upsert(context.Background(), nil))
}

func TestUpsertWrapsError(t *testing.T) {
	boom := errors.New("rpc error: code = ResourceExhausted desc = quota exceeded")
	c := &Client{conn: &fakeConn{upsertErr: boom}}

	err := c.Upsert(context.Background(), []models.VectorRecord{{ID: "a", Values: []float32{1}}})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "failed to upsert 1 vectors")
}

func TestQuery(t *testing.T) {
	conn := &fakeConn{matches: []*pinecone.ScoredVector{
		{Score: 0.91, Vector: &pinecone.Vector{Id: "x", Metadata: metadataStruct(t, map[string]any{
			"source": "a.pdf", "doc_type": "product_info", "section": "SPECS", "page_num": 2, "chunk_index": 4, "text": "calibrate",
		})}},
		{Score: 0.52, Vector: &pinecone.Vector{Id: "y", Metadata: metadataStruct(t, map[string]any{"source": "b.pdf"})}},
	}}
	c := &Client{conn: conn}

	results, err := c.Query(context.Background(), []float32{1, 0}, 3, models.Filter{"doc_type": "product_info"})
	require.NoError(t, err)

	require.NotNil(t, conn.query)
	assert.EqualValues(t, 3, conn.query.TopK)
	assert.True(t, conn.query.IncludeMetadata)
	assert.Equal(t, []float32{1, 0}, conn.query.Vector)
	assert.Equal(t, map[string]any{"doc_type": map[string]any{"$eq": "product_info"}}, conn.query.MetadataFilter.AsMap())

	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].ID)
	assert.InDelta(t, 0.91, results[0].Score, 1e-6)
	assert.Equal(t, models.Metadata{Source: "a.pdf", DocType: "product_info", Section: "SPECS", PageNum: 2, ChunkIndex: 4, Text: "calibrate"}, results[0].Metadata)
	assert.Equal(t, "y", results[1].ID)
}

func TestQueryWithoutFilter(t *testing.T) {
	conn := &fakeConn{}
	_, err := (&Client{conn: conn}).Query(context.Background(), []float32{1}, 1, nil)
	require.NoError(t, err)
	assert.Nil(t, conn.query.MetadataFilter)
}

func TestQueryRejectsBadTopK(t *testing.T) {
	_, err := (&Client{conn: &fakeConn{}}).Query(context.Background(), []float32{1}, 0, nil)
	assert.Error(t, err)
}

func TestDescribeStats(t *testing.T) {
	dim := uint32(1536)
	conn := &fakeConn{stats: &pinecone.DescribeIndexStatsResponse{
		Dimension:        &dim,
		TotalVectorCount: 42,
		Namespaces: map[string]*pinecone.NamespaceSummary{
			"brand": {VectorCount: 40},
			"":      {VectorCount: 2},
		},
	}}
	stats, err := (&Client{conn: conn}).DescribeStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.IndexStats{Dimension: 1536, TotalVectorCount: 42, Namespaces: map[string]int{"brand": 40, "": 2}}, stats)
}

func TestClose(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, (&Client{conn: conn}).Close())
	assert.True(t, conn.closed)
}
