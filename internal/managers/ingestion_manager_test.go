package managers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdeck/helpdeck/internal/domain"
	"github.com/helpdeck/helpdeck/internal/ingestion"
	"github.com/helpdeck/helpdeck/internal/ingestion/extract"
	"github.com/helpdeck/helpdeck/internal/storage/memory"
	"github.com/helpdeck/helpdeck/internal/vector"
)

type ingestionFixture struct {
	manager    domain.IngestionManager
	documents  *memory.DocumentStore
	activities *memory.ActivityStore
	vectors    *vector.MemoryStore
	blobs      *stubBlobStore
	embedder   *stubEmbedder
}

func newIngestionFixture(t *testing.T) *ingestionFixture {
	t.Helper()

	f := &ingestionFixture{
		documents:  memory.NewDocumentStore(),
		activities: memory.NewActivityStore(),
		vectors:    vector.NewMemoryStore(),
		blobs:      newStubBlobStore(),
		embedder:   newStubEmbedder(4),
	}

	f.manager = NewIngestionManager(IngestionManagerDependencies{
		DocumentStore:  f.documents,
		ActivityStore:  f.activities,
		VectorStore:    f.vectors,
		BlobStore:      f.blobs,
		Embedder:       f.embedder,
		Fetcher:        ingestion.NewFetcher(5*time.Second, 1<<20),
		Extractors:     extract.NewRegistry(),
		Chunker:        ingestion.NewChunker(ingestion.WithChunkSize(200), ingestion.WithChunkOverlap(20)),
		SlotsPerSite:   2,
		EmbedBatchSize: 8,
	})

	return f
}

func pageServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestIngestFile(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	content := strings.Repeat("Refunds are processed within 14 days of the request. ", 20)
	result, err := f.manager.IngestFile(ctx, "site-a", "refunds.txt", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, domain.IngestStatusSuccess, result.Status)
	assert.NotEmpty(t, result.DocumentID)
	assert.Greater(t, result.ChunksCreated, 1)

	doc, err := f.documents.GetByID(ctx, "site-a", result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusStored, doc.Status)
	assert.Equal(t, result.ChunksCreated, doc.ChunkCount)
	assert.Equal(t, domain.SourceKindFile, doc.SourceKind)

	// Every chunk landed in the vector store under the right tenant.
	matches, err := f.vectors.Query(ctx, "site-a", hashVector("probe", 4), 100)
	require.NoError(t, err)
	assert.Len(t, matches, result.ChunksCreated)
}

func TestIngestFile_DuplicateContentSkipped(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	content := []byte(strings.Repeat("Shipping takes three to five days. ", 30))

	first, err := f.manager.IngestFile(ctx, "site-a", "shipping.txt", content)
	require.NoError(t, err)
	require.Equal(t, domain.IngestStatusSuccess, first.Status)

	// Same bytes under a different filename: content dedup wins.
	second, err := f.manager.IngestFile(ctx, "site-a", "shipping-copy.txt", content)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestStatusSkipped, second.Status)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.Zero(t, second.ChunksCreated)

	docs, err := f.documents.ListBySite(ctx, "site-a")
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// A different tenant ingesting the same content gets its own document.
	other, err := f.manager.IngestFile(ctx, "site-b", "shipping.txt", content)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestStatusSuccess, other.Status)
	assert.NotEqual(t, first.DocumentID, other.DocumentID)
}

func TestIngestFile_Validation(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	_, err := f.manager.IngestFile(ctx, "site-a", "empty.txt", nil)
	assert.Error(t, err)

	_, err = f.manager.IngestFile(ctx, "site-a", "data.csv", []byte("a,b,c"))
	assert.Error(t, err)
}

func TestIngestFile_EmbedFailureMarksDocumentError(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	// More failures than the retry budget: the document must fail.
	f.embedder.failures = 10

	result, err := f.manager.IngestFile(ctx, "site-a", "notes.txt",
		[]byte(strings.Repeat("Some content to embed. ", 30)))
	require.Error(t, err)
	assert.Equal(t, domain.IngestStatusError, result.Status)

	doc, err := f.documents.GetByID(ctx, "site-a", result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusError, doc.Status)
	assert.NotEmpty(t, doc.Error)

	// Nothing reached the vector store.
	matches, err := f.vectors.Query(ctx, "site-a", hashVector("probe", 4), 100)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIngestFile_EmbedRetryRecovers(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	// One transient failure is absorbed by the retry.
	f.embedder.failures = 1

	result, err := f.manager.IngestFile(ctx, "site-a", "notes.txt",
		[]byte(strings.Repeat("Some content to embed. ", 30)))
	require.NoError(t, err)
	assert.Equal(t, domain.IngestStatusSuccess, result.Status)
}

func TestIngestURL(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	srv := pageServer(t, "<html><head><title>FAQ</title></head><body><p>"+
		strings.Repeat("Answers to common questions. ", 30)+"</p></body></html>")

	result, err := f.manager.IngestURL(ctx, "site-a", srv.URL, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestStatusSuccess, result.Status)
	assert.Greater(t, result.ChunksCreated, 0)

	activity, err := f.activities.Get(ctx, "site-a", "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityStatusSuccess, activity.Status)
	assert.Equal(t, result.ChunksCreated, activity.ChunksCreated)
	assert.Equal(t, result.DocumentID, activity.DocumentID)
	require.NotNil(t, activity.CompletedAt)

	doc, err := f.documents.GetByID(ctx, "site-a", result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceKindURL, doc.SourceKind)
	assert.Equal(t, "FAQ", doc.Title)
}

func TestIngestURL_FetchFailureRecordsError(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := f.manager.IngestURL(ctx, "site-a", srv.URL, "req-err")
	require.Error(t, err)

	activity, getErr := f.activities.Get(ctx, "site-a", "req-err")
	require.NoError(t, getErr)
	assert.Equal(t, domain.ActivityStatusError, activity.Status)
	assert.NotEmpty(t, activity.Error)
	require.NotNil(t, activity.CompletedAt)
}

func TestIngestURL_Validation(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	_, err := f.manager.IngestURL(ctx, "site-a", "https://example.com", "")
	assert.Error(t, err)

	_, err = f.manager.IngestURL(ctx, "site-a", "", "req-1")
	assert.Error(t, err)
}

func TestIngestURL_ConcurrentDuplicateRequestID(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	srv := pageServer(t, "<html><body><p>"+
		strings.Repeat("Concurrent ingestion content. ", 30)+"</p></body></html>")

	const callers = 2
	results := make([]domain.IngestResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.manager.IngestURL(ctx, "site-a", srv.URL, "req-dup")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}

	// Exactly one logical activity exists for the request id, terminal
	// success, and its chunk count is stable across polls.
	activities, err := f.activities.ListBySite(ctx, "site-a", 0)
	require.NoError(t, err)
	require.Len(t, activities, 1)

	first, err := f.activities.Get(ctx, "site-a", "req-dup")
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityStatusSuccess, first.Status)
	assert.Greater(t, first.ChunksCreated, 0)

	second, err := f.activities.Get(ctx, "site-a", "req-dup")
	require.NoError(t, err)
	assert.Equal(t, first.ChunksCreated, second.ChunksCreated)

	// Only one pipeline ran: a single document, no duplicate chunks.
	docs, err := f.documents.ListBySite(ctx, "site-a")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestIngestURL_RepeatedRequestIDReturnsStoredResult(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	srv := pageServer(t, "<html><body><p>"+
		strings.Repeat("Repeat submission content. ", 30)+"</p></body></html>")

	first, err := f.manager.IngestURL(ctx, "site-a", srv.URL, "req-2")
	require.NoError(t, err)
	require.Equal(t, domain.IngestStatusSuccess, first.Status)

	second, err := f.manager.IngestURL(ctx, "site-a", srv.URL, "req-2")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestStatusSuccess, second.Status)
	assert.Equal(t, first.ChunksCreated, second.ChunksCreated)
	assert.Equal(t, first.DocumentID, second.DocumentID)
}

func TestProcessNewOnly(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	f.blobs.put("site-a", "one.txt", []byte(strings.Repeat("First document content. ", 30)))
	f.blobs.put("site-a", "two.txt", []byte(strings.Repeat("Second document content. ", 30)))
	f.blobs.put("site-a", "broken.csv", []byte("a,b,c"))

	result, err := f.manager.ProcessNewOnly(ctx, "site-a")
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalFiles)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Skipped)

	// A second sweep finds everything already processed.
	again, err := f.manager.ProcessNewOnly(ctx, "site-a")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Skipped)
	assert.Equal(t, 1, again.Failed)
	assert.Zero(t, again.Successful)
}

func TestListDocuments(t *testing.T) {
	ctx := context.Background()
	f := newIngestionFixture(t)

	first, err := f.manager.IngestFile(ctx, "site-a", "refunds.txt", []byte(strings.Repeat("Refund policy text. ", 30)))
	require.NoError(t, err)
	second, err := f.manager.IngestFile(ctx, "site-a", "shipping.txt", []byte(strings.Repeat("Shipping policy text. ", 30)))
	require.NoError(t, err)
	_, err = f.manager.IngestFile(ctx, "site-b", "other.txt", []byte(strings.Repeat("Another tenant's text. ", 30)))
	require.NoError(t, err)

	docs, err := f.manager.ListDocuments(ctx, "site-a")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// Newest first, scoped to the requested tenant.
	assert.Equal(t, second.DocumentID, docs[0].ID)
	assert.Equal(t, first.DocumentID, docs[1].ID)
	for _, doc := range docs {
		assert.Equal(t, "site-a", doc.SiteID)
	}

	empty, err := f.manager.ListDocuments(ctx, "site-c")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
