package managers

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/domain"
	"github.com/helpdeck/helpdeck/internal/ingestion"
	"github.com/helpdeck/helpdeck/internal/ingestion/extract"
)

const (
	defaultSlotsPerSite   = 2
	defaultEmbedBatchSize = 64

	// embedRetries is the number of re-attempts per embedding sub-batch
	// before the whole document fails.
	embedRetries = 2
)

type ingestionManager struct {
	documents  domain.DocumentStore
	activities domain.ActivityStore
	vectors    domain.VectorStore
	blobs      domain.BlobStore
	embedder   domain.Embedder
	fetcher    *ingestion.Fetcher
	extractors *extract.Registry
	chunker    *ingestion.Chunker

	batchSize    int
	slotsPerSite int

	mu        sync.Mutex
	slots     map[string]chan struct{}
	hashLocks sync.Map
}

type IngestionManagerDependencies struct {
	DocumentStore  domain.DocumentStore
	ActivityStore  domain.ActivityStore
	VectorStore    domain.VectorStore
	BlobStore      domain.BlobStore
	Embedder       domain.Embedder
	Fetcher        *ingestion.Fetcher
	Extractors     *extract.Registry
	Chunker        *ingestion.Chunker
	SlotsPerSite   int
	EmbedBatchSize int
}

func NewIngestionManager(deps IngestionManagerDependencies) domain.IngestionManager {
	slotsPerSite := deps.SlotsPerSite
	if slotsPerSite <= 0 {
		slotsPerSite = defaultSlotsPerSite
	}

	batchSize := deps.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}

	return &ingestionManager{
		documents:    deps.DocumentStore,
		activities:   deps.ActivityStore,
		vectors:      deps.VectorStore,
		blobs:        deps.BlobStore,
		embedder:     deps.Embedder,
		fetcher:      deps.Fetcher,
		extractors:   deps.Extractors,
		chunker:      deps.Chunker,
		batchSize:    batchSize,
		slotsPerSite: slotsPerSite,
		slots:        make(map[string]chan struct{}),
	}
}

func (m *ingestionManager) IngestFile(ctx context.Context, siteID, name string, data []byte) (domain.IngestResult, error) {
	if len(data) == 0 {
		return domain.IngestResult{}, domain.ValidationError("file is empty")
	}

	extractor, err := m.extractors.ForFilename(name)
	if err != nil {
		return domain.IngestResult{}, err
	}

	extracted, err := extractor.Extract(data)
	if err != nil {
		return domain.IngestResult{}, err
	}

	title := extracted.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}

	return m.ingest(ctx, ingestJob{
		siteID:     siteID,
		sourceKind: domain.SourceKindFile,
		location:   name,
		title:      title,
		text:       extracted.Text,
	})
}

func (m *ingestionManager) IngestURL(ctx context.Context, siteID, rawURL, requestID string) (domain.IngestResult, error) {
	if strings.TrimSpace(requestID) == "" {
		return domain.IngestResult{}, domain.ValidationError("request_id is required")
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return domain.IngestResult{}, domain.ValidationError("url is required")
	}

	created, err := m.activities.Begin(ctx, domain.URLIngestionActivity{
		RequestID: requestID,
		SiteID:    siteID,
		URL:       rawURL,
		Status:    domain.ActivityStatusProcessing,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.IngestResult{}, err
	}
	if !created {
		// The request id was already claimed; report that activity's state
		// instead of running the pipeline twice.
		existing, err := m.activities.Get(ctx, siteID, requestID)
		if err != nil {
			return domain.IngestResult{}, err
		}
		return activityResult(existing), nil
	}

	// Once the activity row exists the pipeline runs to completion even if
	// the client disconnects; the terminal state must land in the ledger.
	ctx = context.WithoutCancel(ctx)

	result, ingestErr := m.ingestURL(ctx, siteID, rawURL)

	completion := domain.ActivityCompletion{
		Status:        domain.ActivityStatusSuccess,
		DocumentID:    result.DocumentID,
		ChunksCreated: result.ChunksCreated,
		CompletedAt:   time.Now().UTC(),
	}
	if ingestErr != nil {
		completion.Status = domain.ActivityStatusError
		completion.Error = domain.TruncateActivityError(errorDetail(ingestErr))
	}

	if err := m.activities.Complete(ctx, siteID, requestID, completion); err != nil {
		log.Error().Err(err).
			Str("site_id", siteID).
			Str("request_id", requestID).
			Msg("Failed to complete ingestion activity")
	}

	return result, ingestErr
}

func (m *ingestionManager) ingestURL(ctx context.Context, siteID, rawURL string) (domain.IngestResult, error) {
	fetched, err := m.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return domain.IngestResult{}, err
	}

	extractor, err := m.extractors.ForContentType(fetched.ContentType)
	if err != nil {
		return domain.IngestResult{}, err
	}

	extracted, err := extractor.Extract(fetched.Body)
	if err != nil {
		return domain.IngestResult{}, err
	}

	title := extracted.Title
	if title == "" {
		title = urlTitle(fetched.FinalURL)
	}

	return m.ingest(ctx, ingestJob{
		siteID:     siteID,
		sourceKind: domain.SourceKindURL,
		location:   rawURL,
		title:      title,
		text:       extracted.Text,
	})
}

// ProcessNewOnly sweeps the site's blob folder and ingests files that have
// not produced a stored document yet. Per-file failures are counted, logged
// and do not stop the sweep.
func (m *ingestionManager) ProcessNewOnly(ctx context.Context, siteID string) (domain.BatchIngestResult, error) {
	blobs, err := m.blobs.List(ctx, siteID)
	if err != nil {
		return domain.BatchIngestResult{}, err
	}

	result := domain.BatchIngestResult{TotalFiles: len(blobs)}
	for _, blob := range blobs {
		if doc, err := m.documents.GetByLocation(ctx, siteID, blob.Path); err == nil && doc.Status == domain.DocumentStatusStored {
			result.Skipped++
			continue
		}

		data, err := m.blobs.Download(ctx, siteID, blob.Path)
		if err != nil {
			result.Failed++
			log.Warn().Err(err).Str("site_id", siteID).Str("path", blob.Path).Msg("Failed to download blob")
			continue
		}

		ingestResult, err := m.IngestFile(ctx, siteID, blob.Path, data)
		switch {
		case err != nil:
			result.Failed++
			log.Warn().Err(err).Str("site_id", siteID).Str("path", blob.Path).Msg("Failed to ingest blob")
		case ingestResult.Status == domain.IngestStatusSkipped:
			result.Skipped++
		default:
			result.Successful++
		}
	}

	return result, nil
}

// ListDocuments returns the site's ingested documents, newest first.
func (m *ingestionManager) ListDocuments(ctx context.Context, siteID string) ([]domain.Document, error) {
	return m.documents.ListBySite(ctx, siteID)
}

type ingestJob struct {
	siteID     string
	sourceKind domain.SourceKind
	location   string
	title      string
	text       string
}

func (m *ingestionManager) ingest(ctx context.Context, job ingestJob) (domain.IngestResult, error) {
	if strings.TrimSpace(job.text) == "" {
		return domain.IngestResult{}, domain.IngestionError("document has no extractable text", nil)
	}

	if err := m.acquireSlot(ctx, job.siteID); err != nil {
		return domain.IngestResult{}, err
	}
	defer m.releaseSlot(job.siteID)

	contentHash := ingestion.ContentHash(job.text)

	// One pipeline at a time per (site, content hash): a concurrent
	// duplicate waits here and then lands on the dedup check.
	unlock := m.lockHash(job.siteID, contentHash)
	defer unlock()

	existing, err := m.documents.GetByContentHash(ctx, job.siteID, contentHash)
	if err == nil {
		return domain.IngestResult{DocumentID: existing.ID, Status: domain.IngestStatusSkipped}, nil
	}
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.IngestResult{}, err
	}

	now := time.Now().UTC()
	doc := domain.Document{
		ID:          xid.New().String(),
		SiteID:      job.siteID,
		SourceKind:  job.sourceKind,
		Location:    job.location,
		Title:       job.title,
		ContentHash: contentHash,
		Status:      domain.DocumentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.documents.Create(ctx, doc); err != nil {
		return domain.IngestResult{}, err
	}

	chunks := m.chunker.Split(job.text)
	if len(chunks) == 0 {
		err := domain.IngestionError("document produced no chunks", nil)
		m.failDocument(ctx, doc, err)
		return domain.IngestResult{DocumentID: doc.ID, Status: domain.IngestStatusError}, err
	}

	doc.ChunkCount = len(chunks)
	if err := m.advanceDocument(ctx, &doc, domain.DocumentStatusChunked); err != nil {
		return domain.IngestResult{DocumentID: doc.ID, Status: domain.IngestStatusError}, err
	}

	vectors, err := m.embedChunks(ctx, chunks)
	if err != nil {
		m.failDocument(ctx, doc, err)
		return domain.IngestResult{DocumentID: doc.ID, Status: domain.IngestStatusError}, err
	}
	if err := m.advanceDocument(ctx, &doc, domain.DocumentStatusEmbedded); err != nil {
		return domain.IngestResult{DocumentID: doc.ID, Status: domain.IngestStatusError}, err
	}

	points := make([]domain.ChunkPoint, len(chunks))
	for i, text := range chunks {
		points[i] = domain.ChunkPoint{
			ID:         ingestion.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Text:       text,
			Vector:     vectors[i],
			CreatedAt:  now,
		}
	}
	if err := m.vectors.Upsert(ctx, job.siteID, points); err != nil {
		m.failDocument(ctx, doc, err)
		return domain.IngestResult{DocumentID: doc.ID, Status: domain.IngestStatusError}, err
	}

	if err := m.advanceDocument(ctx, &doc, domain.DocumentStatusStored); err != nil {
		return domain.IngestResult{DocumentID: doc.ID, Status: domain.IngestStatusError}, err
	}

	log.Info().
		Str("site_id", job.siteID).
		Str("document_id", doc.ID).
		Str("source", string(job.sourceKind)).
		Int("chunks", len(chunks)).
		Msg("Document ingested")

	return domain.IngestResult{
		DocumentID:    doc.ID,
		Status:        domain.IngestStatusSuccess,
		ChunksCreated: len(chunks),
	}, nil
}

func (m *ingestionManager) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))

	for start := 0; start < len(chunks); start += m.batchSize {
		end := min(start+m.batchSize, len(chunks))
		batch := chunks[start:end]

		var batchVectors [][]float32
		var err error
		for attempt := 0; attempt <= embedRetries; attempt++ {
			batchVectors, err = m.embedder.Embed(ctx, batch)
			if err == nil {
				break
			}
		}
		if err != nil {
			return nil, err
		}
		if len(batchVectors) != len(batch) {
			return nil, domain.UpstreamError("embedding count does not match batch size", nil)
		}

		vectors = append(vectors, batchVectors...)
	}

	return vectors, nil
}

func (m *ingestionManager) advanceDocument(ctx context.Context, doc *domain.Document, status domain.DocumentStatus) error {
	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()

	return m.documents.Update(ctx, *doc)
}

func (m *ingestionManager) failDocument(ctx context.Context, doc domain.Document, cause error) {
	doc.Status = domain.DocumentStatusError
	doc.Error = domain.TruncateActivityError(errorDetail(cause))
	doc.UpdatedAt = time.Now().UTC()

	if err := m.documents.Update(ctx, doc); err != nil {
		log.Error().Err(err).Str("document_id", doc.ID).Msg("Failed to record document error")
	}
}

func (m *ingestionManager) acquireSlot(ctx context.Context, siteID string) error {
	m.mu.Lock()
	slot, ok := m.slots[siteID]
	if !ok {
		slot = make(chan struct{}, m.slotsPerSite)
		m.slots[siteID] = slot
	}
	m.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *ingestionManager) releaseSlot(siteID string) {
	m.mu.Lock()
	slot := m.slots[siteID]
	m.mu.Unlock()

	<-slot
}

func (m *ingestionManager) lockHash(siteID, hash string) func() {
	value, _ := m.hashLocks.LoadOrStore(siteID+":"+hash, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}

func activityResult(activity domain.URLIngestionActivity) domain.IngestResult {
	result := domain.IngestResult{
		DocumentID:    activity.DocumentID,
		ChunksCreated: activity.ChunksCreated,
	}

	switch activity.Status {
	case domain.ActivityStatusSuccess:
		result.Status = domain.IngestStatusSuccess
	case domain.ActivityStatusError:
		result.Status = domain.IngestStatusError
	default:
		result.Status = domain.IngestStatusProcessing
	}

	return result
}

func urlTitle(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}

	title := parsed.Host
	if path := strings.Trim(parsed.Path, "/"); path != "" {
		title += "/" + path
	}

	return title
}

func errorDetail(err error) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return domainErr.Detail
	}

	return err.Error()
}
