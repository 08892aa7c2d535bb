package managers

import (
	"context"
	"hash/fnv"
	"sync/atomic"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// stubEmbedder returns fixed vectors for known texts and a deterministic
// hash-derived vector otherwise. failures counts down: while positive, Embed
// fails and decrements.
type stubEmbedder struct {
	dims     int
	vectors  map[string][]float32
	failures int32
	calls    atomic.Int32
}

func newStubEmbedder(dims int) *stubEmbedder {
	return &stubEmbedder{dims: dims, vectors: make(map[string][]float32)}
}

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if n := atomic.LoadInt32(&e.failures); n > 0 {
		atomic.AddInt32(&e.failures, -1)
		return nil, domain.UpstreamError("embedding provider unavailable", nil)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if vec, ok := e.vectors[text]; ok {
			out[i] = vec
			continue
		}
		out[i] = hashVector(text, e.dims)
	}

	return out, nil
}

func (e *stubEmbedder) Dimensions() int { return e.dims }
func (e *stubEmbedder) Model() string   { return "stub-embed" }

func hashVector(text string, dims int) []float32 {
	vec := make([]float32, dims)
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed%1000)/1000 + 0.001
	}

	return vec
}

type stubAnswerer struct {
	text  string
	fail  bool
	calls atomic.Int32

	lastRequest domain.AnswerRequest
}

func (a *stubAnswerer) Answer(ctx context.Context, req domain.AnswerRequest) (domain.AnswerResult, error) {
	a.calls.Add(1)
	a.lastRequest = req
	if a.fail {
		return domain.AnswerResult{}, domain.UpstreamError("answer provider unavailable", nil)
	}

	text := a.text
	if text == "" {
		text = "stub answer"
	}

	return domain.AnswerResult{Text: text, Model: "stub-answer"}, nil
}

func (a *stubAnswerer) Model() string { return "stub-answer" }

// stubBlobStore serves fixed byte payloads keyed by site and path.
type stubBlobStore struct {
	blobs map[string]map[string][]byte // siteID -> path -> data
}

func newStubBlobStore() *stubBlobStore {
	return &stubBlobStore{blobs: make(map[string]map[string][]byte)}
}

func (s *stubBlobStore) put(siteID, path string, data []byte) {
	if s.blobs[siteID] == nil {
		s.blobs[siteID] = make(map[string][]byte)
	}
	s.blobs[siteID][path] = data
}

func (s *stubBlobStore) List(ctx context.Context, siteID string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path, data := range s.blobs[siteID] {
		infos = append(infos, domain.BlobInfo{Path: path, Name: path, Size: int64(len(data))})
	}

	return infos, nil
}

func (s *stubBlobStore) Download(ctx context.Context, siteID, path string) ([]byte, error) {
	data, ok := s.blobs[siteID][path]
	if !ok {
		return nil, domain.NotFoundError("blob not found")
	}

	return data, nil
}
