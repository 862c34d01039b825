// Package recognition implements the identification pipeline: quality
// gate, cached extraction, nearest-neighbor query and match decision.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/facegate/facegate/internal/cache"
	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/embedding"
	"github.com/facegate/facegate/internal/identity"
	"github.com/facegate/facegate/internal/index"
	"github.com/facegate/facegate/internal/metrics"
	"github.com/facegate/facegate/internal/pool"
	"github.com/facegate/facegate/internal/quality"
)

// ErrInitializing is returned while the extractor warm-up has not yet
// completed. Handlers map it to 503 so load balancers retry elsewhere.
var ErrInitializing = errors.New("pipeline is initializing")

// Result is the outcome of one identification attempt.
type Result struct {
	Outcome     Outcome             `json:"outcome"`
	IdentityID  string              `json:"identity_id,omitempty"`
	DisplayName string              `json:"display_name,omitempty"`
	Score       float64             `json:"score"`
	Secondary   []Candidate         `json:"secondary_matches,omitempty"`
	FaceCount   int                 `json:"face_count"`
	Quality     *quality.Assessment `json:"quality,omitempty"`
	CacheHit    bool                `json:"cache_hit"`
	ElapsedMs   int64               `json:"processing_time_ms"`
	Detail      string              `json:"detail,omitempty"`
}

// VerifyResult is the outcome of a one-to-one verification.
type VerifyResult struct {
	Verified   bool    `json:"verified"`
	IdentityID string  `json:"identity_id"`
	Score      float64 `json:"score"`
	Threshold  float64 `json:"threshold"`
	FaceCount  int     `json:"face_count"`
	Outcome    Outcome `json:"outcome"`
}

// EnrollResult summarizes an enrollment of one identity from several photos.
type EnrollResult struct {
	IdentityID string   `json:"identity_id"`
	Enrolled   int      `json:"enrolled"`
	Skipped    []string `json:"skipped,omitempty"` // one reason per rejected photo
}

// Pipeline wires the stages together. CPU-bound work (decode, quality)
// and I/O-bound work (extractor, index) run on separate bounded pools.
type Pipeline struct {
	gate      *quality.Gate
	extractor *embedding.Client
	cache     *cache.Cache
	index     index.Index
	engine    *Engine
	directory identity.Directory
	sink      EventSink

	cpu *pool.Pool
	io  *pool.Pool

	indexTimeout time.Duration
	multiFace    config.MultiFacePolicy
}

// NewPipeline assembles the pipeline. Directory may be nil when no
// identity directory is configured; Authenticate then behaves like
// Identify. Sink may be nil to disable event recording.
func NewPipeline(cfg *config.Config, extractor *embedding.Client, idx index.Index, dir identity.Directory, sink EventSink) *Pipeline {
	if sink == nil {
		sink = NopSink{}
	}
	return &Pipeline{
		gate:         quality.NewGate(cfg.Quality),
		extractor:    extractor,
		cache:        cache.New(cfg.Cache.Capacity),
		index:        idx,
		engine:       NewEngine(cfg.Match),
		directory:    dir,
		sink:         sink,
		cpu:          pool.New(cfg.Pools.CPUWorkers),
		io:           pool.New(cfg.Pools.IOWorkers),
		indexTimeout: cfg.Index.Timeout,
		multiFace:    cfg.Match.MultiFacePolicy,
	}
}

// Warmup probes the extractor. Identification requests fail with
// ErrInitializing until this has returned nil once.
func (p *Pipeline) Warmup(ctx context.Context) error {
	return p.extractor.Warmup(ctx)
}

// Ready reports whether the pipeline accepts identification requests.
func (p *Pipeline) Ready() bool {
	return p.extractor.Ready()
}

// Close drains the worker pools.
func (p *Pipeline) Close() {
	p.cpu.Close()
	p.io.Close()
}

// Identify runs the full pipeline on one image and records an event.
// Stage failures are folded into the result as OutcomeError; the returned
// error is non-nil only before warm-up or on context cancellation.
func (p *Pipeline) Identify(ctx context.Context, imageData []byte) (*Result, error) {
	res, err := p.identify(ctx, imageData)
	if err != nil {
		return nil, err
	}
	p.record(ctx, res)
	return res, nil
}

// IdentifyBatch identifies several images concurrently. Results keep the
// input order and items fail independently: a corrupt image yields an
// OutcomeError entry without affecting its neighbors.
func (p *Pipeline) IdentifyBatch(ctx context.Context, images [][]byte) ([]*Result, error) {
	if !p.extractor.Ready() {
		return nil, ErrInitializing
	}

	results := make([]*Result, len(images))
	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func(i int, img []byte) {
			defer wg.Done()
			res, err := p.identify(ctx, img)
			if err != nil {
				res = &Result{Outcome: OutcomeError, Detail: err.Error()}
			}
			p.record(ctx, res)
			results[i] = res
		}(i, img)
	}
	wg.Wait()
	return results, nil
}

// verifySearchK widens the one-to-one search: the claimed identity may
// rank far below the strangers in a crowded index, so verification must
// not be limited to the identification shortlist.
const verifySearchK = 10

// Verify answers "is this image the claimed identity" without revealing
// who else it might be. It runs its own unthresholded search and filters
// to the claimed identity, so the verdict does not depend on how many
// other identities outrank it.
func (p *Pipeline) Verify(ctx context.Context, imageData []byte, identityID string) (*VerifyResult, error) {
	if !p.extractor.Ready() {
		return nil, ErrInitializing
	}
	start := time.Now()

	res := &Result{}
	face, err := p.resolveFace(ctx, imageData, res)
	if err != nil {
		return nil, err
	}

	v := &VerifyResult{
		IdentityID: identityID,
		Threshold:  p.engine.Threshold(),
		FaceCount:  res.FaceCount,
	}
	if face == nil {
		v.Outcome = res.Outcome
		res.ElapsedMs = time.Since(start).Milliseconds()
		p.record(ctx, res)
		return v, nil
	}

	searchK := verifySearchK
	if k := 2 * p.engine.topK; k > searchK {
		searchK = k
	}
	matches, err := p.query(ctx, face.Embedding, searchK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res.Outcome = OutcomeError
		res.Detail = err.Error()
		res.ElapsedMs = time.Since(start).Milliseconds()
		p.record(ctx, res)
		v.Outcome = OutcomeError
		return v, nil
	}

	// The search is unthresholded, so a below-threshold claim still
	// reports its actual similarity instead of zero.
	for _, m := range matches {
		if m.IdentityID == identityID && m.Score > v.Score {
			v.Score = m.Score
		}
	}
	v.Verified = v.Score >= v.Threshold

	res.Score = v.Score
	if v.Verified {
		v.Outcome = OutcomeSuccess
		res.IdentityID = identityID
	} else {
		v.Outcome = OutcomeNoMatch
	}
	res.Outcome = v.Outcome
	res.ElapsedMs = time.Since(start).Milliseconds()
	p.record(ctx, res)
	return v, nil
}

// Authenticate identifies the face and then checks the directory: a
// biometric match alone is not enough, the identity must be active and
// permitted to use face authentication.
func (p *Pipeline) Authenticate(ctx context.Context, imageData []byte) (*Result, error) {
	res, err := p.identify(ctx, imageData)
	if err != nil {
		return nil, err
	}

	if res.Outcome == OutcomeSuccess && p.directory != nil {
		rec, err := p.directory.GetIdentity(ctx, res.IdentityID)
		switch {
		case errors.Is(err, identity.ErrNotFound):
			res.Outcome = OutcomeDeniedNoPermission
			res.Detail = "matched identity is not registered for face authentication"
		case err != nil:
			res.Outcome = OutcomeError
			res.Detail = fmt.Sprintf("directory lookup failed: %v", err)
		case !rec.Active:
			res.Outcome = OutcomeDeniedInactive
			res.DisplayName = rec.DisplayName
		case !rec.CanUseFaceAuth:
			res.Outcome = OutcomeDeniedNoPermission
			res.DisplayName = rec.DisplayName
		default:
			res.DisplayName = rec.DisplayName
		}
	}

	p.record(ctx, res)
	return res, nil
}

// Enroll extracts one embedding per photo and stores them for the
// identity. Photos failing the quality gate or containing anything but
// exactly one face are skipped with a reason; enrollment succeeds when at
// least one photo survives.
func (p *Pipeline) Enroll(ctx context.Context, identityID string, images [][]byte) (*EnrollResult, error) {
	if !p.extractor.Ready() {
		return nil, ErrInitializing
	}

	result := &EnrollResult{IdentityID: identityID}
	var embeddings [][]float32

	for i, img := range images {
		candidates, assessment, _, err := p.extract(ctx, img)
		switch {
		case err != nil:
			result.Skipped = append(result.Skipped, fmt.Sprintf("photo %d: %v", i+1, err))
		case assessment != nil && !assessment.Valid:
			result.Skipped = append(result.Skipped, fmt.Sprintf("photo %d: %s", i+1, assessment.Recommendation))
		case len(candidates) == 0:
			result.Skipped = append(result.Skipped, fmt.Sprintf("photo %d: no face detected", i+1))
		case len(candidates) > 1:
			result.Skipped = append(result.Skipped, fmt.Sprintf("photo %d: %d faces detected, enrollment photos must contain exactly one", i+1, len(candidates)))
		default:
			embeddings = append(embeddings, candidates[0].Embedding)
		}
	}

	if len(embeddings) == 0 {
		return result, errors.New("no usable enrollment photos")
	}

	meta := index.Metadata{Model: p.extractor.Model(), EnrolledAt: time.Now().UTC()}
	if err := p.index.Upsert(ctx, identityID, embeddings, meta); err != nil {
		return result, fmt.Errorf("storing embeddings: %w", err)
	}
	result.Enrolled = len(embeddings)

	if n, err := p.index.Count(ctx); err == nil {
		metrics.EnrolledEmbeddings.Set(float64(n))
	}
	return result, nil
}

// RemoveIdentity deletes every enrolled embedding for the identity. Once
// this returns the identity cannot match again.
func (p *Pipeline) RemoveIdentity(ctx context.Context, identityID string) error {
	if err := p.index.Delete(ctx, identityID); err != nil {
		return err
	}
	if n, err := p.index.Count(ctx); err == nil {
		metrics.EnrolledEmbeddings.Set(float64(n))
	}
	return nil
}

// CacheStats exposes cache hit counters for the stats endpoint.
func (p *Pipeline) CacheStats() (hits, misses uint64, size int) {
	hits, misses = p.cache.Stats()
	return hits, misses, p.cache.Len()
}

// identify runs the stages without recording an event.
func (p *Pipeline) identify(ctx context.Context, imageData []byte) (*Result, error) {
	if !p.extractor.Ready() {
		return nil, ErrInitializing
	}
	start := time.Now()

	res := &Result{}
	defer func() { res.ElapsedMs = time.Since(start).Milliseconds() }()

	face, err := p.resolveFace(ctx, imageData, res)
	if err != nil {
		return nil, err
	}
	if face == nil {
		return res, nil
	}

	matches, err := p.query(ctx, face.Embedding, p.engine.topK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res.Outcome = OutcomeError
		res.Detail = err.Error()
		return res, nil
	}

	decision := p.engine.Decide(matches)
	res.Score = decision.Best.Score
	res.Secondary = decision.Secondary
	metrics.MatchScore.Observe(decision.Best.Score)

	if !decision.Matched {
		res.Outcome = OutcomeNoMatch
		return res, nil
	}

	res.Outcome = OutcomeSuccess
	res.IdentityID = decision.Best.IdentityID
	if p.directory != nil {
		if rec, err := p.directory.GetIdentity(ctx, res.IdentityID); err == nil {
			res.DisplayName = rec.DisplayName
		}
	}
	return res, nil
}

// resolveFace runs the gate and extraction stages and applies the
// multi-face policy, filling res with quality, cache and face-count
// information. A nil face with a nil error means res carries a terminal
// outcome; a non-nil error is a context cancellation.
func (p *Pipeline) resolveFace(ctx context.Context, imageData []byte, res *Result) (*embedding.FaceCandidate, error) {
	candidates, assessment, cacheHit, err := p.extract(ctx, imageData)
	res.Quality = assessment
	res.CacheHit = cacheHit
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		res.Outcome = OutcomeError
		res.Detail = err.Error()
		return nil, nil
	}
	if assessment != nil && !assessment.Valid {
		res.Outcome = OutcomeLowQuality
		res.Detail = assessment.Recommendation
		return nil, nil
	}

	res.FaceCount = len(candidates)
	switch {
	case len(candidates) == 0:
		res.Outcome = OutcomeNoFace
		return nil, nil
	case len(candidates) > 1 && p.multiFace == config.MultiFaceReject:
		res.Outcome = OutcomeMultipleFaces
		res.Detail = fmt.Sprintf("%d faces detected", len(candidates))
		return nil, nil
	}
	return embedding.BestCandidate(candidates), nil
}

// extract returns the face candidates for an image, via the cache when
// possible. The assessment is nil on a cache hit (the gate is skipped);
// on a miss a failing verdict short-circuits with candidates nil.
func (p *Pipeline) extract(ctx context.Context, imageData []byte) ([]embedding.FaceCandidate, *quality.Assessment, bool, error) {
	key := cache.Key(imageData)
	if candidates, ok := p.cache.Get(key); ok {
		metrics.RecordCacheLookup(true)
		return candidates, nil, true, nil
	}
	metrics.RecordCacheLookup(false)

	qualityStart := time.Now()
	assessFuture := pool.Submit(ctx, p.cpu, func(ctx context.Context) (quality.Assessment, error) {
		img, err := embedding.Decode(imageData)
		if err != nil {
			return quality.Assessment{}, fmt.Errorf("decoding image: %w", err)
		}
		return p.gate.Assess(img), nil
	})
	assessment, err := assessFuture.Wait(ctx)
	metrics.ObserveStage("quality", qualityStart)
	if err != nil {
		return nil, nil, false, err
	}
	if !assessment.Valid {
		return nil, &assessment, false, nil
	}

	extractStart := time.Now()
	extractFuture := pool.Submit(ctx, p.io, func(ctx context.Context) ([]embedding.FaceCandidate, error) {
		return p.extractor.ExtractAll(ctx, imageData)
	})
	candidates, err := extractFuture.Wait(ctx)
	metrics.ObserveStage("extract", extractStart)
	if err != nil {
		return nil, &assessment, false, fmt.Errorf("extracting embeddings: %w", err)
	}

	p.cache.Put(key, candidates)
	return candidates, &assessment, false, nil
}

// query runs the nearest-neighbor search on the io pool under the index
// timeout. The query threshold is 0 so a near-miss still surfaces its
// best score; the decision engine applies the real threshold.
func (p *Pipeline) query(ctx context.Context, emb []float32, topK int) ([]index.Match, error) {
	queryStart := time.Now()
	defer metrics.ObserveStage("query", queryStart)

	future := pool.Submit(ctx, p.io, func(ctx context.Context) ([]index.Match, error) {
		if p.indexTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.indexTimeout)
			defer cancel()
		}
		return p.index.Query(ctx, emb, topK, 0)
	})
	matches, err := future.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: query timed out", index.ErrUnavailable)
		}
		return nil, err
	}
	return matches, nil
}

// record writes the event; failures are logged, never surfaced.
func (p *Pipeline) record(ctx context.Context, res *Result) {
	metrics.RecordOutcome(string(res.Outcome))

	ev := NewEvent(res.Outcome, res.IdentityID, res.Score, time.Duration(res.ElapsedMs)*time.Millisecond, res.CacheHit)
	if err := p.sink.Record(ctx, ev); err != nil {
		log.Printf("failed to record recognition event: %v", err)
	}
}
