package recognition

import (
	"sort"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/index"
)

// Candidate is one identity with its best similarity score.
type Candidate struct {
	IdentityID string  `json:"identity_id"`
	Score      float64 `json:"score"`
}

// Decision is the output of the match decision engine.
type Decision struct {
	// Matched is true when the best candidate clears the threshold.
	Matched bool
	// Best is the highest-scoring candidate. Zero value when the index
	// returned nothing.
	Best Candidate
	// Secondary holds the remaining candidates above the threshold,
	// ordered best first, capped at topK-1.
	Secondary []Candidate
}

// Engine turns raw index matches into an accept/reject decision. An
// identity enrolled with several embeddings is scored by its best one.
type Engine struct {
	threshold float64
	topK      int
}

func NewEngine(cfg config.MatchConfig) *Engine {
	return &Engine{threshold: cfg.Threshold, topK: cfg.TopK}
}

// Threshold returns the decision threshold in use.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Decide aggregates matches by identity (max score wins) and applies the
// threshold. Ties are broken by identity id ascending so repeated calls
// with the same matches always produce the same decision.
func (e *Engine) Decide(matches []index.Match) Decision {
	if len(matches) == 0 {
		return Decision{}
	}

	best := make(map[string]float64, len(matches))
	for _, m := range matches {
		if s, ok := best[m.IdentityID]; !ok || m.Score > s {
			best[m.IdentityID] = m.Score
		}
	}

	candidates := make([]Candidate, 0, len(best))
	for id, score := range best {
		candidates = append(candidates, Candidate{IdentityID: id, Score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].IdentityID < candidates[j].IdentityID
	})

	d := Decision{Best: candidates[0]}
	if candidates[0].Score >= e.threshold {
		d.Matched = true
	}

	limit := e.topK
	if limit < 1 {
		limit = 1
	}
	for _, c := range candidates[1:] {
		if c.Score < e.threshold || len(d.Secondary)+1 >= limit {
			break
		}
		d.Secondary = append(d.Secondary, c)
	}
	return d
}
