package alerts

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Similarity rule weights and tolerances.
const (
	typologyWeight     = 40
	riskScoreWeight    = 25
	flaggedAmtWeight   = 20
	riskCategoryWeight = 15

	riskScoreTolerance = 15

	maxSimilarResults = 5
)

// flaggedAmtRatio is the flagged-amount proximity tolerance: the candidate
// must be within 50% of the target's flagged amount.
var flaggedAmtRatio = decimal.NewFromFloat(0.5)

// SimilarCase is one ranked entry in a case-similarity lookup.
type SimilarCase struct {
	ID              string   `json:"id"`
	Code            string   `json:"code"`
	Title           string   `json:"title"`
	Typology        string   `json:"typology"`
	RiskScore       int      `json:"risk_score"`
	Status          Status   `json:"status"`
	Resolution      *string  `json:"resolution,omitempty"`
	SimilarityScore int      `json:"similarity_score"`
	MatchingFactors []string `json:"matching_factors"`
}

// simPair is one target/candidate comparison, with both customers' risk
// categories already resolved ("" when unknown).
type simPair struct {
	target    *Alert
	candidate *Alert
	targetCat string
	candCat   string
}

// simRule contributes a fixed weight and a human-readable matching factor
// when it fires. Rules are evaluated in declaration order, so matching
// factors and the total score are reproducible per rule.
type simRule struct {
	weight int
	match  func(p simPair) bool
	label  func(p simPair) string
}

var simRules = []simRule{
	{
		weight: typologyWeight,
		match:  func(p simPair) bool { return p.candidate.Typology == p.target.Typology },
		label:  func(p simPair) string { return fmt.Sprintf("Same typology: %s", p.candidate.Typology) },
	},
	{
		weight: riskScoreWeight,
		match: func(p simPair) bool {
			return abs(p.candidate.RiskScore-p.target.RiskScore) <= riskScoreTolerance
		},
		label: func(p simPair) string {
			return fmt.Sprintf("Risk score within %d points (%d vs %d)",
				riskScoreTolerance, p.candidate.RiskScore, p.target.RiskScore)
		},
	},
	{
		weight: flaggedAmtWeight,
		match: func(p simPair) bool {
			t, c := p.target.FlaggedAmount, p.candidate.FlaggedAmount
			if t == nil || !t.IsPositive() || c == nil {
				return false
			}
			diff := c.Sub(*t).Abs()
			return diff.Cmp(t.Mul(flaggedAmtRatio)) <= 0
		},
		label: func(p simPair) string {
			return fmt.Sprintf("Flagged amount within 50%% (%s vs %s)",
				p.candidate.FlaggedAmount.StringFixed(0), p.target.FlaggedAmount.StringFixed(0))
		},
	},
	{
		weight: riskCategoryWeight,
		match: func(p simPair) bool {
			return p.targetCat != "" && p.candCat != "" && p.targetCat == p.candCat
		},
		label: func(p simPair) string { return fmt.Sprintf("Same risk category: %s", p.candCat) },
	},
}

// FindSimilarCases ranks every other alert by weighted similarity to the
// target and returns the top 5. Candidates scoring zero are dropped. Ties
// among equal scores keep scan order; only the non-increasing score order is
// a contract.
func (s *Service) FindSimilarCases(ctx context.Context, targetID string) ([]SimilarCase, error) {
	target, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}

	cats := newCategoryCache(s.customers)
	targetCat, err := cats.get(ctx, target.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("target risk category: %w", err)
	}

	candidates, err := s.store.ListAlerts(ctx, Filter{}, Sort{Column: SortDefaultColumn}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	scored := make([]SimilarCase, 0, len(candidates))
	for i := range candidates {
		cand := &candidates[i]
		if cand.ID == target.ID {
			continue
		}

		candCat, err := cats.get(ctx, cand.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("candidate risk category: %w", err)
		}

		p := simPair{target: target, candidate: cand, targetCat: targetCat, candCat: candCat}
		score := 0
		var factors []string
		for _, rule := range simRules {
			if rule.match(p) {
				score += rule.weight
				factors = append(factors, rule.label(p))
			}
		}
		if score == 0 {
			continue
		}

		scored = append(scored, SimilarCase{
			ID:              cand.ID,
			Code:            cand.Code,
			Title:           cand.Title,
			Typology:        cand.Typology,
			RiskScore:       cand.RiskScore,
			Status:          cand.Status,
			Resolution:      cand.Resolution,
			SimilarityScore: score,
			MatchingFactors: factors,
		})
	}

	sortSimilarDesc(scored)
	if len(scored) > maxSimilarResults {
		scored = scored[:maxSimilarResults]
	}

	if s.metrics != nil {
		s.metrics.SimilarLookupsTotal.Inc()
		s.metrics.SimilarMatches.Observe(float64(len(scored)))
	}
	return scored, nil
}

// categoryCache memoizes CustomerLookup reads for one similarity scan, since
// many alerts can reference the same customer.
type categoryCache struct {
	lookup CustomerLookup
	seen   map[string]string
}

func newCategoryCache(lookup CustomerLookup) *categoryCache {
	return &categoryCache{lookup: lookup, seen: make(map[string]string)}
}

func (c *categoryCache) get(ctx context.Context, customerID string) (string, error) {
	if customerID == "" || c.lookup == nil {
		return "", nil
	}
	if cat, ok := c.seen[customerID]; ok {
		return cat, nil
	}
	cat, ok, err := c.lookup.RiskCategory(ctx, customerID)
	if err != nil {
		return "", err
	}
	if !ok {
		cat = ""
	}
	c.seen[customerID] = cat
	return cat, nil
}

func sortSimilarDesc(cases []SimilarCase) {
	// Stable so that equal scores keep candidate scan order.
	sort.SliceStable(cases, func(i, j int) bool {
		return cases[i].SimilarityScore > cases[j].SimilarityScore
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
