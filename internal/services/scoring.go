package services

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/temcen/folio/internal/config"
)

const hoursPerDay = 24.0

// JaccardSimilarity returns |A∩B| / |A∪B| over the distinct ids of a and b.
// Either side empty yields 0.
func JaccardSimilarity(a, b []int64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[int64]struct{}, len(a))
	for _, id := range a {
		setA[id] = struct{}{}
	}
	setB := make(map[int64]struct{}, len(b))
	for _, id := range b {
		setB[id] = struct{}{}
	}

	intersection := 0
	for id := range setA {
		if _, ok := setB[id]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// TimeDecay returns exp(-rate * ageDays). Items published in the future are
// treated as brand new, and the result never underflows to zero.
func TimeDecay(publishedAt, now time.Time, ratePerDay float64) float64 {
	ageDays := now.Sub(publishedAt).Hours() / hoursPerDay
	if ageDays < 0 {
		ageDays = 0
	}
	decay := math.Exp(-ratePerDay * ageDays)
	if decay < math.SmallestNonzeroFloat64 {
		return math.SmallestNonzeroFloat64
	}
	return decay
}

// PopularityScorer turns engagement counters into a composite score. A term
// reaches its weight when the counter hits the configured reference value and
// keeps growing logarithmically beyond it.
type PopularityScorer struct {
	weights []float64
	refs    []float64
}

func NewPopularityScorer(cfg config.PopularityConfig) *PopularityScorer {
	return &PopularityScorer{
		weights: []float64{cfg.ViewWeight, cfg.LikeWeight, cfg.CommentWeight},
		refs:    []float64{cfg.ViewRef, cfg.LikeRef, cfg.CommentRef},
	}
}

// Score is strictly increasing in each counter with a positive weight.
func (p *PopularityScorer) Score(views, likes, comments int64) float64 {
	counts := [3]int64{views, likes, comments}
	features := make([]float64, len(p.refs))
	for i, ref := range p.refs {
		features[i] = normalisedLog(counts[i], ref)
	}
	return floats.Dot(p.weights, features)
}

func normalisedLog(x int64, ref float64) float64 {
	if x <= 0 || ref <= 1 {
		return 0
	}
	return math.Log1p(float64(x)) / math.Log(ref)
}
