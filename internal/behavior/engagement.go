package behavior

import (
	"math"

	"github.com/opensource-crm/kestrel/internal/domain"
)

// EngagementScorer reduces gamification state to a 0-100 consistency
// score. Each sub-score is capped at its configured share before
// summing, so no single dimension can exceed its allotment and the
// total stays in [0, 100].
type EngagementScorer struct {
	cfg domain.ScoringConfig
}

// NewEngagementScorer creates a scorer with the given configuration.
func NewEngagementScorer(cfg domain.ScoringConfig) *EngagementScorer {
	return &EngagementScorer{cfg: cfg}
}

// Score computes the consistency score for an engagement state.
func (s *EngagementScorer) Score(e domain.Engagement) float64 {
	levelScore := s.levelScore(e.Level)
	badgeScore := s.badgeScore(e.Badges)
	xpScore := s.experienceScore(e.ExperiencePct)

	return clamp(levelScore+badgeScore+xpScore, 0, 100)
}

// Metrics returns the full engagement metric record, including the
// badge tallies the score was derived from.
func (s *EngagementScorer) Metrics(e domain.Engagement) domain.EngagementMetrics {
	earned := 0
	for _, b := range e.Badges {
		if b.Earned {
			earned++
		}
	}
	return domain.EngagementMetrics{
		ConsistencyScore: s.Score(e),
		Level:            e.Level,
		BadgesEarned:     earned,
		BadgesTotal:      len(e.Badges),
	}
}

func (s *EngagementScorer) levelScore(level int) float64 {
	maxLevel := s.cfg.EngagementMaxLevel
	if maxLevel <= 0 {
		maxLevel = 10
	}
	score := float64(level) / float64(maxLevel) * s.cfg.EngagementLevelShare
	return clamp(score, 0, s.cfg.EngagementLevelShare)
}

func (s *EngagementScorer) badgeScore(badges []domain.Badge) float64 {
	if len(badges) == 0 {
		return 0
	}
	earned := 0
	for _, b := range badges {
		if b.Earned {
			earned++
		}
	}
	score := float64(earned) / float64(len(badges)) * s.cfg.EngagementBadgeShare
	return clamp(score, 0, s.cfg.EngagementBadgeShare)
}

func (s *EngagementScorer) experienceScore(pct float64) float64 {
	score := pct / 100 * s.cfg.EngagementExperienceShare
	return clamp(score, 0, s.cfg.EngagementExperienceShare)
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
