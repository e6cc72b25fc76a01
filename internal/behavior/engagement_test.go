package behavior

import (
	"testing"

	"github.com/opensource-crm/kestrel/internal/domain"
)

func allBadges(earned int, total int) []domain.Badge {
	badges := make([]domain.Badge, total)
	for i := range badges {
		badges[i] = domain.Badge{ID: string(rune('a' + i)), Earned: i < earned}
	}
	return badges
}

func TestScoreBounds(t *testing.T) {
	s := NewEngagementScorer(domain.DefaultScoringConfig())

	tests := []struct {
		name string
		e    domain.Engagement
		want float64
	}{
		{"zero state", domain.Engagement{}, 0},
		{
			"everything maxed",
			domain.Engagement{Level: 10, ExperiencePct: 100, Badges: allBadges(4, 4)},
			100,
		},
		{
			"level above cap stays clamped",
			domain.Engagement{Level: 25, ExperiencePct: 100, Badges: allBadges(4, 4)},
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Score(tt.e); got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreShares(t *testing.T) {
	s := NewEngagementScorer(domain.DefaultScoringConfig())

	// Level alone grants at most its 40-point share.
	levelOnly := domain.Engagement{Level: 10}
	if got := s.Score(levelOnly); got != 40 {
		t.Errorf("level-only Score = %v, want 40", got)
	}

	// Badges alone grant at most 30.
	badgesOnly := domain.Engagement{Badges: allBadges(3, 3)}
	if got := s.Score(badgesOnly); got != 30 {
		t.Errorf("badges-only Score = %v, want 30", got)
	}

	// Experience alone grants at most 30.
	xpOnly := domain.Engagement{ExperiencePct: 100}
	if got := s.Score(xpOnly); got != 30 {
		t.Errorf("experience-only Score = %v, want 30", got)
	}
}

func TestScorePartialProgress(t *testing.T) {
	s := NewEngagementScorer(domain.DefaultScoringConfig())

	e := domain.Engagement{
		Level:         5,               // 20 of 40
		ExperiencePct: 50,              // 15 of 30
		Badges:        allBadges(1, 2), // 15 of 30
	}
	if got := s.Score(e); got != 50 {
		t.Errorf("Score = %v, want 50", got)
	}
}

func TestMetricsTallies(t *testing.T) {
	s := NewEngagementScorer(domain.DefaultScoringConfig())

	m := s.Metrics(domain.Engagement{Level: 3, Badges: allBadges(2, 5)})

	if m.BadgesEarned != 2 || m.BadgesTotal != 5 {
		t.Errorf("badges = %d/%d, want 2/5", m.BadgesEarned, m.BadgesTotal)
	}
	if m.Level != 3 {
		t.Errorf("Level = %d, want 3", m.Level)
	}
	if m.ConsistencyScore < 0 || m.ConsistencyScore > 100 {
		t.Errorf("ConsistencyScore = %v, want within [0, 100]", m.ConsistencyScore)
	}
}
