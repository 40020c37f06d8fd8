package main

import (
	"math"
	"sort"
	"time"

	"github.com/notnil/chess"
)

const (
	PhaseOpening    = "opening"
	PhaseMiddlegame = "middlegame"
	PhaseEndgame    = "endgame"

	TrendImproving = "improving"
	TrendWorsening = "worsening"
	TrendStable    = "stable"
)

const (
	recentHitsWindow = 20
	trendHalfWindow  = 10
	trendBand        = 0.2
	hitEmaAlpha      = 0.2
)

// ContextFingerprint describes the kind of position a weakness shows up
// in, so the bias only fires where the lesson applies.
type ContextFingerprint struct {
	Phase           string `json:"phase"`
	RequiresCheck   bool   `json:"requires_check"`
	RequiresCapture bool   `json:"requires_capture"`
	RequiresHanging bool   `json:"requires_hanging"`
}

// WeaknessSignature is one tracked pattern of mistakes for a learner.
// Confidence and Trend are derived from the observation history and
// recomputed on every observation. Mastery is on a 0-100 scale; the
// other derived scores live in [0,1].
type WeaknessSignature struct {
	Category    string             `json:"category"`
	Occurrences int                `json:"occurrences"`
	RecentHits  []bool             `json:"recent_hits"`
	Confidence  float64            `json:"confidence"`
	Mastery     float64            `json:"mastery"`
	Trend       string             `json:"trend"`
	Severity    float64            `json:"severity"`
	Priority    float64            `json:"priority"`
	Fingerprint ContextFingerprint `json:"fingerprint"`
	LastSeen    time.Time          `json:"last_seen"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// hitEMA folds the hit window oldest-first so recent results dominate.
func hitEMA(hits []bool) float64 {
	if len(hits) == 0 {
		return 0
	}
	ema := 0.0
	if hits[0] {
		ema = 1
	}
	for _, hit := range hits[1:] {
		sample := 0.0
		if hit {
			sample = 1
		}
		ema = hitEmaAlpha*sample + (1-hitEmaAlpha)*ema
	}
	return ema
}

// SignatureConfidence blends sample size with recent consistency. The
// log term saturates at 20 observations; a handful of observations can
// never produce high confidence on their own.
func SignatureConfidence(occurrences int, recentHits []bool) float64 {
	if occurrences < 0 {
		occurrences = 0
	}
	sample := math.Log10(float64(occurrences)+1) / math.Log10(21)
	if sample > 1 {
		sample = 1
	}
	return clamp01(0.7*sample + 0.3*hitEMA(recentHits))
}

// SignatureTrend compares the last ten observations against the ten
// before them. Until both windows are full the trend stays stable;
// guessing a direction from a half-empty window misleads the UI.
func SignatureTrend(recentHits []bool) string {
	if len(recentHits) < 2*trendHalfWindow {
		return TrendStable
	}
	hits := recentHits[len(recentHits)-2*trendHalfWindow:]
	prior := hitRate(hits[:trendHalfWindow])
	recent := hitRate(hits[trendHalfWindow:])
	switch {
	case recent-prior > trendBand:
		return TrendImproving
	case prior-recent > trendBand:
		return TrendWorsening
	default:
		return TrendStable
	}
}

func hitRate(hits []bool) float64 {
	if len(hits) == 0 {
		return 0
	}
	count := 0
	for _, hit := range hits {
		if hit {
			count++
		}
	}
	return float64(count) / float64(len(hits))
}

// Observe records one encounter with the weakness. hit means the learner
// handled the position correctly this time.
func (s *WeaknessSignature) Observe(hit bool, when time.Time, config Config) {
	s.Occurrences++
	s.RecentHits = append(s.RecentHits, hit)
	if len(s.RecentHits) > recentHitsWindow {
		s.RecentHits = s.RecentHits[len(s.RecentHits)-recentHitsWindow:]
	}
	s.LastSeen = when
	s.Mastery = 100 * hitEMA(s.RecentHits)
	s.Confidence = SignatureConfidence(s.Occurrences, s.RecentHits)
	s.Trend = SignatureTrend(s.RecentHits)
	s.Priority = TeachingPriority(*s, when, config)
}

// TeachingPriority ranks a signature for selection: well-established,
// unmastered, recently seen, severe weaknesses come first.
func TeachingPriority(s WeaknessSignature, now time.Time, config Config) float64 {
	recency := 0.0
	if !s.LastSeen.IsZero() {
		age := now.Sub(s.LastSeen)
		recency = clamp01(1 - age.Hours()/(30*24))
	}
	return config.PriorityConfidenceWeight*s.Confidence +
		config.PriorityMasteryWeight*clamp01(1-s.Mastery/100) +
		config.PriorityRecencyWeight*recency +
		config.PrioritySeverityWeight*clamp01(s.Severity)
}

// SelectTeachingTargets picks the top signatures by priority for one
// move decision. The input is not mutated.
func SelectTeachingTargets(signatures []WeaknessSignature, now time.Time, config Config) []WeaknessSignature {
	ranked := make([]WeaknessSignature, len(signatures))
	copy(ranked, signatures)
	for i := range ranked {
		ranked[i].Priority = TeachingPriority(ranked[i], now, config)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority > ranked[j].Priority
	})
	limit := config.BiasTopSignatures
	if limit <= 0 {
		limit = 3
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// TeachingBias nudges the root move choice toward positions that
// exercise the learner's tracked weaknesses. The nudge is additive,
// bounded relative to the raw evaluation and the engine level, and only
// fires for signatures the model is confident about.
type TeachingBias struct {
	pos     *chess.Position
	level   int
	config  Config
	targets []WeaknessSignature
}

func NewTeachingBias(pos *chess.Position, level int, signatures []WeaknessSignature, config Config) *TeachingBias {
	targets := SelectTeachingTargets(signatures, time.Now(), config)
	eligible := targets[:0]
	for _, t := range targets {
		if t.Confidence >= config.BiasConfidenceFloor {
			eligible = append(eligible, t)
		}
	}
	if len(eligible) == 0 {
		return nil
	}
	return &TeachingBias{
		pos:     pos,
		level:   clampLevel(level),
		config:  config,
		targets: eligible,
	}
}

// BonusFor returns the centipawn bonus for steering toward this move,
// zero when no confident signature matches the resulting position.
func (b *TeachingBias) BonusFor(move *chess.Move, rawEval int) int {
	next := b.pos.Update(move)
	if next == nil {
		return 0
	}
	best := 0.0
	matched := false
	for _, target := range b.targets {
		if !fingerprintMatches(target.Fingerprint, b.pos, next, move, b.config) {
			continue
		}
		matched = true
		if target.Priority > best {
			best = target.Priority
		}
	}
	if !matched {
		return 0
	}
	magnitude := math.Abs(float64(rawEval))
	bound := b.config.BiasMagnitudeCap * magnitude * float64(b.level) / float64(MaxLevel)
	return int(bound * clamp01(best))
}

// fingerprintMatches checks the move and its resulting position against
// a signature's context. A hanging requirement means the engine leaves
// one of its own pieces attackable, handing the learner the pattern.
func fingerprintMatches(fp ContextFingerprint, pos, next *chess.Position, move *chess.Move, config Config) bool {
	if fp.Phase != "" && fp.Phase != phaseOf(next.Board(), config) {
		return false
	}
	if fp.RequiresCheck && !move.HasTag(chess.Check) {
		return false
	}
	if fp.RequiresCapture && !move.HasTag(chess.Capture) && !move.HasTag(chess.EnPassant) {
		return false
	}
	if fp.RequiresHanging {
		if worstAttackedValue(next.Board(), pos.Turn()) < config.HangingMinValueCp {
			return false
		}
	}
	return true
}

func phaseOf(board *chess.Board, config Config) string {
	material := totalMaterial(board)
	switch {
	case material < config.EndgameMaterialCp:
		return PhaseEndgame
	case material < config.MiddlegameMinMaterialCp:
		return PhaseMiddlegame
	default:
		return PhaseOpening
	}
}
