// Package curate converts reflection output into staged playbook operations.
//
// The upstream reflection collaborator supplies candidate key points and
// evaluations of existing entries. Curation normalizes their shape once at
// this boundary, filters out low-quality or duplicate candidates, maps
// ratings to score deltas, and stages the survivors into a delta builder.
// Nothing here mutates the store.
package curate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/papercomputeco/playbook/pkg/delta"
	"github.com/papercomputeco/playbook/pkg/playbook"
)

const (
	// DefaultMinAtomicity is the default quality gate for candidate key
	// points carrying an atomicity score.
	DefaultMinAtomicity = 0.70

	minTextLen = 20
	maxTextLen = 300
)

// KeyPoint is one candidate strategy from reflection. The wire shape may be
// a bare string or an object; UnmarshalJSON collapses both into this struct
// so nothing downstream branches on shape.
type KeyPoint struct {
	Text           string   `json:"text"`
	AtomicityScore *float64 `json:"atomicity_score,omitempty"`
	Evidence       string   `json:"evidence,omitempty"`
}

// UnmarshalJSON accepts either a JSON string or a key point object.
func (k *KeyPoint) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*k = KeyPoint{Text: text}
		return nil
	}

	type alias KeyPoint
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("parsing key point: %w", err)
	}
	*k = KeyPoint(obj)
	return nil
}

// EvaluationInput is one rating of an existing entry from reflection.
type EvaluationInput struct {
	Name          string `json:"name"`
	Rating        string `json:"rating"`
	Justification string `json:"justification,omitempty"`
}

// Result is the reflection collaborator's contract: candidate key points
// plus evaluations of existing entries.
type Result struct {
	NewKeyPoints []KeyPoint        `json:"new_key_points"`
	Evaluations  []EvaluationInput `json:"evaluations"`
}

// ScoreDeltas maps a rating to its score adjustment. Unknown ratings map to
// a zero delta; the evaluation is still recorded in the entry's history.
type ScoreDeltas struct {
	Helpful int
	Neutral int
	Harmful int
}

// DefaultScoreDeltas returns the documented default rating adjustments.
func DefaultScoreDeltas() ScoreDeltas {
	return ScoreDeltas{Helpful: 1, Neutral: -1, Harmful: -3}
}

// DeltaFor returns the score adjustment for a rating, 0 for unknown ratings.
func (s ScoreDeltas) DeltaFor(rating string) int {
	switch rating {
	case "helpful":
		return s.Helpful
	case "neutral":
		return s.Neutral
	case "harmful":
		return s.Harmful
	default:
		return 0
	}
}

// Rejection records a candidate that curation filtered out, with the reason.
type Rejection struct {
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// Report summarizes one curation pass.
type Report struct {
	Processed int         `json:"observations_processed"`
	Accepted  int         `json:"accepted"`
	Evaluated int         `json:"evaluations"`
	Rejected  []Rejection `json:"rejected,omitempty"`
}

// Curator stages reflection results into delta operations.
type Curator struct {
	minAtomicity float64
	deltas       ScoreDeltas
}

// New creates a curator with the given atomicity gate and rating deltas.
func New(minAtomicity float64, deltas ScoreDeltas) *Curator {
	return &Curator{
		minAtomicity: minAtomicity,
		deltas:       deltas,
	}
}

// Stage filters the reflection result against the current store and appends
// the surviving operations to the builder: one add per accepted key point,
// one score update per evaluation. Duplicate detection compares normalized
// text against active entries only (archived strategies are retracted and do
// not block re-learning) and against earlier candidates in the same batch,
// so an in-batch duplicate never reaches the builder.
func (c *Curator) Stage(b *delta.Builder, store *playbook.Store, result *Result) *Report {
	report := &Report{Processed: len(result.NewKeyPoints)}

	seen := make(map[string]struct{})
	names := store.Names()

	for _, kp := range result.NewKeyPoints {
		text := strings.TrimSpace(kp.Text)
		if text == "" {
			continue
		}

		if kp.AtomicityScore != nil && *kp.AtomicityScore < c.minAtomicity {
			report.Rejected = append(report.Rejected, Rejection{
				Text:   text,
				Reason: fmt.Sprintf("atomicity_score %.2f below threshold %.2f", *kp.AtomicityScore, c.minAtomicity),
			})
			continue
		}

		norm := playbook.NormalizeText(text)
		if _, dup := seen[norm]; dup || store.HasActiveText(text) {
			report.Rejected = append(report.Rejected, Rejection{Text: text, Reason: "duplicate"})
			continue
		}

		if !isActionable(text) {
			report.Rejected = append(report.Rejected, Rejection{Text: text, Reason: "too vague or generic"})
			continue
		}

		name := playbook.NextName(names)
		names[name] = struct{}{}
		seen[norm] = struct{}{}

		entry := &playbook.Entry{
			Name:           name,
			Text:           text,
			Status:         playbook.StatusActive,
			AtomicityScore: kp.AtomicityScore,
			Evidence:       kp.Evidence,
		}
		b.AddKeyPoint(entry, "learned from reflection")
		report.Accepted++
	}

	for _, ev := range result.Evaluations {
		if ev.Name == "" {
			continue
		}
		b.UpdateScore(ev.Name, c.deltas.DeltaFor(ev.Rating), ev.Rating, ev.Justification)
		report.Evaluated++
	}

	return report
}

// genericPhrases flag advice too vague to act on.
var genericPhrases = []string{
	"be helpful",
	"be clear",
	"be concise",
	"understand context",
	"user wants",
	"provide good",
	"make sure",
	"always try",
	"something",
	"various",
	"sometimes",
}

// specificIndicators are markers of concrete, actionable advice; a candidate
// must contain at least one.
var specificIndicators = []string{
	"use",
	"when",
	"if",
	"check",
	"run",
	"call",
	"read",
	"write",
	"create",
	"update",
	"delete",
	"prefer",
	"avoid",
	".py",
	".js",
	".ts",
	".go",
	"command",
	"tool",
	"function",
	"file",
	"directory",
}

// isActionable screens candidate text for atomicity and specificity: not too
// short to be complete, not too long to be atomic, no generic filler, and at
// least one concrete indicator.
func isActionable(text string) bool {
	if len(text) < minTextLen || len(text) > maxTextLen {
		return false
	}

	lower := strings.ToLower(text)
	for _, phrase := range genericPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}

	for _, indicator := range specificIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	return false
}
