package types

import (
	"fmt"
	"math"
	"time"
)

// AffectiveVector is a point in the 10-dimensional emotion space plus the
// moment it was observed. Values are treated as immutable once built.
type AffectiveVector struct {
	Valence    float64 `json:"valence"`    // [-1, 1]
	Arousal    float64 `json:"arousal"`    // [0, 1]
	Dominance  float64 `json:"dominance"`  // [0, 1]
	Confidence float64 `json:"confidence"` // [0, 1]

	Surprise float64 `json:"surprise"`
	Fear     float64 `json:"fear"`
	Joy      float64 `json:"joy"`
	Anger    float64 `json:"anger"`
	Sadness  float64 `json:"sadness"`
	Disgust  float64 `json:"disgust"`

	Timestamp time.Time `json:"timestamp"`
}

// Fields returns the numeric dimensions in canonical order.
func (v AffectiveVector) Fields() [10]float64 {
	return [10]float64{
		v.Valence, v.Arousal, v.Dominance, v.Confidence,
		v.Surprise, v.Fear, v.Joy, v.Anger, v.Sadness, v.Disgust,
	}
}

// Validate rejects NaN and infinite components.
func (v AffectiveVector) Validate() error {
	names := [10]string{
		"valence", "arousal", "dominance", "confidence",
		"surprise", "fear", "joy", "anger", "sadness", "disgust",
	}
	for i, f := range v.Fields() {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return NewError(ErrInvalidAffect, fmt.Sprintf("%s is not a finite number", names[i]))
		}
	}
	return nil
}

// Outcome 任务结果分类
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePartial Outcome = "partial"
)

// Word returns the past-tense word used in compressed memory lines.
func (o Outcome) Word() string {
	switch o {
	case OutcomeSuccess:
		return "succeeded"
	case OutcomeFailure:
		return "failed"
	case OutcomePartial:
		return "partial"
	default:
		panic(fmt.Sprintf("unknown outcome %q", string(o)))
	}
}

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomePartial:
		return true
	}
	return false
}

// ParseOutcome parses a textual outcome.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	if !o.Valid() {
		return "", NewInvalidRequestError("unknown outcome %q", s)
	}
	return o, nil
}

// Complexity 任务复杂度
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Valid reports whether c is one of the known complexities.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return true
	}
	return false
}

// ParseComplexity parses a textual complexity.
func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(s)
	if !c.Valid() {
		return "", NewInvalidRequestError("unknown complexity %q", s)
	}
	return c, nil
}
