package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidSource is returned when a source specifier is neither a number,
// a known catalog key, nor an acceptable asset path.
var ErrInvalidSource = errors.New("invalid source")

// AuxType names an auxiliary input of the model.
type AuxType string

const (
	AuxElevation AuxType = "elev"
	AuxDt        AuxType = "dt"
	AuxTmax      AuxType = "tmax"
	AuxTcorr     AuxType = "tcorr"
)

// Spec is a user-supplied source specifier: a catalog key ("DAYMET"), a
// number ("305") or an asset path ("projects/usgs-ssebop/srtm_1km").
type Spec string

// Num formats a numeric literal as a Spec, so Num(305) and Spec("305") are
// the same specifier.
func Num(v float64) Spec {
	return Spec(strconv.FormatFloat(v, 'f', -1, 64))
}

// SourceKind tags the interpretation of a classified Spec.
type SourceKind int

const (
	SourceNamed SourceKind = iota
	SourceConstant
	SourceCustom
)

func (k SourceKind) String() string {
	switch k {
	case SourceNamed:
		return "named"
	case SourceConstant:
		return "constant"
	case SourceCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Source is a classified Spec. Exactly one of Key, Value or Path is
// meaningful, selected by Kind.
type Source struct {
	Kind  SourceKind
	Raw   string
	Key   string  // upper-cased catalog key
	Value float64 // constant value
	Path  string  // custom asset path
}

// ClassifySource interprets spec for the auxiliary type: numbers become
// constants, known keys become named sources, slash-separated paths become
// custom sources where the type accepts them. Anything else is rejected.
func ClassifySource(aux AuxType, spec Spec, cat *Catalog) (Source, error) {
	raw := strings.TrimSpace(string(spec))
	if raw == "" {
		return Source{}, fmt.Errorf("%s source: %w: empty", aux, ErrInvalidSource)
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Source{}, fmt.Errorf("%s source %q: %w: not finite", aux, raw, ErrInvalidSource)
		}
		return Source{Kind: SourceConstant, Raw: raw, Value: v}, nil
	}

	if cat.Known(aux, raw) {
		return Source{Kind: SourceNamed, Raw: raw, Key: strings.ToUpper(raw)}, nil
	}

	if isAssetPath(raw) && cat.AcceptsCustomPath(aux) {
		return Source{Kind: SourceCustom, Raw: raw, Path: raw}, nil
	}

	return Source{}, fmt.Errorf("%s source %q: %w", aux, raw, ErrInvalidSource)
}

// isAssetPath accepts "a/b[/c...]" with no empty segments and no whitespace.
func isAssetPath(s string) bool {
	if !strings.Contains(s, "/") || strings.ContainsAny(s, " \t\n") {
		return false
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == "" {
			return false
		}
	}
	return true
}

// constantLabel renders a constant source for provenance properties.
func (s Source) constantLabel() string {
	if s.Raw != "" {
		return s.Raw
	}
	return strconv.FormatFloat(s.Value, 'f', -1, 64)
}
