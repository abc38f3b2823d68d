package raster

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrAssetNotFound is returned when an expression references a dataset the
// engine cannot resolve.
var ErrAssetNotFound = errors.New("asset not found")

// Evaluator reduces an image to its first unmasked value at a point. ok is
// false when the pixel is masked.
type Evaluator interface {
	Sample(ctx context.Context, img Image, pt Point) (value float64, ok bool, err error)
}

// Sampler reads a single dataset pixel. It returns ErrAssetNotFound (possibly
// wrapped) for unknown datasets and ok=false for pixels without data.
type Sampler interface {
	SampleDataset(ctx context.Context, ds Dataset, pt Point) (value float64, ok bool, err error)
}

// PointEvaluator walks an expression graph at a single coordinate, reading
// leaf datasets through a Sampler. It is a reference implementation for
// point queries, not a raster engine.
type PointEvaluator struct {
	sampler Sampler
}

// NewPointEvaluator creates a PointEvaluator reading datasets from s.
func NewPointEvaluator(s Sampler) *PointEvaluator {
	return &PointEvaluator{sampler: s}
}

// Sample evaluates img at pt.
func (e *PointEvaluator) Sample(ctx context.Context, img Image, pt Point) (float64, bool, error) {
	if img.expr == nil {
		return 0, false, errors.New("sample: empty image")
	}
	return e.eval(ctx, img.expr, pt)
}

func (e *PointEvaluator) eval(ctx context.Context, x *Expr, pt Point) (float64, bool, error) {
	switch x.Op {
	case OpConst:
		return x.Value, true, nil
	case OpMasked:
		return 0, false, nil
	case OpDataset:
		if x.Dataset == nil {
			return 0, false, errors.New("dataset node without dataset")
		}
		v, ok, err := e.sampler.SampleDataset(ctx, *x.Dataset, pt)
		if err != nil {
			return 0, false, fmt.Errorf("sample %s: %w", x.Dataset.ID, err)
		}
		return v, ok, nil
	case OpWhere:
		return e.evalWhere(ctx, x, pt)
	case OpUpdateMask:
		return e.evalUpdateMask(ctx, x, pt)
	}

	args := make([]float64, len(x.Args))
	for i, a := range x.Args {
		v, ok, err := e.eval(ctx, a, pt)
		if err != nil || !ok {
			return 0, false, err
		}
		args[i] = v
	}
	return apply(x, args)
}

func (e *PointEvaluator) evalWhere(ctx context.Context, x *Expr, pt Point) (float64, bool, error) {
	if len(x.Args) != 3 {
		return 0, false, fmt.Errorf("where: want 3 operands, got %d", len(x.Args))
	}
	cond, condOK, err := e.eval(ctx, x.Args[1], pt)
	if err != nil {
		return 0, false, err
	}
	if condOK && cond != 0 {
		return e.eval(ctx, x.Args[2], pt)
	}
	return e.eval(ctx, x.Args[0], pt)
}

func (e *PointEvaluator) evalUpdateMask(ctx context.Context, x *Expr, pt Point) (float64, bool, error) {
	if len(x.Args) != 2 {
		return 0, false, fmt.Errorf("update_mask: want 2 operands, got %d", len(x.Args))
	}
	cond, condOK, err := e.eval(ctx, x.Args[1], pt)
	if err != nil || !condOK || cond == 0 {
		return 0, false, err
	}
	return e.eval(ctx, x.Args[0], pt)
}

func apply(x *Expr, a []float64) (float64, bool, error) {
	want := 2
	switch x.Op {
	case OpExp, OpLog, OpClamp:
		want = 1
	}
	if len(a) != want {
		return 0, false, fmt.Errorf("%s: want %d operands, got %d", x.Op, want, len(a))
	}

	var v float64
	switch x.Op {
	case OpAdd:
		v = a[0] + a[1]
	case OpSub:
		v = a[0] - a[1]
	case OpMul:
		v = a[0] * a[1]
	case OpDiv:
		if a[1] == 0 {
			return 0, false, nil
		}
		v = a[0] / a[1]
	case OpPow:
		v = math.Pow(a[0], a[1])
	case OpExp:
		v = math.Exp(a[0])
	case OpLog:
		if a[0] <= 0 {
			return 0, false, nil
		}
		v = math.Log(a[0])
	case OpLt:
		v = boolValue(a[0] < a[1])
	case OpLte:
		v = boolValue(a[0] <= a[1])
	case OpGt:
		v = boolValue(a[0] > a[1])
	case OpGte:
		v = boolValue(a[0] >= a[1])
	case OpAnd:
		v = boolValue(a[0] != 0 && a[1] != 0)
	case OpClamp:
		v = math.Min(math.Max(a[0], x.Lo), x.Hi)
	case OpNormDiff:
		sum := a[0] + a[1]
		if sum == 0 {
			return 0, true, nil
		}
		v = (a[0] - a[1]) / sum
	default:
		return 0, false, fmt.Errorf("unsupported op %q", x.Op)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
