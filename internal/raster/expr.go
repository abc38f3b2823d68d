// Package raster builds declarative raster-algebra expression graphs.
//
// Nothing in this package touches pixels at construction time: every [Image]
// wraps an [Expr] tree that an [Evaluator] (normally the remote raster engine)
// executes later. Expressions are immutable; every operation returns a new
// tree that shares its operands with the inputs.
//
// # Masking
//
// A pixel is either a float64 value or masked (no data). Arithmetic on a masked
// operand yields a masked pixel, [Image.UpdateMask] masks pixels explicitly, and
// division by zero masks instead of producing Inf or NaN. Region reductions skip
// masked pixels, so masking surfaces as absence, never as zero.
package raster

// Op identifies an expression node type. The string values are part of the
// engine wire format.
type Op string

const (
	OpConst      Op = "const"
	OpMasked     Op = "masked"
	OpDataset    Op = "dataset"
	OpAdd        Op = "add"
	OpSub        Op = "sub"
	OpMul        Op = "mul"
	OpDiv        Op = "div"
	OpPow        Op = "pow"
	OpExp        Op = "exp"
	OpLog        Op = "log"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpAnd        Op = "and"
	OpWhere      Op = "where"
	OpClamp      Op = "clamp"
	OpUpdateMask Op = "update_mask"
	OpNormDiff   Op = "normalized_difference"
)

// Expr is one node of an expression graph.
//
// Operand layout per op:
//   - const: Value
//   - dataset: Dataset
//   - binary ops and comparisons: Args[0] op Args[1]
//   - exp, log: Args[0]
//   - where: Args[0] replaced by Args[2] where Args[1] is non-zero
//   - clamp: Args[0] limited to [Lo, Hi]
//   - update_mask: Args[0] masked where Args[1] is zero or masked
//   - normalized_difference: (Args[0]-Args[1])/(Args[0]+Args[1]), 0 when the sum is 0
type Expr struct {
	Op      Op       `json:"op"`
	Args    []*Expr  `json:"args,omitempty"`
	Value   float64  `json:"value,omitempty"`
	Lo      float64  `json:"lo,omitempty"`
	Hi      float64  `json:"hi,omitempty"`
	Dataset *Dataset `json:"dataset,omitempty"`
}

// Dataset addresses a band of an external dataset.
//
// A bare ID names a single image asset. Date selects the image of a daily
// collection acquired on that day (YYYY-MM-DD); DOY selects the image of a
// day-of-year keyed collection such as a long-term median. At most one of
// Date and DOY is set.
type Dataset struct {
	ID   string `json:"id"`
	Band string `json:"band,omitempty"`
	Date string `json:"date,omitempty"`
	DOY  int    `json:"doy,omitempty"`
}

// Point is a WGS-84 longitude/latitude coordinate.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

func unary(op Op, x *Expr) *Expr {
	return &Expr{Op: op, Args: []*Expr{x}}
}

func binary(op Op, a, b *Expr) *Expr {
	return &Expr{Op: op, Args: []*Expr{a, b}}
}
