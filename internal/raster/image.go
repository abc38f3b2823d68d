package raster

import "maps"

// Image is a single-band raster expression with a band name and string
// properties. The zero value is not usable; build images with [Constant],
// [Masked] or [FromDataset].
type Image struct {
	name  string
	expr  *Expr
	props map[string]string
}

// Constant returns a uniform image with value v everywhere.
func Constant(v float64) Image {
	return Image{name: "constant", expr: &Expr{Op: OpConst, Value: v}}
}

// Masked returns an image whose pixels are all no data.
func Masked() Image {
	return Image{name: "masked", expr: &Expr{Op: OpMasked}}
}

// FromDataset returns the image addressed by ds. The band name defaults to the
// dataset band.
func FromDataset(ds Dataset) Image {
	name := ds.Band
	if name == "" {
		name = "b1"
	}
	return Image{name: name, expr: &Expr{Op: OpDataset, Dataset: &ds}}
}

// Name returns the band name.
func (img Image) Name() string { return img.name }

// Expr returns the root of the expression graph.
func (img Image) Expr() *Expr { return img.expr }

// Prop returns the named property.
func (img Image) Prop(key string) (string, bool) {
	v, ok := img.props[key]
	return v, ok
}

// Props returns a copy of all properties.
func (img Image) Props() map[string]string {
	return maps.Clone(img.props)
}

// Rename returns the image with a new band name.
func (img Image) Rename(name string) Image {
	img.name = name
	return img
}

// Set returns the image with key set to value. The receiver is not modified.
func (img Image) Set(key, value string) Image {
	props := make(map[string]string, len(img.props)+1)
	maps.Copy(props, img.props)
	props[key] = value
	img.props = props
	return img
}

// derive builds a new image that keeps the receiver's band name but none of
// its properties, matching how derived rasters lose provenance.
func (img Image) derive(e *Expr) Image {
	return Image{name: img.name, expr: e}
}

func (img Image) Add(o Image) Image { return img.derive(binary(OpAdd, img.expr, o.expr)) }
func (img Image) Sub(o Image) Image { return img.derive(binary(OpSub, img.expr, o.expr)) }
func (img Image) Mul(o Image) Image { return img.derive(binary(OpMul, img.expr, o.expr)) }
func (img Image) Div(o Image) Image { return img.derive(binary(OpDiv, img.expr, o.expr)) }
func (img Image) Pow(o Image) Image { return img.derive(binary(OpPow, img.expr, o.expr)) }

// Exp returns e raised to each pixel.
func (img Image) Exp() Image { return img.derive(unary(OpExp, img.expr)) }

// Log returns the natural logarithm of each pixel; non-positive pixels are masked.
func (img Image) Log() Image { return img.derive(unary(OpLog, img.expr)) }

// Comparisons yield 1 where the relation holds and 0 elsewhere.
func (img Image) Lt(o Image) Image  { return img.derive(binary(OpLt, img.expr, o.expr)) }
func (img Image) Lte(o Image) Image { return img.derive(binary(OpLte, img.expr, o.expr)) }
func (img Image) Gt(o Image) Image  { return img.derive(binary(OpGt, img.expr, o.expr)) }
func (img Image) Gte(o Image) Image { return img.derive(binary(OpGte, img.expr, o.expr)) }
func (img Image) And(o Image) Image { return img.derive(binary(OpAnd, img.expr, o.expr)) }

// Where replaces pixels with value wherever cond is non-zero.
func (img Image) Where(cond, value Image) Image {
	return img.derive(&Expr{Op: OpWhere, Args: []*Expr{img.expr, cond.expr, value.expr}})
}

// Clamp limits pixels to [lo, hi].
func (img Image) Clamp(lo, hi float64) Image {
	return img.derive(&Expr{Op: OpClamp, Args: []*Expr{img.expr}, Lo: lo, Hi: hi})
}

// UpdateMask masks pixels where cond is zero or masked.
func (img Image) UpdateMask(cond Image) Image {
	return img.derive(binary(OpUpdateMask, img.expr, cond.expr))
}

// NormalizedDifference returns (a-b)/(a+b), with 0 where a+b is 0. The result
// takes a's band name.
func NormalizedDifference(a, b Image) Image {
	return a.derive(binary(OpNormDiff, a.expr, b.expr))
}
