// internal/humanoid/vector.go
package humanoid

import (
	"math"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
)

// Vector2D is a pointer position with sub-pixel precision.
type Vector2D struct {
	X float64
	Y float64
}

// FromPoint converts a screen point.
func FromPoint(p schemas.Point) Vector2D {
	return Vector2D{X: float64(p.X), Y: float64(p.Y)}
}

// Add returns v + other.
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns v - other.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{X: v.X - other.X, Y: v.Y - other.Y}
}

// Mul returns v scaled by s.
func (v Vector2D) Mul(s float64) Vector2D {
	return Vector2D{X: v.X * s, Y: v.Y * s}
}

// Dist is the Euclidean distance between v and other.
func (v Vector2D) Dist(other Vector2D) float64 {
	return math.Hypot(v.X-other.X, v.Y-other.Y)
}

// Lerp interpolates between v and other; t=0 yields v, t=1 yields other.
func (v Vector2D) Lerp(other Vector2D, t float64) Vector2D {
	return v.Add(other.Sub(v).Mul(t))
}

// smoothstep eases t in [0,1] so that movement accelerates then decelerates.
func smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}
