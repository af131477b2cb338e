// ===========================================================================
//
// File Name:  sphere.go
//
// ===========================================================================

package interactome

import (
	"math"
)

// FibonacciSphere returns n evenly spread points on the unit sphere
func FibonacciSphere(n int) [][3]float64 {

	pts := make([][3]float64, n)
	if n == 1 {
		pts[0] = [3]float64{0, 1, 0}
		return pts
	}

	golden := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < n; i++ {
		y := 1 - 2*float64(i)/float64(n-1)
		r := math.Sqrt(math.Max(0, 1-y*y))
		theta := golden * float64(i)
		pts[i] = [3]float64{math.Cos(theta) * r, y, math.Sin(theta) * r}
	}
	return pts
}

// placeOnSphere puts the listed nodes on a sphere enclosing the already placed coordinates
func placeOnSphere(pos Layout, placed [][3]float64, rest []int) {

	if len(rest) == 0 {
		return
	}

	var center [3]float64
	for _, p := range placed {
		for ax := 0; ax < 3; ax++ {
			center[ax] += p[ax]
		}
	}
	if len(placed) > 0 {
		for ax := 0; ax < 3; ax++ {
			center[ax] /= float64(len(placed))
		}
	}

	radius := 0.0
	for _, p := range placed {
		radius = math.Max(radius, math.Sqrt(sqDist3(p, center)))
	}
	if radius == 0 {
		radius = 1
	}
	radius *= 1.1

	for k, pt := range FibonacciSphere(len(rest)) {
		for ax := 0; ax < 3; ax++ {
			pos[rest[k]][ax] = center[ax] + radius*pt[ax]
		}
	}
}
