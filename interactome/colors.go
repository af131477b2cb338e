// ===========================================================================
//
// File Name:  colors.go
//
// ===========================================================================

package interactome

import (
	"math"
	"strconv"
)

// brightPalette is the ten color "bright" qualitative palette
var brightPalette = []string{
	"#023EFF", "#FF7C00", "#1AC938", "#E8000B", "#8B2BE2",
	"#9F4800", "#F14CC1", "#A3A3A3", "#FFC400", "#00D7FF",
}

const (
	clusterAlpha  = 0.5
	noiseAlpha    = 0.75
	excludedAlpha = 0.25
)

var (
	noiseColor    = [4]float64{0.5, 0.5, 0.5, noiseAlpha}
	excludedColor = [4]float64{0, 0, 0, excludedAlpha}
	uniformWhite  = [4]float64{1, 1, 1, 1}
)

// hexColor parses #RRGGBB into unit RGB components
func hexColor(hex string) [3]float64 {

	var rgb [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(hex[1+2*i:3+2*i], 16, 8)
		if err != nil {
			continue
		}
		rgb[i] = float64(v) / 255
	}
	return rgb
}

// ClusterColor returns the palette color of cluster k, cycling when the palette runs out
func ClusterColor(k int) [4]float64 {

	if k < 0 {
		return noiseColor
	}
	rgb := hexColor(brightPalette[k%len(brightPalette)])
	return [4]float64{rgb[0], rgb[1], rgb[2], clusterAlpha}
}

// VisibleColors inverts RGB and rescales it jointly into [0.1,1], identical input yields white
func VisibleColors(raw [][4]float64) [][4]float64 {

	out := make([][4]float64, len(raw))
	if len(raw) == 0 {
		return out
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range raw {
		for ch := 0; ch < 3; ch++ {
			lo = math.Min(lo, c[ch])
			hi = math.Max(hi, c[ch])
		}
	}

	if hi == lo {
		for i := range out {
			out[i] = uniformWhite
		}
		return out
	}

	// inverting around 0.5 maps the range [lo,hi] onto [1-hi,1-lo]
	ilo, ihi := 1-hi, 1-lo
	for i, c := range raw {
		for ch := 0; ch < 3; ch++ {
			inv := 1 - c[ch]
			v := 0.9*(inv-ilo)/(ihi-ilo) + 0.1
			out[i][ch] = math.Min(1, math.Max(0.1, v))
		}
		out[i][3] = c[3]
	}

	return out
}

// ToRGBA scales unit colors to 0-255 integers
func ToRGBA(colors [][4]float64) []RGBA {

	out := make([]RGBA, len(colors))
	for i, c := range colors {
		for ch := 0; ch < 4; ch++ {
			out[i][ch] = int(c[ch] * 255)
		}
	}
	return out
}
