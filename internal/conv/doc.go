// Package conv provides checked integer conversions for values that cross
// the snapshot boundary, where dimensions and counts are fixed-width.
package conv
