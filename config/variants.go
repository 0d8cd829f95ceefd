// Package config holds the compile-time parameter tables of the
// signature variants.
package config

import "fmt"

// Params bundles the parameters of one signature variant.
type Params struct {
	// LPPC parameters.
	BatchingFactor int
	IVSize         int
	YSize          int

	// Proof-system parameters.
	TreeHeight       int
	TreeArity        int
	TreeNLeaves      int
	Rho              int
	PiopNOpenedEvals int
	Beta             int
	DecsNOpenedEvals int
	DecsEta          int
	DecsPowBits      int
}

var variants = []Params{
	{
		BatchingFactor: 7, IVSize: 1, YSize: 1,
		TreeHeight: 14, TreeArity: 2, TreeNLeaves: 16384,
		Rho: 1, PiopNOpenedEvals: 1, Beta: 1,
		DecsNOpenedEvals: 13, DecsEta: 2, DecsPowBits: 8,
	},
	{
		BatchingFactor: 7, IVSize: 1, YSize: 1,
		TreeHeight: 6, TreeArity: 4, TreeNLeaves: 4096,
		Rho: 1, PiopNOpenedEvals: 1, Beta: 1,
		DecsNOpenedEvals: 17, DecsEta: 2, DecsPowBits: 7,
	},
	{
		BatchingFactor: 7, IVSize: 1, YSize: 1,
		TreeHeight: 5, TreeArity: 4, TreeNLeaves: 1024,
		Rho: 1, PiopNOpenedEvals: 1, Beta: 1,
		DecsNOpenedEvals: 24, DecsEta: 2, DecsPowBits: 8,
	},
}

// NumVariants is the number of supported signature variants.
var NumVariants = len(variants)

// ForVariant returns the parameters of the selected variant.
func ForVariant(variant int) (Params, error) {
	if variant < 0 || variant >= len(variants) {
		return Params{}, fmt.Errorf("config: unknown signature variant %d", variant)
	}
	return variants[variant], nil
}
