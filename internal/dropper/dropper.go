// Package dropper provides loss processes for codec evaluation.
package dropper

import (
	"math/rand"
)

// Dropper decides whether the next symbol is lost.
type Dropper interface {
	Drop() bool
}

// Bernoulli implements a simple u<p drop decision.
type Bernoulli struct {
	p   float64
	rng *rand.Rand
}

func NewBernoulli(p float64, rng *rand.Rand) *Bernoulli { return &Bernoulli{p: p, rng: rng} }

func (b *Bernoulli) Drop() bool {
	if b.p <= 0 {
		return false
	}
	if b.p >= 1 {
		return true
	}
	return b.rng.Float64() < b.p
}

// GilbertElliott is a two-state burst loss process. In the good state
// symbols survive; in the bad state they drop with probability lossBad.
type GilbertElliott struct {
	pGoodToBad float64
	pBadToGood float64
	lossBad    float64
	bad        bool
	rng        *rand.Rand
}

func NewGilbertElliott(pGoodToBad, pBadToGood, lossBad float64, rng *rand.Rand) *GilbertElliott {
	return &GilbertElliott{
		pGoodToBad: pGoodToBad,
		pBadToGood: pBadToGood,
		lossBad:    lossBad,
		rng:        rng,
	}
}

func (g *GilbertElliott) Drop() bool {
	if g.bad {
		if g.rng.Float64() < g.pBadToGood {
			g.bad = false
		}
	} else {
		if g.rng.Float64() < g.pGoodToBad {
			g.bad = true
		}
	}
	if !g.bad {
		return false
	}
	return g.rng.Float64() < g.lossBad
}
