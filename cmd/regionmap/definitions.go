package main

import (
	"sync/atomic"

	"github.com/maxsupermanhd/regionmap/definitions"
)

// liveDefinitions holds the current set, renders take a snapshot with
// Load and are not affected by a later Store
type liveDefinitions struct {
	p atomic.Pointer[definitions.ViewportDefinition]
}

func newLiveDefinitions(d *definitions.ViewportDefinition) *liveDefinitions {
	ret := &liveDefinitions{}
	ret.p.Store(d)
	return ret
}

func (l *liveDefinitions) Load() *definitions.ViewportDefinition {
	return l.p.Load()
}

func (l *liveDefinitions) Store(d *definitions.ViewportDefinition) {
	l.p.Store(d)
}
