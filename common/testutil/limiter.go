package testutil

import "sync/atomic"

// PowerCut models a supply that fails after a budget of programmed bytes or
// block erases. Once tripped every later operation fails until Restore.
// A negative budget never runs out. It satisfies flash.Power.
type PowerCut struct {
	maxProgramBytes int64
	maxErases       int64
	programmed      atomic.Int64
	erased          atomic.Int64
	tripped         atomic.Bool
}

func NewPowerCut(programBytes, erases int64) *PowerCut {
	return &PowerCut{
		maxProgramBytes: programBytes,
		maxErases:       erases,
	}
}

// Program grants up to n bytes. A short grant means power failed mid-write.
func (p *PowerCut) Program(n int) int {
	if p.tripped.Load() {
		return 0
	}
	used := p.programmed.Add(int64(n))
	if p.maxProgramBytes < 0 || used <= p.maxProgramBytes {
		return n
	}

	p.tripped.Store(true)
	granted := int64(n) - (used - p.maxProgramBytes)
	if granted < 0 {
		granted = 0
	}
	p.programmed.Add(granted - int64(n))
	return int(granted)
}

// Erase reports whether an erase may complete.
func (p *PowerCut) Erase() bool {
	if p.tripped.Load() {
		return false
	}
	used := p.erased.Add(1)
	if p.maxErases < 0 || used <= p.maxErases {
		return true
	}
	p.tripped.Store(true)
	p.erased.Add(-1)
	return false
}

func (p *PowerCut) Tripped() bool {
	return p.tripped.Load()
}

// Restore brings power back with unlimited budgets.
func (p *PowerCut) Restore() {
	p.maxProgramBytes = -1
	p.maxErases = -1
	p.tripped.Store(false)
}

func (p *PowerCut) ProgrammedBytes() int64 {
	return p.programmed.Load()
}

func (p *PowerCut) Erases() int64 {
	return p.erased.Load()
}
