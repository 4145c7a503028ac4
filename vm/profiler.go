package vm

import "sort"

// Profiler counts executed instructions by opcode and lambda invocations by
// entry address. A lambda becomes hot once its invocation count reaches
// HotThreshold.
type Profiler struct {
	// HotThreshold is the invocation count that marks a lambda hot.
	HotThreshold uint64

	// OnHot is called once per lambda when it becomes hot.
	OnHot func(entry int, profile *LambdaProfile)

	ops      [256]uint64
	lambdas  map[int]*LambdaProfile
	hotCount int
}

// LambdaProfile holds profiling data for one lambda body.
type LambdaProfile struct {
	Entry           int
	InvocationCount uint64
	IsHot           bool
}

// NewProfiler creates a profiler with the default hot threshold.
func NewProfiler() *Profiler {
	return &Profiler{
		HotThreshold: 100,
		lambdas:      make(map[int]*LambdaProfile),
	}
}

func (p *Profiler) recordOp(op Opcode) {
	p.ops[op]++
}

// recordCall counts an invocation of the lambda at entry and reports
// whether it just became hot.
func (p *Profiler) recordCall(entry int) bool {
	profile, ok := p.lambdas[entry]
	if !ok {
		profile = &LambdaProfile{Entry: entry}
		p.lambdas[entry] = profile
	}
	profile.InvocationCount++

	if !profile.IsHot && profile.InvocationCount >= p.HotThreshold {
		profile.IsHot = true
		p.hotCount++
		if p.OnHot != nil {
			p.OnHot(entry, profile)
		}
		return true
	}
	return false
}

// OpCount returns how many times op was executed.
func (p *Profiler) OpCount(op Opcode) uint64 {
	if !op.IsValid() {
		return 0
	}
	return p.ops[op]
}

// Lambda returns the profile of the lambda at entry, or nil if it never
// ran.
func (p *Profiler) Lambda(entry int) *LambdaProfile {
	return p.lambdas[entry]
}

// ProfilerStats holds aggregate profiling statistics.
type ProfilerStats struct {
	Instructions uint64 // executed instructions
	Lambdas      int    // distinct lambdas invoked
	HotLambdas   int
	Calls        uint64 // lambda invocations
}

// Stats returns aggregate profiling statistics.
func (p *Profiler) Stats() ProfilerStats {
	stats := ProfilerStats{Lambdas: len(p.lambdas), HotLambdas: p.hotCount}
	for _, n := range p.ops {
		stats.Instructions += n
	}
	for _, profile := range p.lambdas {
		stats.Calls += profile.InvocationCount
	}
	return stats
}

// TopLambdas returns the n most frequently invoked lambdas, ties broken by
// entry address.
func (p *Profiler) TopLambdas(n int) []*LambdaProfile {
	all := make([]*LambdaProfile, 0, len(p.lambdas))
	for _, profile := range p.lambdas {
		all = append(all, profile)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].InvocationCount != all[j].InvocationCount {
			return all[i].InvocationCount > all[j].InvocationCount
		}
		return all[i].Entry < all[j].Entry
	})
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.ops = [256]uint64{}
	p.lambdas = make(map[int]*LambdaProfile)
	p.hotCount = 0
}
