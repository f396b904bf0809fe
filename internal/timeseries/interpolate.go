package timeseries

import "sort"

// Interpolate returns the state at t between the two samples bracketing it.
// Units are matched by id; a unit present on one side only is taken as is.
// Before the first sample the result is empty; after the last it is the last sample.
func Interpolate(series []Snapshot, t float64) Snapshot {
	out := Snapshot{Timestamp: t, Players: map[string]*PlayerUnits{}}
	// first sample strictly after t
	i := sort.Search(len(series), func(i int) bool { return series[i].Timestamp > t })
	if i == 0 {
		return out
	}
	before := series[i-1]
	if i == len(series) || before.Timestamp == t {
		for key, pu := range before.Players {
			out.Players[key] = clonePlayer(pu)
		}
		return out
	}
	after := series[i]
	f := (t - before.Timestamp) / (after.Timestamp - before.Timestamp)

	for key, b := range before.Players {
		a, ok := after.Players[key]
		if !ok {
			out.Players[key] = clonePlayer(b)
			continue
		}
		pu := clonePlayer(b)
		pu.Units = lerpUnits(b.Units, a.Units, f)
		pu.Buildings = lerpUnits(b.Buildings, a.Buildings, f)
		out.Players[key] = pu
	}
	return out
}

func lerpUnits(before, after []UnitState, f float64) []UnitState {
	byID := make(map[int64]UnitState, len(after))
	for _, u := range after {
		byID[u.UnitID] = u
	}
	seen := make(map[int64]bool, len(before))
	out := make([]UnitState, 0, len(before))
	for _, b := range before {
		seen[b.UnitID] = true
		a, ok := byID[b.UnitID]
		if !ok {
			out = append(out, b)
			continue
		}
		u := b
		u.X = b.X + (a.X-b.X)*f
		u.Y = b.Y + (a.Y-b.Y)*f
		u.VX = b.VX + (a.VX-b.VX)*f
		u.VY = b.VY + (a.VY-b.VY)*f
		out = append(out, u)
	}
	for _, a := range after {
		if !seen[a.UnitID] {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID < out[j].UnitID })
	return out
}

func clonePlayer(pu *PlayerUnits) *PlayerUnits {
	c := *pu
	c.Units = append([]UnitState{}, pu.Units...)
	c.Buildings = append([]UnitState{}, pu.Buildings...)
	return &c
}
