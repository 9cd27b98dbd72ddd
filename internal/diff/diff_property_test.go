package diff

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"fleetwatch/internal/model"
)

func observation(m map[string]int) []model.Build {
	out := make([]model.Build, 0, len(m))
	for v, p := range m {
		out = append(out, model.Build{Version: v, Pending: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

var propVersions = []string{"2024.1", "2024.2", "2024.3", "2025.1", "2025.2"}

// counts turns generated slices into a version->pending map; present[i]
// decides whether propVersions[i] is in the map at all.
func counts(pending []int, present []bool) map[string]int {
	out := map[string]int{}
	for i, v := range propVersions {
		if i < len(pending) && i < len(present) && present[i] {
			out[v] = pending[i]
		}
	}
	return out
}

func clone(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func TestBuildsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	n := len(propVersions)
	pendingGen := gen.SliceOfN(n, gen.IntRange(0, 5000))
	presentGen := gen.SliceOfN(n, gen.Bool())

	properties.Property("second identical run emits nothing", prop.ForAll(
		func(obsPending []int, obsPresent []bool, priorPending []int, priorPresent []bool) bool {
			obs, prior := counts(obsPending, obsPresent), counts(priorPending, priorPresent)
			mem := clone(prior)
			Builds(observation(obs), mem, DefaultWaveThreshold)
			return len(Builds(observation(obs), mem, DefaultWaveThreshold)) == 0
		},
		pendingGen, presentGen, pendingGen, presentGen,
	))

	properties.Property("memory holds the latest observation", prop.ForAll(
		func(obsPending []int, obsPresent []bool, priorPending []int, priorPresent []bool) bool {
			obs, prior := counts(obsPending, obsPresent), counts(priorPending, priorPresent)
			mem := clone(prior)
			Builds(observation(obs), mem, DefaultWaveThreshold)
			for v, p := range obs {
				if mem[v] != p {
					return false
				}
			}
			for v, p := range prior {
				if _, observed := obs[v]; !observed && mem[v] != p {
					return false
				}
			}
			return true
		},
		pendingGen, presentGen, pendingGen, presentGen,
	))

	properties.Property("unseen builds produce exactly one new-build event", prop.ForAll(
		func(obsPending []int, obsPresent []bool, priorPending []int, priorPresent []bool) bool {
			obs, prior := counts(obsPending, obsPresent), counts(priorPending, priorPresent)
			mem := clone(prior)
			events := Builds(observation(obs), mem, DefaultWaveThreshold)
			perVersion := map[string]int{}
			for _, e := range events {
				perVersion[e.Version]++
				_, wasKnown := prior[e.Version]
				if (e.Kind == model.EventNewBuild) == wasKnown {
					return false
				}
				if e.Kind == model.EventWave && e.Delta < DefaultWaveThreshold {
					return false
				}
			}
			for v := range obs {
				if _, wasKnown := prior[v]; !wasKnown && perVersion[v] != 1 {
					return false
				}
			}
			return true
		},
		pendingGen, presentGen, pendingGen, presentGen,
	))

	properties.TestingRun(t)
}
