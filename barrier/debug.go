package barrier

import (
	"fmt"
	"sort"
	"strings"

	"go.streamcore.dev/engine/ids"
)

// debugString walks graphStates and renders each partial graph's epochs in
// ascending order. Per spec.md §7, when the Issued remaining-actor set of
// one epoch shares members with the epoch immediately before it, only the
// delta (additions/removals) plus a count of unchanged members is printed,
// keeping output proportional to the delta rather than the full actor
// count -- this matters because production partial graphs can carry
// thousands of actors across dozens of in-flight epochs.
func debugString(m *Manager) string {
	var graphIDs = make([]ids.PartialGraphID, 0, len(m.graphStates))
	for id := range m.graphStates {
		graphIDs = append(graphIDs, id)
	}
	sort.Slice(graphIDs, func(i, j int) bool { return graphIDs[i] < graphIDs[j] })

	var sb strings.Builder
	for _, id := range graphIDs {
		fmt.Fprintf(&sb, "partial_graph %d:\n", id)
		writeGraphDebug(&sb, m.graphStates[id])
	}
	return sb.String()
}

func writeGraphDebug(sb *strings.Builder, g *PartialGraphState) {
	var prevRemaining ids.ActorSet
	var havePrev bool

	for _, key := range g.sortedEpoch {
		var st = g.epochStates[key]
		switch st.state {
		case innerIssued:
			writeIssuedDebug(sb, key, st.remainingActors, prevRemaining, havePrev)
			prevRemaining, havePrev = st.remainingActors, true
		case innerAllCollected:
			fmt.Fprintf(sb, "  epoch %d: AllCollected\n", key)
			havePrev = false
		case innerCompleted:
			if st.result.Err != nil {
				fmt.Fprintf(sb, "  epoch %d: Completed (sync error: %v)\n", key, st.result.Err)
			} else {
				fmt.Fprintf(sb, "  epoch %d: Completed\n", key)
			}
			havePrev = false
		}
	}
}

func writeIssuedDebug(sb *strings.Builder, prevEpoch uint64, remaining, prevRemaining ids.ActorSet, havePrev bool) {
	if !havePrev {
		fmt.Fprintf(sb, "  epoch %d: Issued remaining=%v\n", prevEpoch, sortedActorSlice(remaining))
		return
	}

	var added, removed, unchanged = diffActorSets(prevRemaining, remaining)
	if len(added) == 0 && len(removed) == 0 {
		fmt.Fprintf(sb, "  epoch %d: Issued remaining unchanged from previous epoch (...and %d more)\n", prevEpoch, unchanged)
		return
	}
	fmt.Fprintf(sb, "  epoch %d: Issued remaining +%v -%v (...and %d more unchanged)\n", prevEpoch, added, removed, unchanged)
}

// diffActorSets reports the actors present only in next (added), present
// only in prev (removed), and the count present in both (unchanged).
func diffActorSets(prev, next ids.ActorSet) (added, removed []ids.ActorID, unchanged int) {
	for a := range next {
		if _, ok := prev[a]; ok {
			unchanged++
		} else {
			added = append(added, a)
		}
	}
	for a := range prev {
		if _, ok := next[a]; !ok {
			removed = append(removed, a)
		}
	}
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return added, removed, unchanged
}

func sortedActorSlice(s ids.ActorSet) []ids.ActorID {
	var out = s.Slice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
