package editorial

import (
	"reflect"
	"sort"
)

// PatchOp is one structured diff operation between two extracted snapshots.
type PatchOp struct {
	Op   string `json:"op"` // add | replace | remove
	Path string `json:"path"`
	From any    `json:"from,omitempty"`
	To   any    `json:"to,omitempty"`
}

// Diff computes the patch operations turning prev into next. Keys are
// visited in sorted order so the output is deterministic.
func Diff(prev, next map[string]any) []PatchOp {
	keys := make(map[string]struct{}, len(prev)+len(next))
	for k := range prev {
		keys[k] = struct{}{}
	}
	for k := range next {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var ops []PatchOp
	for _, k := range sorted {
		before, hadBefore := prev[k]
		after, hasAfter := next[k]
		switch {
		case !hadBefore && hasAfter:
			ops = append(ops, PatchOp{Op: "add", Path: "/" + k, To: after})
		case hadBefore && !hasAfter:
			ops = append(ops, PatchOp{Op: "remove", Path: "/" + k, From: before})
		case !reflect.DeepEqual(before, after):
			ops = append(ops, PatchOp{Op: "replace", Path: "/" + k, From: before, To: after})
		}
	}
	return ops
}

// merge applies changes on top of current without mutating either input.
func merge(current, changes map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(changes))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range changes {
		out[k] = v
	}
	return out
}
