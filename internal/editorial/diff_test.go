package editorial

import (
	"reflect"
	"testing"
)

func TestDiff(t *testing.T) {
	prev := map[string]any{
		"commission_rate": "30%",
		"payout_model":    "CPS",
		"restrictions":    "no brand bidding",
	}
	next := map[string]any{
		"commission_rate":      "40%",
		"payout_model":         "CPS",
		"cookie_duration_days": 30,
	}

	got := Diff(prev, next)
	want := []PatchOp{
		{Op: "replace", Path: "/commission_rate", From: "30%", To: "40%"},
		{Op: "add", Path: "/cookie_duration_days", To: 30},
		{Op: "remove", Path: "/restrictions", From: "no brand bidding"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("diff mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestDiffEqualMapsIsEmpty(t *testing.T) {
	m := map[string]any{"a": 1, "b": []string{"x"}}
	if got := Diff(m, m); len(got) != 0 {
		t.Fatalf("expected empty diff, got %+v", got)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	current := map[string]any{"a": 1}
	changes := map[string]any{"b": 2}
	out := merge(current, changes)
	if len(out) != 2 || out["a"] != 1 || out["b"] != 2 {
		t.Fatalf("unexpected merge: %v", out)
	}
	if len(current) != 1 || len(changes) != 1 {
		t.Fatal("merge mutated an input")
	}
}
