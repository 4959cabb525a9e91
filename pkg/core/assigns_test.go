package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAssigns_TracksOnlyRealChanges(t *testing.T) {
	a := NewAssigns()
	a.Set("form:apply", "<form>1</form>")
	a.Set("chips:roles", "<div></div>")

	if diff := cmp.Diff([]string{"chips:roles", "form:apply"}, a.TakeChanged("")); diff != "" {
		t.Errorf("changed mismatch (-want +got):\n%s", diff)
	}

	a.Set("form:apply", "<form>1</form>")
	if a.Pending() {
		t.Error("setting an equal value must not count as a change")
	}

	a.Set("form:apply", "<form>2</form>")
	if got := a.GetString("form:apply"); got != "<form>2</form>" {
		t.Errorf("unexpected value %q", got)
	}
	if !a.Pending() {
		t.Error("expected a pending change")
	}
}

func TestAssigns_TakeChangedByPrefix(t *testing.T) {
	a := NewAssigns()
	a.Set("form:b", "x")
	a.Set("form:a", "y")
	a.Set("active:a", 1)

	if diff := cmp.Diff([]string{"form:a", "form:b"}, a.TakeChanged("form:")); diff != "" {
		t.Errorf("changed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"active:a"}, a.TakeChanged("")); diff != "" {
		t.Errorf("other prefixes should stay pending (-want +got):\n%s", diff)
	}
	if a.Get("active:a") != 1 || a.GetString("missing") != "" {
		t.Error("unexpected getters")
	}
}

func TestAssigns_TypeChangeIsAChange(t *testing.T) {
	a := NewAssigns()
	a.Set("step", 1)
	a.TakeChanged("")

	a.Set("step", "1")
	if diff := cmp.Diff([]string{"step"}, a.TakeChanged("")); diff != "" {
		t.Errorf("changed mismatch (-want +got):\n%s", diff)
	}
	a.Set("list", []string{"a"})
	a.TakeChanged("")
	a.Set("list", []string{"a"})
	if a.Pending() {
		t.Error("equal slices must not count as a change")
	}
}
