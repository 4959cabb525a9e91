package stepper

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/saludstaffing/applykit/pkg/forms"
)

// fakeValidator reports a fixed validity per step and records calls.
type fakeValidator struct {
	invalid map[int]bool
	steps   []int
}

func (f *fakeValidator) ValidateStep(i int, opts ...forms.StepOption) bool {
	f.steps = append(f.steps, i)
	return !f.invalid[i]
}

func (f *fakeValidator) ValidateAll() forms.Result {
	for i := 0; i < 3; i++ {
		if f.invalid[i] {
			return forms.Result{FirstInvalidStep: i}
		}
	}
	return forms.Result{Valid: true, FirstInvalidStep: forms.NoStep}
}

func newMachine(t *testing.T, invalid ...int) (*Machine, *fakeValidator) {
	t.Helper()
	v := &fakeValidator{invalid: map[int]bool{}}
	for _, i := range invalid {
		v.invalid[i] = true
	}
	m, err := New(3, v)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, v
}

func TestNew_NoSteps(t *testing.T) {
	if _, err := New(0, &fakeValidator{}); err != ErrNoSteps {
		t.Errorf("expected ErrNoSteps, got %v", err)
	}
}

func pct(done, count float64) float64 {
	return done / count * 100
}

func TestDerive(t *testing.T) {
	tests := []struct {
		state State
		want  View
	}{
		{
			State{Active: 0, Count: 3},
			View{
				Active: 0, Count: 3,
				StepHidden:    []bool{false, true, true},
				PrevDisabled:  true,
				SubmitHidden:  true,
				Progress:      pct(1, 3),
				ProgressValue: "33.33333333333333%",
				Status:        "Step 1 of 3",
			},
		},
		{
			State{Active: 1, Count: 3},
			View{
				Active: 1, Count: 3,
				StepHidden:    []bool{true, false, true},
				SubmitHidden:  true,
				Progress:      pct(2, 3),
				ProgressValue: "66.66666666666666%",
				Status:        "Step 2 of 3",
			},
		},
		{
			State{Active: 2, Count: 3},
			View{
				Active: 2, Count: 3,
				StepHidden:    []bool{true, true, false},
				NextHidden:    true,
				Progress:      100,
				ProgressValue: "100%",
				Status:        "Step 3 of 3",
			},
		},
		{
			State{Active: 0, Count: 1},
			View{
				Active: 0, Count: 1,
				StepHidden:    []bool{false},
				PrevDisabled:  true,
				NextHidden:    true,
				Progress:      100,
				ProgressValue: "100%",
				Status:        "Step 1 of 1",
			},
		},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Derive(tt.state)); diff != "" {
			t.Errorf("Derive(%+v) mismatch (-want +got):\n%s", tt.state, diff)
		}
	}
}

func TestGoTo_ClampsAndShowsExactlyOne(t *testing.T) {
	m, _ := newMachine(t)
	for _, target := range []int{-5, 0, 1, 2, 3, 42} {
		v := m.GoTo(target)
		want := clamp(target, 0, 2)
		if v.Active != want || m.State().Active != want {
			t.Errorf("GoTo(%d): active %d, want %d", target, v.Active, want)
		}
		visible := 0
		for i, hidden := range v.StepHidden {
			if !hidden {
				visible++
				if i != want {
					t.Errorf("GoTo(%d): step %d visible", target, i)
				}
			}
		}
		if visible != 1 {
			t.Errorf("GoTo(%d): %d visible steps", target, visible)
		}
		if !v.Focus {
			t.Errorf("GoTo(%d): expected focus request", target)
		}
	}
}

func TestGoTo_Idempotent(t *testing.T) {
	m, _ := newMachine(t)
	first := m.GoTo(1)
	second := m.GoTo(1)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("GoTo not idempotent (-first +second):\n%s", diff)
	}
}

func TestNext(t *testing.T) {
	t.Run("invalid stays", func(t *testing.T) {
		m, v := newMachine(t, 0)
		out := m.Next()
		if out.Moved || m.State().Active != 0 {
			t.Errorf("expected to stay on step 0, got %+v", m.State())
		}
		if out.View.Focus {
			t.Error("staying must not request step focus")
		}
		if diff := cmp.Diff([]int{0}, v.steps); diff != "" {
			t.Errorf("validated steps mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("valid advances", func(t *testing.T) {
		m, _ := newMachine(t)
		out := m.Next()
		if !out.Moved || m.State().Active != 1 {
			t.Fatalf("expected step 1, got %+v", m.State())
		}
		if out.View.Status != "Step 2 of 3" || !out.View.SubmitHidden {
			t.Errorf("unexpected view %+v", out.View)
		}
	})

	t.Run("last step clamps", func(t *testing.T) {
		m, _ := newMachine(t)
		m.GoTo(2)
		m.Next()
		if m.State().Active != 2 {
			t.Errorf("expected to stay on last step, got %d", m.State().Active)
		}
	})
}

func TestPrev_Ungated(t *testing.T) {
	m, v := newMachine(t, 0, 1)
	m.GoTo(1)
	out := m.Prev()
	if m.State().Active != 0 || !out.Moved {
		t.Errorf("expected step 0, got %d", m.State().Active)
	}
	if len(v.steps) != 0 {
		t.Errorf("prev must not validate, validated %v", v.steps)
	}

	out = m.Prev()
	if out.View.Active != 0 || !out.View.PrevDisabled {
		t.Errorf("prev on first step should clamp, got %+v", out.View)
	}
}

func TestSubmit(t *testing.T) {
	t.Run("invalid returns to first invalid step", func(t *testing.T) {
		m, v := newMachine(t, 0)
		m.GoTo(2)
		out := m.Submit()
		if !out.PreventDefault || out.Proceed {
			t.Errorf("expected prevented submission, got %+v", out)
		}
		if m.State().Active != 0 || out.View.Active != 0 {
			t.Errorf("expected step 0, got %d", m.State().Active)
		}
		if diff := cmp.Diff([]int{0}, v.steps); diff != "" {
			t.Errorf("expected focusing revalidation of step 0 (-want +got):\n%s", diff)
		}
	})

	t.Run("valid proceeds", func(t *testing.T) {
		m, _ := newMachine(t)
		m.GoTo(2)
		out := m.Submit()
		if !out.Proceed || out.PreventDefault || out.Moved {
			t.Errorf("expected submission to proceed, got %+v", out)
		}
		if m.State().Active != 2 {
			t.Errorf("expected to stay on step 2, got %d", m.State().Active)
		}
	})
}

func TestKeydown(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		key     Key
		active  int
		prevent bool
	}{
		{"enter advances", 0, Key{Key: "Enter", Target: forms.KindText}, 1, true},
		{"shift enter ignored", 0, Key{Key: "Enter", Shift: true, Target: forms.KindText}, 0, false},
		{"enter in textarea ignored", 1, Key{Key: "Enter", Target: forms.KindTextarea}, 1, false},
		{"enter on last step native", 2, Key{Key: "Enter", Target: forms.KindText}, 2, false},
		{"other key ignored", 0, Key{Key: "a", Target: forms.KindText}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newMachine(t)
			m.GoTo(tt.start)
			out := m.Keydown(tt.key)
			if m.State().Active != tt.active {
				t.Errorf("expected step %d, got %d", tt.active, m.State().Active)
			}
			if out.PreventDefault != tt.prevent {
				t.Errorf("expected prevent=%v, got %v", tt.prevent, out.PreventDefault)
			}
		})
	}
}

func TestKeydown_InvalidStillPrevents(t *testing.T) {
	m, _ := newMachine(t, 0)
	out := m.Keydown(Key{Key: "Enter", Target: forms.KindEmail})
	if !out.PreventDefault || m.State().Active != 0 {
		t.Errorf("expected prevented keydown on invalid step, got %+v", out)
	}
}
