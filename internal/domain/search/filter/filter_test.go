package filter

import (
	"math"
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

func TestNewAnyOf_SortsAndDedupes(t *testing.T) {
	v, err := NewAnyOf("mit", "", "apache", "mit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := v.Values()
	if len(got) != 2 || got[0] != "apache" || got[1] != "mit" {
		t.Errorf("Values() = %v", got)
	}
	if v.Kind() != AnyOf {
		t.Errorf("Kind() = %q", v.Kind())
	}
	if !v.Contains("mit") || v.Contains("gpl") {
		t.Error("Contains mismatch")
	}
}

func TestNewAnyOf_Empty(t *testing.T) {
	_, err := NewAnyOf("", "")
	if err == nil {
		t.Fatal("expected error for empty selection")
	}
	if !strings.Contains(err.Error(), "at least one") {
		t.Errorf("error = %q", err)
	}
}

func TestNewRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max *float64
		wantErr  string
	}{
		{"min only", floatPtr(1), nil, ""},
		{"max only", nil, floatPtr(10), ""},
		{"both", floatPtr(1), floatPtr(10), ""},
		{"equal bounds", floatPtr(5), floatPtr(5), ""},
		{"none", nil, nil, "at least one"},
		{"inverted", floatPtr(10), floatPtr(1), "greater than"},
		{"NaN min", floatPtr(math.NaN()), nil, "not a finite"},
		{"infinite max", nil, floatPtr(math.Inf(1)), "not a finite"},
		{"negative infinite min", floatPtr(math.Inf(-1)), floatPtr(5), "not a finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewRange(tt.min, tt.max)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Kind() != Range {
				t.Errorf("Kind() = %q", v.Kind())
			}
		})
	}
}

func TestRange_CopiesBounds(t *testing.T) {
	lo := 1.0
	v, _ := NewRange(&lo, nil)
	lo = 99
	if *v.Min() != 1 {
		t.Errorf("Min() = %v, range must not alias caller memory", *v.Min())
	}
}

func TestInRange(t *testing.T) {
	v, _ := NewRange(floatPtr(1), floatPtr(10))
	for x, want := range map[float64]bool{0: false, 1: true, 5: true, 10: true, 11: false} {
		if got := v.InRange(x); got != want {
			t.Errorf("InRange(%v) = %v", x, got)
		}
	}
}

func TestWithWithout(t *testing.T) {
	v, _ := NewAnyOf("b")
	v, err := v.With("a")
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if got := v.Values(); len(got) != 2 || got[0] != "a" {
		t.Errorf("Values() = %v", got)
	}

	rest, ok := v.Without("a")
	if !ok || len(rest.Values()) != 1 {
		t.Fatalf("Without(a) = %v, %v", rest, ok)
	}
	if _, ok := rest.Without("b"); ok {
		t.Error("removing the last value must report empty")
	}
}

func TestWith_RangeRejected(t *testing.T) {
	r, _ := NewRange(floatPtr(1), nil)
	if _, err := r.With("x"); err == nil {
		t.Error("expected error adding a value to a range")
	}
}

func TestEqual(t *testing.T) {
	a, _ := NewAnyOf("x", "y")
	b, _ := NewAnyOf("y", "x")
	c, _ := NewAnyOf("x")
	r1, _ := NewRange(floatPtr(1), nil)
	r2, _ := NewRange(floatPtr(1), nil)
	r3, _ := NewRange(nil, floatPtr(1))

	if !a.Equal(b) {
		t.Error("order of construction must not matter")
	}
	if a.Equal(c) {
		t.Error("different sets compared equal")
	}
	if !r1.Equal(r2) || r1.Equal(r3) {
		t.Error("range equality mismatch")
	}
	if a.Equal(r1) {
		t.Error("kinds must differ")
	}
}
