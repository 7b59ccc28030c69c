package vectorclock

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Clock
		want Order
	}{
		{"equal empty", Clock{}, Clock{}, Equal},
		{"before", Clock{"w1": 1}, Clock{"w1": 2}, Before},
		{"after", Clock{"w1": 2}, Clock{"w1": 1}, After},
		{"concurrent", Clock{"w1": 1, "w2": 0}, Clock{"w1": 0, "w2": 1}, Concurrent},
		{"before with extra key at zero", Clock{"w1": 1}, Clock{"w1": 1, "w2": 1}, Before},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIncrementMonotonic(t *testing.T) {
	c := New()
	c1 := c.Increment("w1")
	c2 := c1.Increment("w1")

	if Compare(c1, c2) != Before {
		t.Fatalf("expected c1 before c2, got %v", Compare(c1, c2))
	}
	if c["w1"] != 0 {
		t.Fatalf("Increment must not mutate receiver, got %v", c)
	}
}

func TestMergeTakesElementwiseMaxThenIncrements(t *testing.T) {
	a := Clock{"w1": 3, "w2": 1}
	b := Clock{"w1": 1, "w2": 5, "w3": 2}

	merged := a.Merge(b, "w1")

	want := Clock{"w1": 4, "w2": 5, "w3": 2}
	for k, v := range want {
		if merged[k] != v {
			t.Errorf("merged[%q] = %d, want %d", k, merged[k], v)
		}
	}
}

func TestDominates(t *testing.T) {
	a := Clock{"w1": 2}
	b := Clock{"w1": 1}
	if !Dominates(a, b) {
		t.Errorf("expected a to dominate b")
	}
	if Dominates(b, a) {
		t.Errorf("did not expect b to dominate a")
	}
	concurrent := Clock{"w2": 1}
	if Dominates(a, concurrent) || Dominates(concurrent, a) {
		t.Errorf("concurrent clocks must not dominate each other")
	}
}
