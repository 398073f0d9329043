package region

import "testing"

func TestResolve_EveryCodeMapsToOneRegion(t *testing.T) {
	table := NewTable(nil)

	seen := make(map[string]Region)
	for _, r := range All {
		for _, code := range table.Jurisdictions(r) {
			if prev, ok := seen[code]; ok {
				t.Errorf("code %s mapped to both %s and %s", code, prev, r)
			}
			seen[code] = r
		}
	}

	if len(seen) != table.Size() {
		t.Errorf("union of region jurisdiction sets has %d codes, table has %d", len(seen), table.Size())
	}
	for code, want := range seen {
		if got := table.Resolve(code); got != want {
			t.Errorf("Resolve(%s) = %s, want %s", code, got, want)
		}
	}
}

func TestResolve_CaseInsensitive(t *testing.T) {
	table := NewTable(nil)

	if got := table.Resolve("ny"); got != Northeast {
		t.Errorf("Resolve(ny) = %s, want northeast", got)
	}
	if got := table.Resolve(" tx "); got != Southwest {
		t.Errorf("Resolve(' tx ') = %s, want southwest", got)
	}
}

func TestResolve_UnmappedIsUnscoped(t *testing.T) {
	table := NewTable(nil)

	for _, code := range []string{"", "ZZ", "PR", "ontario"} {
		if got := table.Resolve(code); got != Unscoped {
			t.Errorf("Resolve(%q) = %s, want unscoped", code, got)
		}
	}
}

func TestNewTable_Overrides(t *testing.T) {
	table := NewTable(map[string]string{
		"PR": "southeast",
		"ny": "west",
		"XX": "not-a-region", // ignored
		"YY": "unscoped",     // ignored: unscoped cannot be assigned
	})

	if got := table.Resolve("PR"); got != Southeast {
		t.Errorf("Resolve(PR) = %s, want southeast", got)
	}
	if got := table.Resolve("NY"); got != West {
		t.Errorf("override Resolve(NY) = %s, want west", got)
	}
	if got := table.Resolve("XX"); got != Unscoped {
		t.Errorf("Resolve(XX) = %s, want unscoped", got)
	}
	if got := table.Resolve("YY"); got != Unscoped {
		t.Errorf("Resolve(YY) = %s, want unscoped", got)
	}
}

func TestAdjacency_SymmetricAndWithinBounds(t *testing.T) {
	for _, r := range All {
		neighbors := Adjacent(r)
		if len(neighbors) == 0 {
			t.Errorf("region %s has no neighbors", r)
		}
		for _, n := range neighbors {
			if n == Unscoped {
				t.Errorf("region %s lists unscoped as a neighbor", r)
			}
			if n == r {
				t.Errorf("region %s lists itself as a neighbor", r)
			}
			back := false
			for _, nn := range Adjacent(n) {
				if nn == r {
					back = true
					break
				}
			}
			if !back {
				t.Errorf("adjacency not symmetric: %s -> %s but not back", r, n)
			}
		}
	}
}

func TestCandidates(t *testing.T) {
	got := Candidates(Northeast)
	if len(got) != 3 {
		t.Fatalf("Candidates(northeast) = %v, want 3 regions", got)
	}
	if got[0] != Northeast {
		t.Errorf("primary region must come first, got %s", got[0])
	}
	for _, r := range got {
		if r == Unscoped {
			t.Error("candidates must exclude unscoped")
		}
	}

	if c := Candidates(Unscoped); c != nil {
		t.Errorf("Candidates(unscoped) = %v, want nil", c)
	}
}
