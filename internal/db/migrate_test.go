package db

import "testing"

func TestPendingSkipsApplied(t *testing.T) {
	all, err := Pending(nil)
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	if len(all) == 0 || all[0] != "0001_init.sql" {
		t.Fatalf("unexpected migrations %v", all)
	}

	rest, err := Pending(map[string]bool{"0001_init.sql": true})
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	for _, name := range rest {
		if name == "0001_init.sql" {
			t.Fatalf("applied migration listed again")
		}
	}
}
