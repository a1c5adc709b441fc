package storage

import "testing"

func TestBuildDatasetKey(t *testing.T) {
	key, err := BuildDatasetKey("/bench/gtfs/", "seed-42", "stop_times.txt")
	if err != nil {
		t.Fatalf("BuildDatasetKey() error = %v", err)
	}
	want := "bench/gtfs/seed-42/stop_times.txt"
	if key != want {
		t.Fatalf("BuildDatasetKey() = %q, want %q", key, want)
	}
}

func TestBuildDatasetKeyWithoutPrefix(t *testing.T) {
	key, err := BuildDatasetKey("", "scenario", "trips.txt")
	if err != nil {
		t.Fatalf("BuildDatasetKey() error = %v", err)
	}
	if key != "scenario/trips.txt" {
		t.Fatalf("BuildDatasetKey() = %q", key)
	}
}

func TestBuildDatasetKeyRejectsInvalidComponent(t *testing.T) {
	if _, err := BuildDatasetKey("../oops", "scenario", "trips.txt"); err == nil {
		t.Fatal("expected invalid prefix error")
	}
	if _, err := BuildDatasetKey("", "scenario", "../trips.txt"); err == nil {
		t.Fatal("expected invalid file name error")
	}
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"gtfs/seed-1/stop_times.txt", "/scenario/trips.txt", "trips.txt"} {
		if err := ValidateKey(key); err != nil {
			t.Fatalf("ValidateKey(%q) error = %v", key, err)
		}
	}
	for _, key := range []string{"", "../secrets.txt", "gtfs//trips.txt", "gtfs/./trips.txt", "gtfs/trips.txt/"} {
		if err := ValidateKey(key); err == nil {
			t.Fatalf("ValidateKey(%q) expected error", key)
		}
	}
}
