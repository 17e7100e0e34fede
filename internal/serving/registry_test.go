package serving

import (
	"testing"
)

func TestPublish_RejectsDuplicateVersion(t *testing.T) {
	reg := newRegistry(0)
	mustPublish(t, reg, "m", 1)
	_, err := reg.Publish(ServableID{Name: "m", Version: 1}, &fakeEngine{})
	if !IsDuplicateVersion(err) {
		t.Fatalf("expected DuplicateVersion, got %v", err)
	}
}

func TestAvailableVersions_TracksPublishes(t *testing.T) {
	reg := newRegistry(0)
	collect := func() []int64 {
		var out []int64
		for v := range reg.AvailableVersions("m") {
			out = append(out, v)
		}
		return out
	}

	if got := collect(); len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
	mustPublish(t, reg, "m", 1)
	mustPublish(t, reg, "m", 2)
	mustPublish(t, reg, "m", 3)
	if got := collect(); len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("unexpected versions after publishes: %v", got)
	}

	// Retire+unload v1; the sequence reflects the remaining set.
	if err := reg.MarkRetiring("m", 1); err != nil {
		t.Fatalf("MarkRetiring: %v", err)
	}
	if got := collect(); len(got) != 2 || got[0] != 2 {
		t.Fatalf("retiring version still listed: %v", got)
	}
	if err := reg.MarkUnloaded("m", 1); err != nil {
		t.Fatalf("MarkUnloaded: %v", err)
	}
	if got := collect(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("unexpected versions after unload: %v", got)
	}

	// The sequence is restartable: a second pass sees the same snapshot.
	if got := collect(); len(got) != 2 {
		t.Fatalf("sequence not restartable: %v", got)
	}
}

func TestAvailableVersions_EarlyBreak(t *testing.T) {
	reg := newRegistry(0)
	mustPublish(t, reg, "m", 1)
	mustPublish(t, reg, "m", 2)
	count := 0
	for range reg.AvailableVersions("m") {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected 1 yield before break, got %d", count)
	}
}

func TestPublish_RetainPolicyRetiresOldest(t *testing.T) {
	reg := newRegistry(2)
	mustPublish(t, reg, "m", 1)
	mustPublish(t, reg, "m", 2)
	if _, err := reg.Publish(ServableID{Name: "m", Version: 3}, &fakeEngine{}); err != nil {
		t.Fatalf("publish v3: %v", err)
	}

	sv, ok := reg.Lookup("m", 1)
	if !ok || sv.state != StateRetiring {
		t.Fatalf("expected v1 retiring, got %+v ok=%v", sv, ok)
	}
	for _, want := range []int64{2, 3} {
		sv, ok := reg.Lookup("m", want)
		if !ok || sv.state != StateAvailable {
			t.Fatalf("expected v%d available", want)
		}
	}
}

func TestMarkUnloaded_RequiresRetirement(t *testing.T) {
	reg := newRegistry(0)
	mustPublish(t, reg, "m", 1)
	if err := reg.MarkUnloaded("m", 1); !IsInvalidArgument(err) {
		t.Fatalf("expected InvalidArgument for unload of available version, got %v", err)
	}
}

func TestMarkUnloaded_StillInUse(t *testing.T) {
	reg := newRegistry(0)
	mustPublish(t, reg, "m", 1)
	sv, err := reg.Resolve("m", 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := reg.MarkRetiring("m", 1); err != nil {
		t.Fatalf("MarkRetiring: %v", err)
	}
	if err := reg.MarkUnloaded("m", 1); !IsStillInUse(err) {
		t.Fatalf("expected StillInUse, got %v", err)
	}
	sv.release()
	if err := reg.MarkUnloaded("m", 1); err != nil {
		t.Fatalf("MarkUnloaded after release: %v", err)
	}
	if _, ok := reg.Lookup("m", 1); ok {
		t.Fatalf("entry still present after unload")
	}
	if got := reg.Models(); len(got) != 0 {
		t.Fatalf("expected empty registry, got %v", got)
	}
}

func TestResolve_ErrorKinds(t *testing.T) {
	reg := newRegistry(0)
	mustPublish(t, reg, "m", 1)

	if _, err := reg.Resolve("nope", 0); !IsModelNotFound(err) {
		t.Fatalf("expected ModelNotFound, got %v", err)
	}
	if _, err := reg.Resolve("m", 9); !IsVersionNotAvailable(err) {
		t.Fatalf("expected VersionNotAvailable, got %v", err)
	}
	if err := reg.MarkRetiring("m", 1); err != nil {
		t.Fatalf("MarkRetiring: %v", err)
	}
	if _, err := reg.Resolve("m", 0); !IsNoAvailableVersion(err) {
		t.Fatalf("expected NoAvailableVersion, got %v", err)
	}
	if _, err := reg.Resolve("m", 1); !IsVersionNotAvailable(err) {
		t.Fatalf("expected VersionNotAvailable for retiring explicit version, got %v", err)
	}
}

func TestMarkRetiring_Idempotent(t *testing.T) {
	reg := newRegistry(0)
	mustPublish(t, reg, "m", 1)
	for i := 0; i < 2; i++ {
		if err := reg.MarkRetiring("m", 1); err != nil {
			t.Fatalf("MarkRetiring #%d: %v", i+1, err)
		}
	}
	sv, _ := reg.Lookup("m", 1)
	if sv.state != StateRetiring {
		t.Fatalf("state=%s", sv.state)
	}
}
