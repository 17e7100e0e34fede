package serving

import "testing"

func buildSet(states ...State) []*servable {
	set := make([]*servable, len(states))
	for i, st := range states {
		set[i] = &servable{
			id:    ServableID{Name: "m", Version: int64(i + 1)},
			state: st,
		}
	}
	return set
}

func TestSelectVersion(t *testing.T) {
	cases := []struct {
		name      string
		states    []State
		requested int64
		want      int64
		errCheck  func(error) bool
	}{
		{
			name:      "latest picks highest available",
			states:    []State{StateAvailable, StateAvailable, StateAvailable},
			requested: 0,
			want:      3,
		},
		{
			name:      "latest skips retiring head",
			states:    []State{StateAvailable, StateAvailable, StateRetiring},
			requested: 0,
			want:      2,
		},
		{
			name:      "latest with nothing available",
			states:    []State{StateRetiring, StateRetiring},
			requested: 0,
			errCheck:  IsNoAvailableVersion,
		},
		{
			name:      "explicit available",
			states:    []State{StateAvailable, StateAvailable},
			requested: 1,
			want:      1,
		},
		{
			name:      "explicit retiring",
			states:    []State{StateRetiring, StateAvailable},
			requested: 1,
			errCheck:  IsVersionNotAvailable,
		},
		{
			name:      "explicit missing",
			states:    []State{StateAvailable},
			requested: 7,
			errCheck:  IsVersionNotAvailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sv, err := selectVersion("m", buildSet(tc.states...), tc.requested)
			if tc.errCheck != nil {
				if err == nil || !tc.errCheck(err) {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("selectVersion: %v", err)
			}
			if sv.id.Version != tc.want {
				t.Fatalf("selected v%d, want v%d", sv.id.Version, tc.want)
			}
		})
	}
}
