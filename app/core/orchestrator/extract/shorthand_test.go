package extract

import "testing"

func TestEditShorthand(t *testing.T) {
	cases := []struct {
		input   string
		want    string
		matched bool
	}{
		{"edit it to buy oat milk", "buy oat milk", true},
		{"change that to call mom at 6", "call mom at 6", true},
		{"rename the task to standup notes", "standup notes", true},
		{"Edit It To shout louder", "shout louder", true},
		{"edit last to water plants", "water plants", true},
		{"edit previous to water plants", "water plants", true},
		{"change this into a reminder", "a reminder", true},
		{"edit my calendar", "", false},
		{"please change that to X", "", false},
		{"delete it", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := EditShorthand(tc.input)
		if ok != tc.matched {
			t.Fatalf("EditShorthand(%q) matched=%v, want %v", tc.input, ok, tc.matched)
		}
		if got != tc.want {
			t.Fatalf("EditShorthand(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
