package messaging

import "testing"

func TestStagedSubject(t *testing.T) {
	tests := []struct {
		prefix string
		table  string
		want   string
	}{
		{"", "doctors", "cdc.staged.doctors"},
		{"hospital.staged", "visits", "hospital.staged.visits"},
		{"", "public.doctors", "cdc.staged.public_doctors"},
		{"", "", "cdc.staged.unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := StagedSubject(tt.prefix, tt.table); got != tt.want {
				t.Errorf("StagedSubject(%q, %q) = %q, want %q", tt.prefix, tt.table, got, tt.want)
			}
		})
	}
}

func TestDLQSubject(t *testing.T) {
	if got := DLQSubject("malformed"); got != "cdc.dlq.malformed" {
		t.Errorf("DLQSubject() = %q", got)
	}
	if got := DLQSubject("a>b"); got != "cdc.dlq.a_b" {
		t.Errorf("DLQSubject() = %q", got)
	}
}
