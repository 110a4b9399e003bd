package utils

import "testing"

func TestTextBar(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		total int64
		want  string
	}{
		{
			name:  "Full",
			value: 10,
			total: 10,
			want:  "[■■■■■■■■■■] 100%",
		},
		{
			name:  "Half",
			value: 5,
			total: 10,
			want:  "[■■■■■□□□□□] 50%",
		},
		{
			name:  "Zero value",
			value: 0,
			total: 10,
			want:  "[□□□□□□□□□□] 0%",
		},
		{
			name:  "Zero total",
			value: 5,
			total: 0,
			want:  "[□□□□□□□□□□] 0%",
		},
		{
			name:  "Over total caps at 100",
			value: 20,
			total: 10,
			want:  "[■■■■■■■■■■] 100%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextBar(tt.value, tt.total); got != tt.want {
				t.Errorf("TextBar(%d, %d) = %q, want %q", tt.value, tt.total, got, tt.want)
			}
		})
	}
}

func TestGenerateRandomID(t *testing.T) {
	id := GenerateRandomID(16)
	if len(id) != 16 {
		t.Errorf("length = %d, want 16", len(id))
	}

	other := GenerateRandomID(16)
	if id == other {
		t.Error("two generated IDs are identical")
	}
}
