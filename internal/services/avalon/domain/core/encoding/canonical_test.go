package encoding

import (
	"testing"
)

func TestCanonicalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{
			name:  "simple object sorted keys",
			input: map[string]any{"z": 1, "a": 2, "m": 3},
			want:  `{"a":2,"m":3,"z":1}`,
		},
		{
			name:  "nested object sorted keys",
			input: map[string]any{"b": map[string]any{"d": 1, "c": 2}, "a": 3},
			want:  `{"a":3,"b":{"c":2,"d":1}}`,
		},
		{
			name:  "array preserved order",
			input: []any{3, 1, 2},
			want:  `[3,1,2]`,
		},
		{
			name: "struct fields sorted",
			input: struct {
				Round int    `json:"round_number"`
				Phase string `json:"phase"`
			}{Round: 2, Phase: "team_vote"},
			want: `{"phase":"team_vote","round_number":2}`,
		},
		{
			name:  "html not escaped",
			input: map[string]any{"message": "<trust> & verify"},
			want:  `{"message":"<trust> & verify"}`,
		},
		{
			name:  "large integers keep precision",
			input: map[string]any{"seed": int64(9007199254740993)},
			want:  `{"seed":9007199254740993}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalJSON(tt.input)
			if err != nil {
				t.Fatalf("CanonicalJSON: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("CanonicalJSON = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCanonicalJSONRejectsUnsupported(t *testing.T) {
	if _, err := CanonicalJSON(map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestContentHash(t *testing.T) {
	a, err := ContentHash(map[string]any{"x": 1, "y": 2})
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	b, err := ContentHash(map[string]any{"y": 2, "x": 1})
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	if a != b {
		t.Fatalf("hash depends on key order: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("hash length = %d, want 32", len(a))
	}
	c, _ := ContentHash(map[string]any{"x": 1, "y": 3})
	if a == c {
		t.Fatal("different content produced same hash")
	}
}
