package loader

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFromAssignments(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]any
		wantErr error
	}{
		{
			name: "strings and json",
			in:   []string{"login.email=a@b.c", "login.remember=true", "n=3"},
			want: map[string]any{
				"login": map[string]any{"email": "a@b.c", "remember": true},
				"n":     int64(3),
			},
		},
		{
			name: "raw object",
			in:   []string{`user={"name":"senica","tags":["x"]}`},
			want: map[string]any{
				"user": map[string]any{"name": "senica", "tags": []any{"x"}},
			},
		},
		{
			name: "later wins",
			in:   []string{"a=1", "a=2"},
			want: map[string]any{"a": int64(2)},
		},
		{
			name: "value keeps equals",
			in:   []string{"expr=a=b"},
			want: map[string]any{"expr": "a=b"},
		},
		{
			name: "empty value",
			in:   []string{"a="},
			want: map[string]any{"a": ""},
		},
		{
			name:    "missing equals",
			in:      []string{"a"},
			wantErr: ErrInvalidAssignment,
		},
		{
			name:    "empty path",
			in:      []string{"=1"},
			wantErr: ErrInvalidAssignment,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAssignments(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitAssignment(t *testing.T) {
	path, v, err := SplitAssignment("names.0=[1,\"x\"]")
	if err != nil {
		t.Fatal(err)
	}
	if path != "names.0" {
		t.Errorf("path = %q", path)
	}
	if diff := cmp.Diff([]any{int64(1), "x"}, v); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	if _, v, _ := SplitAssignment("a=hello"); v != "hello" {
		t.Errorf("plain value = %v", v)
	}
}

func TestDeepMerge(t *testing.T) {
	src := map[string]any{"a": map[string]any{"y": []any{1}}}
	got := DeepMerge(map[string]any{"a": map[string]any{"x": 1}}, src)

	want := map[string]any{"a": map[string]any{"x": 1, "y": []any{1}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	src["a"].(map[string]any)["y"].([]any)[0] = 2
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merge shares src (-want +got):\n%s", diff)
	}
}
