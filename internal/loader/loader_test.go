package loader

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// MemFS is an in-memory file system for testing.
type MemFS struct {
	files map[string][]byte
}

func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string][]byte)}
}

func (m *MemFS) AddFile(path string, content string) {
	m.files[path] = []byte(content)
}

func (m *MemFS) Open(name string) (fs.File, error) {
	return nil, fs.ErrNotExist
}

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *MemFS) Stat(path string) (fs.FileInfo, error) {
	if _, ok := m.files[path]; ok {
		return &memFileInfo{name: path}, nil
	}
	return nil, fs.ErrNotExist
}

type memFileInfo struct {
	name string
}

func (f *memFileInfo) Name() string       { return f.name }
func (f *memFileInfo) Size() int64        { return 0 }
func (f *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (f *memFileInfo) ModTime() time.Time { return time.Now() }
func (f *memFileInfo) IsDir() bool        { return false }
func (f *memFileInfo) Sys() any           { return nil }

func TestLoad(t *testing.T) {
	want := map[string]any{
		"login": map[string]any{"email": "a@b.c", "remember": true},
		"names": []any{map[string]any{"name": "senica", "age": int64(30)}},
		"ratio": 0.5,
	}

	memfs := NewMemFS()
	memfs.AddFile("/doc.json", `{
  "login": {"email": "a@b.c", "remember": true},
  "names": [{"name": "senica", "age": 30}],
  "ratio": 0.5
}`)
	memfs.AddFile("/doc.toml", `
ratio = 0.5

[login]
email = "a@b.c"
remember = true

[[names]]
name = "senica"
age = 30
`)
	memfs.AddFile("/doc.yaml", `
login:
  email: a@b.c
  remember: true
names:
  - name: senica
    age: 30
ratio: 0.5
`)
	memfs.AddFile("/doc.yml", "- 1\n- two\n")

	l := NewWithFS(memfs)
	for _, path := range []string{"/doc.json", "/doc.toml", "/doc.yaml"} {
		t.Run(path, func(t *testing.T) {
			got, err := l.Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}

	t.Run("sequence document", func(t *testing.T) {
		got, err := l.Load("/doc.yml")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]any{int64(1), "two"}, got); diff != "" {
			t.Errorf("(-want +got):\n%s", diff)
		}
	})
}

func TestLoadErrors(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/bad.json", "{\n  \"a\": 1,\n  \"b\": }\n")
	memfs.AddFile("/bad.toml", "a = \n")
	memfs.AddFile("/bad.yaml", "a: [1, 2\n")
	memfs.AddFile("/two.json", `{"a":1} {"b":2}`)
	memfs.AddFile("/doc.ini", "a=1")
	l := NewWithFS(memfs)

	t.Run("missing", func(t *testing.T) {
		if _, err := l.Load("/nope.json"); !errors.Is(err, ErrFileNotFound) {
			t.Errorf("err = %v, want ErrFileNotFound", err)
		}
		v, err := l.LoadOptional("/nope.json")
		if v != nil || err != nil {
			t.Errorf("LoadOptional = %v, %v", v, err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := l.Load("/doc.ini"); !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("err = %v, want ErrUnknownFormat", err)
		}
	})

	for _, path := range []string{"/bad.json", "/bad.toml", "/bad.yaml", "/two.json"} {
		t.Run(path, func(t *testing.T) {
			_, err := l.Load(path)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("err = %v, want *ParseError", err)
			}
			if perr.Path != path {
				t.Errorf("Path = %q", perr.Path)
			}
			if !strings.Contains(err.Error(), path) {
				t.Errorf("message %q does not name the file", err.Error())
			}
		})
	}

	t.Run("json position", func(t *testing.T) {
		_, err := l.Load("/bad.json")
		var perr *ParseError
		if errors.As(err, &perr) && perr.Line != 3 {
			t.Errorf("Line = %d, want 3", perr.Line)
		}
	})
}

func TestLoadAll(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/base.toml", "[login]\nemail = \"a\"\nname = \"n\"\n")
	memfs.AddFile("/override.json", `{"login": {"email": "b"}, "extra": [1]}`)

	got, err := NewWithFS(memfs).LoadAll("/base.toml", "/override.json")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"login": map[string]any{"email": "b", "name": "n"},
		"extra": []any{int64(1)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestLoadReader(t *testing.T) {
	got, err := LoadReader(strings.NewReader(`{"a": [1, 2.5, null]}`), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"a": []any{int64(1), 2.5, nil}}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"TOML", FormatTOML, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
