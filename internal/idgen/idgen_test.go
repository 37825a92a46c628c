package idgen

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestV4_Generate(t *testing.T) {
	t.Run("generates valid UUID v4", func(t *testing.T) {
		id, err := NewV4().Generate()
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if id == uuid.Nil {
			t.Fatal("generated UUID is nil")
		}
		if id.Version() != 4 {
			t.Fatalf("UUID version = %d, want 4", id.Version())
		}
	})

	t.Run("generates distinct values (sanity check)", func(t *testing.T) {
		gen := NewV4()

		seen := make(map[uuid.UUID]struct{}, 50)
		for range 50 {
			id, err := gen.Generate()
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if _, ok := seen[id]; ok {
				t.Fatalf("generated duplicate UUID (extremely unlikely): %v", id)
			}
			seen[id] = struct{}{}
		}
	})
}

func TestV7_Generate(t *testing.T) {
	t.Run("generates valid UUID v7", func(t *testing.T) {
		id, err := NewV7().Generate()
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if id.Version() != 7 {
			t.Fatalf("UUID version = %d, want 7", id.Version())
		}
	})

	t.Run("accepts custom retry settings", func(t *testing.T) {
		id, err := NewV7(WithRetries(0)).Generate()
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if id.Version() != 7 {
			t.Fatalf("UUID version = %d, want 7", id.Version())
		}
	})
}

func TestFactory_New(t *testing.T) {
	tests := []struct {
		name    string
		version Version
		want    uuid.Version
	}{
		{"unknown defaults to v4", 0, 4},
		{"v4", V4, 4},
		{"v7", V7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := New(tt.version).Generate()
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if id.Version() != tt.want {
				t.Fatalf("UUID version = %d, want %d", id.Version(), tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"canonical v4", "3f2b8c1e-9d4a-4e6b-8a7c-1d2e3f4a5b6c", false},
		{"canonical v7", "01890a5d-ac96-774b-bcce-b302099a8057", false},
		{"canonical v1", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
		{"uppercase", "3F2B8C1E-9D4A-4E6B-8A7C-1D2E3F4A5B6C", false},
		{"nil uuid", "00000000-0000-0000-0000-000000000000", false},
		{"empty", "", true},
		{"plain word", "abc", true},
		{"numeric", "123", true},
		{"no hyphens", "3f2b8c1e9d4a4e6b8a7c1d2e3f4a5b6c", true},
		{"braced", "{3f2b8c1e-9d4a-4e6b-8a7c-1d2e3f4a5b6c}", true},
		{"urn", "urn:uuid:3f2b8c1e-9d4a-4e6b-8a7c-1d2e3f4a5b6c", true},
		{"non-hex character", "3f2b8c1e-9d4a-4e6b-8a7c-1d2e3f4a5b6z", true},
		{"misplaced hyphen", "3f2b8c1e9-d4a-4e6b-8a7c-1d2e3f4a5b6c", true},
		{"too long", "3f2b8c1e-9d4a-4e6b-8a7c-1d2e3f4a5b6c0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %v", tt.input, id)
				}
				if !errors.Is(err, ErrNotCanonical) {
					t.Errorf("Parse(%q) error = %v, want ErrNotCanonical", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if got := id.String(); got != strings.ToLower(tt.input) {
				t.Errorf("Parse(%q) = %q", tt.input, got)
			}
		})
	}
}

func TestValid_GeneratedIDs(t *testing.T) {
	for _, gen := range []Generator{NewV4(), NewV7()} {
		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		if !Valid(id.String()) {
			t.Errorf("Valid(%q) = false, want true", id)
		}
	}
}
