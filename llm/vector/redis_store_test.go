package vector

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

func TestEncodeVector(t *testing.T) {
	vec := []float32{1.5, -0.25, 0}
	buf := encodeVector(vec)

	if len(buf) != 12 {
		t.Fatalf("encoded %d bytes, want 12", len(buf))
	}
	for i, want := range vec {
		got := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		if got != want {
			t.Errorf("value %d = %v, want %v", i, got, want)
		}
	}
}

func TestKeyNamespacesDisjoint(t *testing.T) {
	s := &RedisStore{config: DefaultStoreConfig()}

	// Ingestion writes a chunk under its category namespace and again under
	// the default namespace with the category prefixed onto the ID. The two
	// writes must land on different keys or the second one rewrites the
	// namespace TAG of the first.
	scoped := s.key("doc-num-1", "chunk_1")
	def := s.key(DefaultNamespace, "doc-num-1:chunk_1")
	if scoped == def {
		t.Fatalf("category and default namespace keys collide on %q", scoped)
	}
	if want := "vec:doc-num-1:chunk_1"; scoped != want {
		t.Errorf("category key = %q, want %q", scoped, want)
	}
	if want := "vec:_default:doc-num-1:chunk_1"; def != want {
		t.Errorf("default namespace key = %q, want %q", def, want)
	}

	// Same ID in different namespaces stays isolated at the key level.
	keys := map[string]string{
		s.key(DefaultNamespace, "chunk_1"): DefaultNamespace,
		s.key("doc-num-1", "chunk_1"):      "doc-num-1",
		s.key("doc-num-2", "chunk_1"):      "doc-num-2",
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 distinct keys for chunk_1 across namespaces, got %d: %v", len(keys), keys)
	}
	for k := range keys {
		if !strings.HasPrefix(k, DefaultStoreConfig().KeyPrefix) {
			t.Errorf("key %q does not carry the index prefix", k)
		}
	}
}

func TestEscapeTag(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"doc-num-3", `doc\-num\-3`},
		{"plain", "plain"},
		{"a b", `a\ b`},
	}
	for _, tc := range cases {
		if got := escapeTag(tc.in); got != tc.want {
			t.Errorf("escapeTag(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
