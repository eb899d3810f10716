package kvstore

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/promptcap/dbopen"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return map[string]Backend{
		"memory": NewMemory(),
		"sqlite": NewSQLite(db),
	}
}

func TestNamespace_GetSetRemove(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ns := NewNamespace(b, "captures")
			other := NewNamespace(b, "cache")

			err := ns.Set(ctx, map[string][]byte{
				"a": []byte(`{"n":1}`),
				"b": []byte(`{"n":2}`),
			})
			if err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := other.Set(ctx, map[string][]byte{"a": []byte(`"other"`)}); err != nil {
				t.Fatalf("set other: %v", err)
			}

			got, err := ns.Get(ctx, "a", "missing")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if len(got) != 1 || string(got["a"]) != `{"n":1}` {
				t.Fatalf("get a: got %v", got)
			}

			all, err := ns.Get(ctx)
			if err != nil {
				t.Fatalf("get all: %v", err)
			}
			if len(all) != 2 {
				t.Fatalf("get all: got %d keys, want 2", len(all))
			}

			// Overwrite is last-write-wins.
			ns.Set(ctx, map[string][]byte{"a": []byte(`{"n":3}`)})
			got, _ = ns.Get(ctx, "a")
			if string(got["a"]) != `{"n":3}` {
				t.Fatalf("overwrite: got %s", got["a"])
			}

			if err := ns.Remove(ctx, "a", "nope"); err != nil {
				t.Fatalf("remove: %v", err)
			}
			all, _ = ns.Get(ctx)
			if _, ok := all["a"]; ok || len(all) != 1 {
				t.Fatalf("after remove: got %v", all)
			}

			o, _ := other.Get(ctx, "a")
			if string(o["a"]) != `"other"` {
				t.Fatalf("namespaces leaked: got %s", o["a"])
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	ns := NewNamespace(NewMemory(), "x")

	type rec struct {
		Name string `json:"name"`
	}
	if err := SetJSON(ctx, ns, "k", rec{Name: "alice"}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var out rec
	ok, err := GetJSON(ctx, ns, "k", &out)
	if err != nil || !ok {
		t.Fatalf("GetJSON: ok=%v err=%v", ok, err)
	}
	if out.Name != "alice" {
		t.Fatalf("got %q", out.Name)
	}
	ok, err = GetJSON(ctx, ns, "absent", &out)
	if err != nil || ok {
		t.Fatalf("absent key: ok=%v err=%v", ok, err)
	}
}
