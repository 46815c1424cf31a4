package registry

import (
	"fmt"
	"testing"
)

type testItem struct {
	ID   string
	Name string
}

func TestOrderedRegistry_PutUpsert(t *testing.T) {
	r := NewOrderedRegistry[testItem]()

	r.Put("a", testItem{ID: "1", Name: "first"})
	r.Put("a", testItem{ID: "2", Name: "replaced"})

	item, exists := r.Get("a")
	if !exists {
		t.Fatal("expected item to exist")
	}
	if item.ID != "2" {
		t.Errorf("expected upsert to replace item, got ID %s", item.ID)
	}
	if r.Count() != 1 {
		t.Errorf("expected count 1, got %d", r.Count())
	}
}

func TestOrderedRegistry_InsertionOrder(t *testing.T) {
	r := NewOrderedRegistry[testItem]()

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("item-%d", i)
		r.Put(name, testItem{ID: name})
	}

	// Re-registering must not change position
	r.Put("item-1", testItem{ID: "item-1-v2"})

	names := r.Names()
	want := []string{"item-0", "item-1", "item-2", "item-3", "item-4"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("position %d: expected %s, got %s", i, name, names[i])
		}
	}

	items := r.List()
	if items[1].ID != "item-1-v2" {
		t.Errorf("expected replaced item at original position, got %s", items[1].ID)
	}
}

func TestOrderedRegistry_Remove(t *testing.T) {
	r := NewOrderedRegistry[testItem]()

	r.Put("a", testItem{ID: "1"})
	if !r.Remove("a") {
		t.Fatal("expected Remove to report the item existed")
	}
	if r.Remove("a") {
		t.Error("expected Remove to report a missing item")
	}
	if _, exists := r.Get("a"); exists {
		t.Error("expected item to be gone")
	}
}

func TestOrderedRegistry_RemoveWhere(t *testing.T) {
	r := NewOrderedRegistry[testItem]()

	r.Put("keep-1", testItem{Name: "keep"})
	r.Put("drop-1", testItem{Name: "drop"})
	r.Put("keep-2", testItem{Name: "keep"})
	r.Put("drop-2", testItem{Name: "drop"})

	removed := r.RemoveWhere(func(name string, item testItem) bool {
		return item.Name == "drop"
	})

	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "keep-1" || names[1] != "keep-2" {
		t.Errorf("unexpected surviving names: %v", names)
	}
}

func TestOrderedRegistry_Clear(t *testing.T) {
	r := NewOrderedRegistry[testItem]()

	r.Put("a", testItem{})
	r.Put("b", testItem{})
	r.Clear()

	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d items", r.Count())
	}
	if len(r.Names()) != 0 {
		t.Error("expected no names after clear")
	}
}
