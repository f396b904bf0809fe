package protocol

import (
	"testing"

	"github.com/icza/s2prot"
)

func TestFieldsPaths(t *testing.T) {
	f := Fields{
		"title": "Oceanborn LE\x00",
		"abil": s2prot.Struct{
			"abilLink":     int64(182),
			"abilCmdIndex": int64(1),
		},
		"killerPlayerId": nil,
		"items":          []any{int64(0), int64(40), int64(44)},
		"playerList": []any{
			s2prot.Struct{"name": "Serral"},
			map[string]any{"name": "Maru"},
			int64(3),
		},
	}

	if s, ok := f.String("title"); !ok || s != "Oceanborn LE" {
		t.Errorf("title = %q, %v", s, ok)
	}
	if n, ok := f.Int("abil", "abilLink"); !ok || n != 182 {
		t.Errorf("abilLink = %d, %v", n, ok)
	}
	if f.Has("killerPlayerId") {
		t.Error("absent optional should not be present")
	}
	if _, ok := f.Int("abil", "missing"); ok {
		t.Error("missing field resolved")
	}
	if _, ok := f.Int("title", "deeper"); ok {
		t.Error("walked through a blob")
	}
	items, ok := f.Ints("items")
	if !ok || len(items) != 3 || items[2] != 44 {
		t.Errorf("items = %v, %v", items, ok)
	}
	players := f.Structs("playerList")
	if len(players) != 2 {
		t.Fatalf("expected 2 struct items, got %d", len(players))
	}
	if name, _ := players[1].String("name"); name != "Maru" {
		t.Errorf("second player = %q", name)
	}
}

func TestFieldsNil(t *testing.T) {
	var f Fields
	if f.Has("x") || f.List("x") != nil {
		t.Error("nil fields should be empty")
	}
	if _, ok := f.Sub("x"); ok {
		t.Error("nil fields have no sub struct")
	}
}
