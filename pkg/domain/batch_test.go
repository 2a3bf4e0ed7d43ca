package domain

import "testing"

func TestIsPlaceholder(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"temp-1", true},
		{"temp-", true},
		{"01J8ZF3V9GQ4", false},
		{"", false},
		{"tempest", false},
	}
	for _, tc := range cases {
		if got := IsPlaceholder(tc.value); got != tc.want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestKnownAction(t *testing.T) {
	for _, action := range []InstructionAction{InstructionCreate, InstructionAddChild, InstructionModify, InstructionRelate, InstructionDelete} {
		if !KnownAction(action) {
			t.Errorf("expected %q to be a known action", action)
		}
	}
	if KnownAction("rename") {
		t.Error("rename should not be a known action")
	}
}

func TestDecodeCreate(t *testing.T) {
	in := Instruction{
		Action: InstructionCreate,
		Target: "temp-1",
		Payload: map[string]any{
			PayloadKeyName:   "Roadmap",
			PayloadKeyFields: map[string]any{"Horizon": "long"},
		},
	}
	p, err := in.DecodeCreate()
	if err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if p.Name != "Roadmap" {
		t.Errorf("name = %q", p.Name)
	}
	if p.Fields["Horizon"] != "long" {
		t.Errorf("fields = %#v", p.Fields)
	}
}

func TestDecodeCreateRejectsNonStringName(t *testing.T) {
	in := Instruction{Action: InstructionCreate, Payload: map[string]any{PayloadKeyName: 42}}
	if _, err := in.DecodeCreate(); err == nil {
		t.Fatal("expected error for numeric name")
	}
}

func TestDecodeAddChildRequiresChild(t *testing.T) {
	in := Instruction{Action: InstructionAddChild, Target: "a"}
	if _, err := in.DecodeAddChild(); err == nil {
		t.Fatal("expected error for missing child key")
	}
	in.Payload = map[string]any{PayloadKeyChild: ""}
	if _, err := in.DecodeAddChild(); err == nil {
		t.Fatal("expected error for empty child")
	}
	in.Payload = map[string]any{PayloadKeyChild: "b"}
	p, err := in.DecodeAddChild()
	if err != nil {
		t.Fatalf("decode add-child: %v", err)
	}
	if p.Child != "b" {
		t.Errorf("child = %q", p.Child)
	}
}

func TestDecodeRelate(t *testing.T) {
	in := Instruction{
		Action:  InstructionRelate,
		Target:  "a",
		Payload: map[string]any{PayloadKeyWith: "b", PayloadKeyLabel: "supports"},
	}
	p, err := in.DecodeRelate()
	if err != nil {
		t.Fatalf("decode relate: %v", err)
	}
	if p.With != "b" || p.Label != "supports" {
		t.Errorf("payload = %+v", p)
	}

	in.Payload = map[string]any{PayloadKeyLabel: "supports"}
	if _, err := in.DecodeRelate(); err == nil {
		t.Fatal("expected error for missing with key")
	}
}

func TestDecodeModify(t *testing.T) {
	in := Instruction{
		Action: InstructionModify,
		Target: "a",
		Payload: map[string]any{
			PayloadKeyFields:  map[string]any{"Description": "updated"},
			PayloadKeyReplace: true,
		},
	}
	p, err := in.DecodeModify()
	if err != nil {
		t.Fatalf("decode modify: %v", err)
	}
	if !p.Replace || p.Fields["Description"] != "updated" {
		t.Errorf("payload = %+v", p)
	}

	in.Payload = map[string]any{PayloadKeyFields: "not-a-map"}
	if _, err := in.DecodeModify(); err == nil {
		t.Fatal("expected error for non-object fields")
	}
}

func TestContainerCloneIsDeep(t *testing.T) {
	c := Container{
		Base: Base{ID: "c1"},
		Name: "root",
		Fields: map[string]any{
			"nested": map[string]any{"k": "v"},
			"list":   []any{"a", "b"},
		},
		Children:  []string{"c2"},
		Relations: []Relation{{TargetID: "c3", Label: "supports"}},
	}
	cp := c.Clone()
	cp.Fields["nested"].(map[string]any)["k"] = "mutated"
	cp.Fields["list"].([]any)[0] = "mutated"
	cp.Children[0] = "mutated"
	cp.Relations[0].TargetID = "mutated"

	if c.Fields["nested"].(map[string]any)["k"] != "v" {
		t.Error("nested map shared between clone and original")
	}
	if c.Fields["list"].([]any)[0] != "a" {
		t.Error("nested slice shared between clone and original")
	}
	if c.Children[0] != "c2" || c.Relations[0].TargetID != "c3" {
		t.Error("edges shared between clone and original")
	}
}

func TestHasChildHasRelation(t *testing.T) {
	c := Container{Children: []string{"a"}, Relations: []Relation{{TargetID: "b"}}}
	if !c.HasChild("a") || c.HasChild("b") {
		t.Error("HasChild mismatch")
	}
	if !c.HasRelation("b") || c.HasRelation("a") {
		t.Error("HasRelation mismatch")
	}
}
