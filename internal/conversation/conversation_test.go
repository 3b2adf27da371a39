package conversation

import (
	"testing"

	"github.com/sennet-ai/sennet/pkg/types"
)

func newShoppingContext() *ActiveContext {
	return &ActiveContext{
		Name:              "productivity.shopping",
		Lang:              "en",
		Intent:            "shopping.add",
		Domain:            "productivity",
		ActionName:        "add",
		OriginalUtterance: "add milk to my list",
		Slots: map[string]*Slot{
			"item": {Name: "item", ExpectedEntity: "product", PickedQuestion: "Which item?"},
		},
		SlotOrder: []string{"item"},
	}
}

func TestContextName(t *testing.T) {
	if got := ContextName("productivity", "shopping"); got != "productivity.shopping" {
		t.Errorf("ContextName = %q", got)
	}
}

func TestSetActiveContextReplacesDifferentName(t *testing.T) {
	s := NewStore()
	s.SetActiveContext(newShoppingContext())

	s.SetActiveContext(&ActiveContext{
		Name:              "leisure.jokes",
		OriginalUtterance: "tell me a joke",
	})

	ac := s.ActiveContext()
	if ac.Name != "leisure.jokes" {
		t.Errorf("active context = %q, want leisure.jokes", ac.Name)
	}
	if ac.OriginalUtterance != "tell me a joke" {
		t.Errorf("utterance = %q", ac.OriginalUtterance)
	}
}

func TestSetActiveContextMergesSameName(t *testing.T) {
	s := NewStore()
	first := newShoppingContext()
	first.Entities = []types.Entity{{Name: "product", Value: "milk"}}
	s.SetActiveContext(first)

	s.SetActiveContext(&ActiveContext{
		Name:              "productivity.shopping",
		Lang:              "en",
		Intent:            "shopping.remove",
		ActionName:        "remove",
		OriginalUtterance: "this must not replace the original",
		CurrentEntities:   []types.Entity{{Name: "product", Value: "bread"}},
		Slots: map[string]*Slot{
			"quantity": {Name: "quantity", ExpectedEntity: "number"},
		},
		SlotOrder: []string{"quantity"},
	})

	ac := s.ActiveContext()
	if ac.OriginalUtterance != "add milk to my list" {
		t.Errorf("OriginalUtterance = %q, want the activating utterance preserved", ac.OriginalUtterance)
	}
	if ac.ActionName != "remove" {
		t.Errorf("ActionName = %q, want remove", ac.ActionName)
	}
	if len(ac.Entities) != 2 {
		t.Errorf("entities = %v, want milk + bread accumulated", ac.Entities)
	}
	if len(ac.SlotOrder) != 2 || ac.SlotOrder[0] != "item" || ac.SlotOrder[1] != "quantity" {
		t.Errorf("SlotOrder = %v", ac.SlotOrder)
	}
}

func TestCleanActiveContext(t *testing.T) {
	s := NewStore()
	s.SetActiveContext(newShoppingContext())
	s.CleanActiveContext()

	if s.HasActiveContext() {
		t.Error("context still active after clean")
	}
	if s.ActiveContext() != nil {
		t.Error("ActiveContext should be nil after clean")
	}
}

func TestSetSlotsFillsMatchingEntity(t *testing.T) {
	s := NewStore()
	s.SetActiveContext(newShoppingContext())

	s.SetSlots("en", []types.Entity{
		{Name: "color", Value: "red"},
		{Name: "product", Value: "milk"},
	})

	slot := s.ActiveContext().Slots["item"]
	if !slot.IsFilled {
		t.Fatal("slot not filled")
	}
	if slot.Value.Value != "milk" {
		t.Errorf("slot value = %q, want milk", slot.Value.Value)
	}
}

func TestSetSlotsIgnoresNonMatching(t *testing.T) {
	s := NewStore()
	s.SetActiveContext(newShoppingContext())

	s.SetSlots("en", []types.Entity{{Name: "color", Value: "red"}})

	if s.ActiveContext().Slots["item"].IsFilled {
		t.Error("slot filled by a non-matching entity")
	}
}

func TestGetNotFilledSlotFollowsDeclarationOrder(t *testing.T) {
	s := NewStore()
	ac := newShoppingContext()
	ac.Slots["quantity"] = &Slot{Name: "quantity", ExpectedEntity: "number"}
	ac.SlotOrder = append(ac.SlotOrder, "quantity")
	s.SetActiveContext(ac)

	if slot := s.GetNotFilledSlot(); slot == nil || slot.Name != "item" {
		t.Fatalf("first unfilled slot = %v, want item", slot)
	}

	s.SetSlots("en", []types.Entity{{Name: "product", Value: "milk"}})

	if slot := s.GetNotFilledSlot(); slot == nil || slot.Name != "quantity" {
		t.Fatalf("next unfilled slot = %v, want quantity", slot)
	}

	s.SetSlots("en", []types.Entity{{Name: "number", Value: "2"}})

	if slot := s.GetNotFilledSlot(); slot != nil {
		t.Errorf("unfilled slot = %v, want nil", slot)
	}
}

func TestAreSlotsAllFilled(t *testing.T) {
	s := NewStore()
	if !s.AreSlotsAllFilled() {
		t.Error("empty store should count as filled")
	}

	s.SetActiveContext(newShoppingContext())
	if s.AreSlotsAllFilled() {
		t.Error("unfilled slot reported as filled")
	}

	s.SetSlots("en", []types.Entity{{Name: "product", Value: "milk"}})
	if !s.AreSlotsAllFilled() {
		t.Error("filled ledger reported as unfilled")
	}
}

func TestSlotValues(t *testing.T) {
	s := NewStore()
	if s.SlotValues() != nil {
		t.Error("SlotValues on empty store should be nil")
	}

	s.SetActiveContext(newShoppingContext())
	s.SetSlots("en", []types.Entity{{Name: "product", Value: "milk"}})

	vals := s.SlotValues()
	sv, ok := vals["item"]
	if !ok {
		t.Fatalf("slot values = %v, missing item", vals)
	}
	if sv.Entity != "product" || !sv.IsFilled || sv.Value.Value != "milk" {
		t.Errorf("slot value = %+v", sv)
	}
}
