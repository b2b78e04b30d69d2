package checklists

import (
	"errors"
	"testing"
	"time"
)

func TestTemplate_Validate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Template)
		wantErr error
	}{
		{"valid", func(*Template) {}, nil},
		{"empty name", func(tpl *Template) { tpl.Name = "" }, ErrEmptyName},
		{"bad phase", func(tpl *Template) { tpl.Phase = "teardown" }, ErrInvalidPhase},
		{"no items", func(tpl *Template) { tpl.Items = nil }, ErrNoItems},
		{"empty item id", func(tpl *Template) { tpl.Items[0].ItemID = "" }, ErrEmptyItemID},
		{"duplicate item id", func(tpl *Template) { tpl.Items[1].ItemID = tpl.Items[0].ItemID }, ErrDuplicateItemID},
		{"photo without count", func(tpl *Template) {
			tpl.Items[0].RequiresPhoto = true
			tpl.Items[0].PhotoCount = 0
		}, ErrInvalidPhotoCount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			template := testTemplate()
			tc.mutate(template)
			if err := template.Validate(); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestTemplate_AppliesTo(t *testing.T) {
	template := testTemplate()
	if !template.AppliesTo("solar") {
		t.Fatalf("kind-scoped template should match its own kind")
	}
	if template.AppliesTo("internet_link") {
		t.Fatalf("kind-scoped template matched a foreign kind")
	}

	template.Kind = ""
	if !template.AppliesTo("internet_link") {
		t.Fatalf("unscoped template should match every kind")
	}
}

func TestTemplate_Duplicate(t *testing.T) {
	template := testTemplate()
	now := time.Now().UTC()
	dup := template.Duplicate("ctpl-2", now)

	if dup.ID != "ctpl-2" {
		t.Fatalf("expected new id, got %s", dup.ID)
	}
	if dup.Name != "Solar Pre-Install (copy)" {
		t.Fatalf("unexpected copy name %q", dup.Name)
	}
	if len(dup.Items) != len(template.Items) {
		t.Fatalf("items not copied")
	}

	dup.Items[0].Title = "changed"
	if template.Items[0].Title == "changed" {
		t.Fatalf("duplicate shares item slice with source")
	}
}
