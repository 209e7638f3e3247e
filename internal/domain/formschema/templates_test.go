package formschema

import (
	"errors"
	"testing"
)

func TestListTemplates_InsertionOrder(t *testing.T) {
	got := ListTemplates()
	want := []string{"newPatientIntake", "consentToTreat", "hipaaConsent"}
	if len(got) != len(want) {
		t.Fatalf("expected %d templates, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("template %d = %s, want %s", i, got[i].ID, id)
		}
		if got[i].Name == "" || got[i].Preview == "" {
			t.Errorf("template %s missing metadata", got[i].ID)
		}
	}
}

func TestTemplates_Restartable(t *testing.T) {
	count := func() int {
		n := 0
		for range Templates() {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != b || a == 0 {
		t.Errorf("iteration not restartable: %d then %d", a, b)
	}
	for s := range Templates() {
		if s.ID != "newPatientIntake" {
			t.Errorf("unexpected first template %s", s.ID)
		}
		break
	}
}

func TestGetTemplate(t *testing.T) {
	tmpl, err := GetTemplate("newPatientIntake")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := tmpl.Schema()
	if err := s.Validate(); err != nil {
		t.Fatalf("template schema invalid: %v", err)
	}
	if len(s.Sections) != 4 {
		t.Errorf("expected 4 sections, got %d", len(s.Sections))
	}
	ssn := s.Fields["ssn"]
	if !ssn.Encrypted || FormatRule(ssn) != FormatSSN {
		t.Errorf("ssn field lost its metadata: %+v", ssn)
	}
	if meds := s.Fields["currentMedications"]; len(meds.RowFields) != 3 {
		t.Errorf("expected 3 repeater row fields, got %d", len(meds.RowFields))
	}
	if c := s.Fields["otherConditions"].ShowIf; c == nil || c.Op != OpContains {
		t.Errorf("expected contains condition on otherConditions, got %+v", c)
	}
}

func TestGetTemplate_CopiesAreIndependent(t *testing.T) {
	tmpl, _ := GetTemplate("consentToTreat")
	s := tmpl.Schema()
	delete(s.Fields, "signature")
	s.Sections[0].Fields = nil

	again, _ := GetTemplate("consentToTreat")
	fresh := again.Schema()
	if _, ok := fresh.Fields["signature"]; !ok {
		t.Error("catalog was mutated through a returned schema")
	}
	if len(fresh.Sections[0].Fields) != 5 {
		t.Errorf("expected 5 fields, got %d", len(fresh.Sections[0].Fields))
	}
}

func TestGetTemplate_NotFound(t *testing.T) {
	_, err := GetTemplate("nope")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "template" {
		t.Fatalf("expected template NotFoundError, got %v", err)
	}
}

func TestLoadCatalog_RejectsInvalidTemplate(t *testing.T) {
	bad := []byte(`[{"id":"x","name":"X","schema":{"fields":[{"id":"a","type":"select","label":"A"}]}}]`)
	if _, err := loadCatalog(bad); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected InvalidFieldError, got %v", err)
	}
	dup := []byte(`[{"id":"x","schema":{}},{"id":"x","schema":{}}]`)
	if _, err := loadCatalog(dup); err == nil {
		t.Fatal("expected duplicate template error")
	}
}
