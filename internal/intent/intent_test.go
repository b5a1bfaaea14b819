package intent

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		body string
		want Intent
		ok   bool
	}{
		{"Confirmo", Confirm, true},
		{"  CONFIRMADO  ", Confirm, true},
		{"quiero confirmar", Confirm, true},
		{"Yes", Confirm, true},
		{"si", Confirm, true},
		{"confirm please", Confirm, true},
		{"Quiero reagendar", Reschedule, true},
		{"REAGENDAR", Reschedule, true},
		{"cancelar", Cancel, true},
		{"Quiero cancelar la cita", Cancel, true},
		{"CANCELAR por favor", Cancel, true},
		{"hola", None, false},
		{"gracias", None, false},
		{"", None, false},
		{"   ", None, false},
	}
	for _, tt := range tests {
		got, ok := Classify(tt.body)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Classify(%q) = (%s, %v), want (%s, %v)", tt.body, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClassifyPriorityConfirmBeatsCancel(t *testing.T) {
	bodies := []string{
		"no puedo confirmar, quiero cancelar",
		"cancelar... bueno no, confirmo",
		"cancelar la cita? yes",
	}
	for _, body := range bodies {
		if got, _ := Classify(body); got != Confirm {
			t.Errorf("Classify(%q) = %s, want confirm", body, got)
		}
	}
}

func TestClassifyPriorityRescheduleBeatsCancel(t *testing.T) {
	if got, _ := Classify("cancelar o reagendar"); got != Reschedule {
		t.Fatalf("expected reschedule, got %s", got)
	}
}

func TestRulesOrderAndCopy(t *testing.T) {
	got := Rules()
	if len(got) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(got))
	}
	order := []Intent{Confirm, Reschedule, Cancel}
	for i, want := range order {
		if got[i].Intent != want {
			t.Fatalf("rule %d = %s, want %s", i, got[i].Intent, want)
		}
	}
	got[0].Keywords[0] = "mutated"
	if Rules()[0].Keywords[0] != "confirmado" {
		t.Fatal("Rules must return a copy")
	}
}

func TestIntentString(t *testing.T) {
	if None.String() != "none" || Cancel.String() != "cancel" {
		t.Fatalf("unexpected string forms %q %q", None.String(), Cancel.String())
	}
}
