package templates

import (
	"errors"
	"testing"
)

func TestRendererRender(t *testing.T) {
	r, err := NewRenderer(map[string]string{"saludo": "Hola {{.Nombre}}"})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out, err := r.Render("saludo", map[string]string{"Nombre": "Juan"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Hola Juan" {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := r.Render("saludo", map[string]string{"Otro": "x"}); err == nil {
		t.Fatalf("expected error for missing key")
	}
	if _, err := r.Render("nope", nil); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}
}

func TestNewRendererRejectsBadTemplates(t *testing.T) {
	if _, err := NewRenderer(map[string]string{"roto": "Hola {{.Nombre"}); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := NewRenderer(map[string]string{"vacio": " "}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestDefaultsParse(t *testing.T) {
	r, err := NewRenderer(Defaults)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if len(r.Names()) != len(Defaults) || r.Names()[0] != "cancelada" {
		t.Fatalf("unexpected names %v", r.Names())
	}
	out, err := r.Render("recordatorio", map[string]string{"Nombre": "Juan", "Fecha": "2025-07-15", "Hora": "09:00"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out == "" {
		t.Fatal("empty render")
	}
}
