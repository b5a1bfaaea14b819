// Package templates renders the canned replies staff can send from the inbox.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrUnknownTemplate is returned when a reply name is not registered.
var ErrUnknownTemplate = errors.New("templates: unknown template")

// Defaults are the barbershop's stock replies.
var Defaults = map[string]string{
	"recordatorio":  "Hola {{.Nombre}}, te recordamos tu cita en VATOS ALFA el {{.Fecha}} a las {{.Hora}}. Responde CONFIRMO o CANCELAR.",
	"confirmada":    "Gracias {{.Nombre}}, tu cita del {{.Fecha}} a las {{.Hora}} quedó confirmada.",
	"cancelada":     "{{.Nombre}}, tu cita del {{.Fecha}} fue cancelada. Escríbenos cuando quieras reagendar.",
	"reagendar":     "Claro {{.Nombre}}, ¿qué día y hora te acomodan para tu nueva cita?",
	"fuera_horario": "Gracias por escribir a VATOS ALFA. Te respondemos en cuanto abramos.",
}

// Renderer renders named reply templates with strict missing-key semantics.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses every template up front so a bad template fails at
// startup rather than on send.
func NewRenderer(texts map[string]string) (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(texts))}
	for name, text := range texts {
		name = strings.TrimSpace(name)
		if name == "" || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("templates: %q: name and text required", name)
		}
		t, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("templates: parse %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Names lists the registered templates in order.
func (r *Renderer) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the named template against data.
func (r *Renderer) Render(name string, data map[string]string) (string, error) {
	t, ok := r.templates[strings.TrimSpace(name)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute %s: %w", name, err)
	}
	return buf.String(), nil
}
