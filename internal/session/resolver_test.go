package session

import (
	"errors"
	"testing"
)

func TestResolveInAgentChannel(t *testing.T) {
	r := NewResolver("-100200300")

	a, err := r.Resolve(ActionContext{
		ActorID:   "42",
		Username:  "kak_dina",
		FirstName: "Dina",
		ChatID:    "-100200300",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.ID != "42" {
		t.Errorf("expected ID 42, got %q", a.ID)
	}
	if a.Display != "@kak_dina" {
		t.Errorf("expected username display, got %q", a.Display)
	}
}

func TestResolveFallsBackToFirstName(t *testing.T) {
	r := NewResolver("-100200300")

	a, err := r.Resolve(ActionContext{ActorID: "42", FirstName: "Dina", ChatID: "-100200300"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.Display != "Dina" {
		t.Errorf("expected first-name display, got %q", a.Display)
	}
}

func TestResolveRejectsOtherChats(t *testing.T) {
	r := NewResolver("-100200300")

	_, err := r.Resolve(ActionContext{ActorID: "42", ChatID: "555"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveRejectsWhenNoChannelConfigured(t *testing.T) {
	r := NewResolver("")
	_, err := r.Resolve(ActionContext{ActorID: "42", ChatID: ""})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("an unconfigured channel must authorize nobody, got %v", err)
	}
}
