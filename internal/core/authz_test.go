package core

import (
	"errors"
	"testing"
)

func TestAllowlistAuthorizerAuthorize(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"mqtt": {"get_volume", "get_state"},
	})
	if err := a.Authorize("mqtt", "get_volume"); err != nil {
		t.Fatalf("expected allow, got error: %v", err)
	}
}

func TestAllowlistAuthorizerDenyUnlisted(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"mqtt": {"get_volume"},
	})
	err := a.Authorize("mqtt", "turn_off")
	if !errors.Is(err, ErrCommandDenied) {
		t.Fatalf("expected ErrCommandDenied, got %v", err)
	}
	if err.Error() != "turn_off via mqtt: command not allowed" {
		t.Fatalf("unexpected message: %q", err)
	}
}

func TestAllowlistAuthorizerUnlistedSourceIsOpen(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"mqtt": {"get_volume"},
	})
	if err := a.Authorize("web", "turn_off"); err != nil {
		t.Fatalf("source without entry must be allowed, got %v", err)
	}
}

func TestAllowlistAuthorizerEmptyListDeniesAll(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{"mqtt": {}})
	if err := a.Authorize("mqtt", "get_volume"); !errors.Is(err, ErrCommandDenied) {
		t.Fatalf("expected deny, got %v", err)
	}
}

func TestAllowlistAuthorizerEmptyArguments(t *testing.T) {
	a := NewAllowlistAuthorizer(nil)
	if err := a.Authorize("", "mute"); !errors.Is(err, errInvalidArguments) {
		t.Fatalf("expected errInvalidArguments, got %v", err)
	}
}

func TestAllowlistAuthorizerValidate(t *testing.T) {
	r := NewRegistry()
	if err := NewAllowlistAuthorizer(map[string][]string{"mqtt": {"mute", "volume_up"}}).Validate(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := NewAllowlistAuthorizer(map[string][]string{"mqtt": {"increase_volume"}}).Validate(r); err == nil {
		t.Fatal("alias must be rejected in favour of the canonical name")
	}
	if err := NewAllowlistAuthorizer(map[string][]string{"mqtt": {"explode"}}).Validate(r); err == nil {
		t.Fatal("unknown command must be rejected")
	}
}
