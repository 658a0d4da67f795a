package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundUnwraps(t *testing.T) {
	err := fmt.Errorf("load agenda: %w", NotFound("agenda", "artist-1"))
	if !IsNotFound(err) {
		t.Fatal("expected wrapped error to match ErrNotFound")
	}
	if IsInvalidInput(err) {
		t.Fatal("not found must not match ErrInvalidInput")
	}
	var nf NotFoundError
	if !errors.As(err, &nf) || nf.ID != "artist-1" {
		t.Fatalf("expected NotFoundError for artist-1, got %+v", nf)
	}
	if got := (NotFoundError{Resource: "agenda"}).Error(); got != "agenda: not found" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestInvalidInputUnwraps(t *testing.T) {
	err := InvalidInput("duration", "must be at least 15 minutes")
	if !IsInvalidInput(err) {
		t.Fatal("expected ErrInvalidInput")
	}
	if err.Error() != "invalid input: duration must be at least 15 minutes" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
