package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsPgUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: "users_email_key"}

	if !isPgUniqueViolation(dup, "users_email_key") {
		t.Error("duplicate-key error on the named constraint should match")
	}
	if isPgUniqueViolation(dup, "users_username_key") {
		t.Error("a different constraint must not match")
	}
	if isPgUniqueViolation(&pq.Error{Code: "23503", Constraint: "users_email_key"}, "users_email_key") {
		t.Error("non-unique-violation codes must not match")
	}
	if isPgUniqueViolation(errors.New("unique constraint users_email_key"), "users_email_key") {
		t.Error("plain errors must not match on message text")
	}

	wrapped := fmt.Errorf("user_repo.Create: %w", dup)
	if !isPgUniqueViolation(wrapped, "users_email_key") {
		t.Error("wrapped driver errors should still match")
	}
	if isPgUniqueViolation(nil, "users_email_key") {
		t.Error("nil error must not match")
	}
}
