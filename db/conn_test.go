package db

import (
	"context"
	"errors"
	"testing"
)

func TestNewPool_EmptyConnString(t *testing.T) {
	if _, err := NewPool(context.Background(), "", 4); !errors.Is(err, ErrEmptyConnString) {
		t.Fatalf("expected ErrEmptyConnString, got %v", err)
	}
}

func TestNewPool_InvalidConnString(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://%zz", 4)
	if err == nil {
		t.Fatal("expected parse error for malformed connection string")
	}
	if errors.Is(err, ErrEmptyConnString) {
		t.Fatalf("unexpected ErrEmptyConnString: %v", err)
	}
}
