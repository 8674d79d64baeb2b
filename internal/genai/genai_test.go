package genai

import (
	"errors"
	"testing"

	"github.com/orbitplan/orbit/internal/models"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, models.ErrMisconfigured) {
		t.Errorf("expected ErrMisconfigured without a key, got %v", err)
	}
}

func TestNewClientWithKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(WithAPIKey("sk-test")); err != nil {
		t.Errorf("unexpected error with an explicit key: %v", err)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	if _, err := NewClient(); err != nil {
		t.Errorf("unexpected error with env key: %v", err)
	}
}
