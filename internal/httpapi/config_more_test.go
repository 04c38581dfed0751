package httpapi

import "testing"

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestSetPromptTimeoutSeconds_NormalizesNegativeToZero(t *testing.T) {
	defer SetPromptTimeoutSeconds(0)
	SetPromptTimeoutSeconds(-5)
	if promptTimeout != 0 {
		t.Fatalf("expected 0, got %d", promptTimeout)
	}
	SetPromptTimeoutSeconds(3)
	if promptTimeout != 3 {
		t.Fatalf("expected 3, got %d", promptTimeout)
	}
}
