package catalog

import "testing"

func TestFormatKnownCode(t *testing.T) {
	got := Format("SETTLEMENT_NONE_PENDING", nil)
	if got != "No settlement request pending" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestFormatMetadataTemplate(t *testing.T) {
	got := Format("SETTLEMENT_SELF_ACTION", map[string]string{"Action": "accept"})
	if got != "Cannot accept your own settlement" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestFormatMissingMetadataRendersEmpty(t *testing.T) {
	got := Format("SESSION_PHASE_DISALLOWS_ACTION", nil)
	if got != "This action is not allowed during the  phase." {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestFormatUnknownCodeFallsBackToCode(t *testing.T) {
	got := Format("NO_SUCH_CODE", nil)
	if got != "NO_SUCH_CODE" {
		t.Fatalf("unexpected message: %q", got)
	}
}
