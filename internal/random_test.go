package internal

import (
	"strings"
	"testing"
)

func TestNewRecoveryCodeFormat(t *testing.T) {
	code, err := NewRecoveryCode(5)
	if err != nil {
		t.Fatalf("NewRecoveryCode failed: %v", err)
	}

	groups := strings.Split(code, "-")
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %q", code)
	}
	for _, g := range groups {
		if len(g) != 5 {
			t.Fatalf("unexpected group length in %q", code)
		}
		for _, c := range g {
			if !strings.ContainsRune(recoveryAlphabet, c) {
				t.Fatalf("character %q outside recovery alphabet in %q", c, code)
			}
		}
	}
}

func TestNewRecoveryCodeRejectsBadGroupLength(t *testing.T) {
	if _, err := NewRecoveryCode(3); err == nil {
		t.Fatal("expected error for group length 3")
	}
	if _, err := NewRecoveryCode(17); err == nil {
		t.Fatal("expected error for group length 17")
	}
}

func TestNewRecoveryCodeDrawsWholeAlphabet(t *testing.T) {
	// With a few thousand draws every alphabet character shows up unless
	// the draw skews; a missing character here means biased sampling.
	seen := make(map[rune]bool, len(recoveryAlphabet))
	for i := 0; i < 200; i++ {
		code, err := NewRecoveryCode(8)
		if err != nil {
			t.Fatalf("NewRecoveryCode failed: %v", err)
		}
		for _, c := range strings.ReplaceAll(code, "-", "") {
			seen[c] = true
		}
	}
	for _, c := range recoveryAlphabet {
		if !seen[c] {
			t.Fatalf("alphabet character %q never drawn", c)
		}
	}
}

func TestHashRecoveryCodeCanonicalizes(t *testing.T) {
	base := HashRecoveryCode("abcde-23456")
	variants := []string{"ABCDE-23456", " abcde-23456 ", "abcde23456", "AbCdE-23456"}
	for _, v := range variants {
		if HashRecoveryCode(v) != base {
			t.Fatalf("variant %q hashed differently", v)
		}
	}
	if HashRecoveryCode("abcdf-23456") == base {
		t.Fatal("distinct codes must not collide")
	}
}

func TestMFATicketRoundTrip(t *testing.T) {
	id, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce failed: %v", err)
	}
	secret, err := NewMFASecret()
	if err != nil {
		t.Fatalf("NewMFASecret failed: %v", err)
	}

	ticket := EncodeMFATicket(id, secret)
	gotID, gotSecret, err := DecodeMFATicket(ticket)
	if err != nil {
		t.Fatalf("DecodeMFATicket failed: %v", err)
	}
	if gotID != id || gotSecret != secret {
		t.Fatal("ticket round trip lost data")
	}

	if _, _, err := DecodeMFATicket("not-base64!!"); err == nil {
		t.Fatal("expected error for malformed ticket")
	}
	if _, _, err := DecodeMFATicket("AAAA"); err == nil {
		t.Fatal("expected error for truncated ticket")
	}
}
