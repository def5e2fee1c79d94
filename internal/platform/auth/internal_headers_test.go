package auth

import (
	"strconv"
	"testing"
	"time"
)

func TestInternalAuthSignatureRoundTrip(t *testing.T) {
	sig, err := ComputeInternalAuthSignature("secret", "1700000000", "POST", "/pipelines", "req-1", "user-1", "user@example.com", "editor")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if sig == "" {
		t.Fatal("expected non-empty signature")
	}

	err = VerifyInternalAuthSignature("secret", "1700000000", "POST", "/pipelines", "req-1", "user-1", "user@example.com", "editor", sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestInternalAuthSignatureRejectsTampering(t *testing.T) {
	sig, err := ComputeInternalAuthSignature("secret", "1700000000", "POST", "/pipelines", "req-1", "user-1", "user@example.com", "editor")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	cases := []struct {
		name   string
		verify func() error
	}{
		{"wrong secret", func() error {
			return VerifyInternalAuthSignature("other", "1700000000", "POST", "/pipelines", "req-1", "user-1", "user@example.com", "editor", sig)
		}},
		{"changed path", func() error {
			return VerifyInternalAuthSignature("secret", "1700000000", "POST", "/pipelines/other", "req-1", "user-1", "user@example.com", "editor", sig)
		}},
		{"changed subject", func() error {
			return VerifyInternalAuthSignature("secret", "1700000000", "POST", "/pipelines", "req-1", "user-2", "user@example.com", "editor", sig)
		}},
		{"elevated roles", func() error {
			return VerifyInternalAuthSignature("secret", "1700000000", "POST", "/pipelines", "req-1", "user-1", "user@example.com", "admin", sig)
		}},
		{"empty signature", func() error {
			return VerifyInternalAuthSignature("secret", "1700000000", "POST", "/pipelines", "req-1", "user-1", "user@example.com", "editor", "")
		}},
	}
	for _, tc := range cases {
		if err := tc.verify(); err == nil {
			t.Errorf("%s: expected verification failure", tc.name)
		}
	}
}

func TestInternalAuthCanonicalNormalizesMethod(t *testing.T) {
	upper, err := ComputeInternalAuthSignature("secret", "1", "POST", "/p", "r", "s", "e", "roles")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	lower, err := ComputeInternalAuthSignature("secret", "1", "post", "/p", "r", "s", "e", "roles")
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if upper != lower {
		t.Fatal("method casing must not change the signature")
	}
}

func TestVerifyInternalAuthTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()

	ok := strconv.FormatInt(now.Add(-time.Minute).Unix(), 10)
	if err := VerifyInternalAuthTimestamp(ok, now, 5*time.Minute); err != nil {
		t.Fatalf("expected timestamp within skew to verify: %v", err)
	}

	stale := strconv.FormatInt(now.Add(-10*time.Minute).Unix(), 10)
	if err := VerifyInternalAuthTimestamp(stale, now, 5*time.Minute); err == nil {
		t.Fatal("expected stale timestamp to be rejected")
	}

	future := strconv.FormatInt(now.Add(10*time.Minute).Unix(), 10)
	if err := VerifyInternalAuthTimestamp(future, now, 5*time.Minute); err == nil {
		t.Fatal("expected future timestamp to be rejected")
	}

	if err := VerifyInternalAuthTimestamp("not-a-number", now, 5*time.Minute); err == nil {
		t.Fatal("expected malformed timestamp to be rejected")
	}

	if err := VerifyInternalAuthTimestamp(stale, now, 0); err != nil {
		t.Fatalf("zero skew disables the check: %v", err)
	}
}
