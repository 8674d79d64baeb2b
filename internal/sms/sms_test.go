package sms

import "testing"

func TestCanonicalizeRecipient(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"+1 (416) 555-0100", "+14165550100", false},
		{"416-555-0100", "4165550100", false},
		{"+44 20 7946 0958", "+442079460958", false},
		{"", "", true},
		{"12345", "", true},
		{"+1234", "", true},
		{"---", "", true},
	}
	for _, tt := range tests {
		got, err := CanonicalizeRecipient(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("CanonicalizeRecipient(%q): expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("CanonicalizeRecipient(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalizeRecipient(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token")); err == nil {
		t.Error("expected error without a from number")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token"), WithFromNumber("+15550100")); err != nil {
		t.Errorf("unexpected error with full credentials: %v", err)
	}
}
