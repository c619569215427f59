package i18n

import "testing"

func TestPrefersUkrainian(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"en-US,en;q=0.9", false},
		{"uk", true},
		{"uk-UA,uk;q=0.9,en;q=0.5", true},
		{"en;q=0.9,uk;q=0.4", false},
		{"de", false},
	}
	for _, tt := range tests {
		if got := PrefersUkrainian(tt.header); got != tt.want {
			t.Errorf("PrefersUkrainian(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestLocalize(t *testing.T) {
	if got := Localize("Message not found", "uk"); got != "Повідомлення не знайдено" {
		t.Errorf("Localize(uk) = %q", got)
	}
	if got := Localize("Message not found", "en"); got != "Message not found" {
		t.Errorf("Localize(en) = %q", got)
	}
}

func TestTranslateKeepsParameters(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"File too large. Maximum size: 10 MB", "Файл завеликий. Максимальний розмір: 10 MB"},
		{"missing field email", "Відсутнє обов'язкове поле email"},
		{"invalid field username: username", "Некоректне поле username: username"},
		{"failed to parse request: EOF", "Некоректний запит: EOF"},
	}
	for _, tt := range tests {
		if got := Localize(tt.message, "uk"); got != tt.want {
			t.Errorf("Localize(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
	if got := Translate("something unexpected"); got != "something unexpected" {
		t.Errorf("Translate(unknown) = %q, want passthrough", got)
	}
}
