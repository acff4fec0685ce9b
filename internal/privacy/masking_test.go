package privacy

import (
	"testing"
)

func TestMaskToken(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"secret_AbCdEfGh1234", "secret_A************"},
		{"mfa.abcdefgh", "mfa.abcd****"},

		// Edge cases
		{"", ""},
		{"short", "*****"},
		{"12345678", "********"},
		{"123456789", "12345678*"},
	}

	for _, test := range tests {
		result := MaskToken(test.input)
		if result != test.expected {
			t.Errorf("MaskToken(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestMaskSnowflake(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123456789012345678", "**************5678"},
		{"", ""},
		{"123", "***"},
		{"1234", "****"},
		{"12345", "*2345"},
	}

	for _, test := range tests {
		result := MaskSnowflake(test.input)
		if result != test.expected {
			t.Errorf("MaskSnowflake(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestMaskAuthor(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"@someuser", "@s*******"},
		{"someuser", "s*******"},
		{"", ""},
		{"@", "@"},
		{"a", "a"},
		{"@ñandú", "@ñ****"},
	}

	for _, test := range tests {
		result := MaskAuthor(test.input)
		if result != test.expected {
			t.Errorf("MaskAuthor(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestMaskURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://cdn.discordapp.com/attachments/1/2/secret.png", "https://cdn.discordapp.com/***"},
		{"https://example.com", "https://example.com"},
		{"", ""},
		{"not-a-url", "*********"},
	}

	for _, test := range tests {
		result := MaskURL(test.input)
		if result != test.expected {
			t.Errorf("MaskURL(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	fields := map[string]interface{}{
		"token":      "secret_AbCdEfGh1234",
		"message_id": "123456789012345678",
		"author":     "@someuser",
		"url":        "https://cdn.discordapp.com/attachments/1/2/a.png",
		"channel":    "general",
		"count":      7,
	}

	masked := MaskSensitiveFields(fields)

	if masked["token"] != "secret_A************" {
		t.Errorf("token not masked: %v", masked["token"])
	}
	if masked["message_id"] != "**************5678" {
		t.Errorf("message_id not masked: %v", masked["message_id"])
	}
	if masked["author"] != "@s*******" {
		t.Errorf("author not masked: %v", masked["author"])
	}
	if masked["url"] != "https://cdn.discordapp.com/***" {
		t.Errorf("url not masked: %v", masked["url"])
	}
	if masked["channel"] != "general" {
		t.Errorf("non-sensitive field changed: %v", masked["channel"])
	}
	if masked["count"] != 7 {
		t.Errorf("non-string field changed: %v", masked["count"])
	}

	if MaskSensitiveFields(nil) != nil {
		t.Error("expected nil for nil input")
	}
}
