package privacy

import (
	"strings"
)

// MaskToken masks an API token for logging, keeping a short prefix so tokens
// for different services stay distinguishable.
// Example: "secret_AbCdEfGh1234" -> "secret_A************"
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:8] + strings.Repeat("*", len(token)-8)
}

// MaskSnowflake masks a Discord snowflake ID showing only the last 4 digits.
// Example: "123456789012345678" -> "**************5678"
func MaskSnowflake(id string) string {
	return maskString(id, 4)
}

// MaskAuthor masks a display name, keeping the first rune.
// Example: "@someuser" -> "@s*******"
func MaskAuthor(name string) string {
	if name == "" {
		return ""
	}
	runes := []rune(name)
	keep := 1
	if runes[0] == '@' && len(runes) > 1 {
		keep = 2
	}
	if len(runes) <= keep {
		return name
	}
	return string(runes[:keep]) + strings.Repeat("*", len(runes)-keep)
}

// MaskURL masks the path and query of a URL, keeping the host.
// Example: "https://cdn.discordapp.com/attachments/1/2/secret.png" -> "https://cdn.discordapp.com/***"
func MaskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return maskString(rawURL, 0)
	}
	rest := rawURL[idx+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return rawURL
	}
	return rawURL[:idx+3+slash] + "/***"
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{})
	for k, v := range fields {
		switch k {
		case "token", "auth_token", "authorization":
			if s, ok := v.(string); ok {
				masked[k] = MaskToken(s)
			} else {
				masked[k] = v
			}
		case "message_id", "channel_id", "guild_id", "reply_to":
			if s, ok := v.(string); ok {
				masked[k] = MaskSnowflake(s)
			} else {
				masked[k] = v
			}
		case "author", "author_name":
			if s, ok := v.(string); ok {
				masked[k] = MaskAuthor(s)
			} else {
				masked[k] = v
			}
		case "url", "attachment_url", "upload_url":
			if s, ok := v.(string); ok {
				masked[k] = MaskURL(s)
			} else {
				masked[k] = v
			}
		default:
			masked[k] = v
		}
	}

	return masked
}
