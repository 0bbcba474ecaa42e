package zapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode"
)

// signatureHeaders lists the header names Z-API deployments have used for the
// webhook HMAC, in lookup order.
var signatureHeaders = []string{
	"X-Hub-Signature-256",
	"X-Zapi-Signature",
	"X-Z-Api-Signature",
}

// VerifySignature checks the webhook HMAC-SHA256 over the raw body. With no
// secret configured every payload is accepted.
func (c *Client) VerifySignature(rawBody []byte, header http.Header) bool {
	if c.webhookSecret == "" {
		return true
	}

	var provided string
	for _, name := range signatureHeaders {
		if v := header.Get(name); v != "" {
			provided = v
			break
		}
	}
	if provided == "" {
		return false
	}
	provided = strings.TrimSpace(strings.TrimPrefix(provided, "sha256="))

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(rawBody)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(provided))
}

// IncomingMessage is the canonical form of a webhook delivery.
type IncomingMessage struct {
	Phone      string
	SenderName string
	Text       string
	MsgID      string
	FromMe     bool
}

// ParseIncoming normalizes the known Z-API webhook payload shapes. Payloads
// without a sender phone or text content fail with an error; callers treat
// that as "ignore", not as a bad request.
func ParseIncoming(body []byte) (IncomingMessage, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return IncomingMessage{}, fmt.Errorf("parse webhook body: %w", err)
	}

	phone := firstString(payload,
		[]any{"phone"},
		[]any{"from"},
		[]any{"data", "phone"},
		[]any{"data", "from"},
		[]any{"messages", 0, "from"},
		[]any{"entry", 0, "changes", 0, "value", "messages", 0, "from"},
		[]any{"contact", "wa_id"},
	)
	if phone == "" {
		return IncomingMessage{}, fmt.Errorf("webhook payload has no sender phone")
	}

	text := firstString(payload,
		[]any{"text", "message"},
		[]any{"message"},
		[]any{"text"},
		[]any{"data", "message"},
		[]any{"data", "text"},
		[]any{"messages", 0, "text", "body"},
		[]any{"entry", 0, "changes", 0, "value", "messages", 0, "text", "body"},
	)
	if text == "" {
		return IncomingMessage{}, fmt.Errorf("webhook payload has no text content")
	}

	msg := IncomingMessage{
		Phone: NormalizeMSISDN(phone, "55"),
		Text:  text,
		MsgID: firstString(payload,
			[]any{"messageId"},
			[]any{"id"},
			[]any{"data", "id"},
			[]any{"messages", 0, "id"},
			[]any{"entry", 0, "changes", 0, "value", "messages", 0, "id"},
		),
		SenderName: firstString(payload,
			[]any{"senderName"},
			[]any{"chatName"},
			[]any{"data", "senderName"},
		),
	}
	if fromMe, ok := dig(payload, []any{"fromMe"}).(bool); ok {
		msg.FromMe = fromMe
	}
	return msg, nil
}

// NormalizeMSISDN reduces a phone to +digits, prefixing the default country
// code for bare national numbers.
func NormalizeMSISDN(phone, defaultCountry string) string {
	var digits strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case d == "":
		return ""
	case strings.HasPrefix(d, defaultCountry):
		return "+" + d
	case len(d) == 10 || len(d) == 11:
		return "+" + defaultCountry + d
	case strings.HasPrefix(d, "0") && strings.HasPrefix(d[1:], defaultCountry):
		return "+" + d[1:]
	default:
		return "+" + d
	}
}

// firstString walks the candidate paths in order and returns the first
// non-blank string value.
func firstString(payload map[string]any, paths ...[]any) string {
	for _, path := range paths {
		if s, ok := dig(payload, path).(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// dig follows a path of map keys (string) and slice indexes (int) through a
// decoded JSON value. Missing steps return nil.
func dig(v any, path []any) any {
	cur := v
	for _, step := range path {
		switch key := step.(type) {
		case string:
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur = m[key]
		case int:
			s, ok := cur.([]any)
			if !ok || key < 0 || key >= len(s) {
				return nil
			}
			cur = s[key]
		default:
			return nil
		}
	}
	return cur
}
