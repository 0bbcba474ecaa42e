package zapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
)

func TestParseIncoming(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    IncomingMessage
		wantErr bool
	}{
		{
			name: "flat zapi shape",
			body: `{"phone":"5511999990000","text":{"message":"olá"},"messageId":"m1","senderName":"Ana","fromMe":false}`,
			want: IncomingMessage{Phone: "+5511999990000", Text: "olá", MsgID: "m1", SenderName: "Ana"},
		},
		{
			name: "message as top-level string",
			body: `{"phone":"11999990000","message":"preciso de ajuda"}`,
			want: IncomingMessage{Phone: "+5511999990000", Text: "preciso de ajuda"},
		},
		{
			name: "cloud api shape",
			body: `{"entry":[{"changes":[{"value":{"messages":[{"from":"5511988887777","id":"wamid.X","text":{"body":"oi"}}]}}]}]}`,
			want: IncomingMessage{Phone: "+5511988887777", Text: "oi", MsgID: "wamid.X"},
		},
		{
			name: "from me flag",
			body: `{"phone":"5511999990000","text":{"message":"eco"},"fromMe":true}`,
			want: IncomingMessage{Phone: "+5511999990000", Text: "eco", FromMe: true},
		},
		{
			name:    "no phone",
			body:    `{"text":{"message":"olá"}}`,
			wantErr: true,
		},
		{
			name:    "no text",
			body:    `{"phone":"5511999990000","image":{"url":"https://x"}}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			body:    `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIncoming([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIncoming: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeMSISDN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5511999990000", "+5511999990000"},
		{"11999990000", "+5511999990000"},
		{"1199999000", "+551199999000"},
		{"+55 (11) 99999-0000", "+5511999990000"},
		{"05511999990000", "+5511999990000"},
		{"447911123456", "+447911123456"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeMSISDN(tt.in, "55"); got != tt.want {
			t.Errorf("NormalizeMSISDN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVerifySignature(t *testing.T) {
	c, err := New(Config{InstanceID: "i", InstanceToken: "t", WebhookSecret: "s3cret"})
	if err != nil {
		t.Fatal(err)
	}
	body := []byte(`{"phone":"5511999990000"}`)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	header := http.Header{}
	header.Set("X-Hub-Signature-256", "sha256="+sig)
	if !c.VerifySignature(body, header) {
		t.Error("valid signature rejected")
	}

	header = http.Header{}
	header.Set("X-Zapi-Signature", sig)
	if !c.VerifySignature(body, header) {
		t.Error("alternate header rejected")
	}

	header = http.Header{}
	header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	if c.VerifySignature(body, header) {
		t.Error("bad signature accepted")
	}

	if c.VerifySignature(body, http.Header{}) {
		t.Error("missing signature accepted")
	}

	open, err := New(Config{InstanceID: "i", InstanceToken: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if !open.VerifySignature(body, http.Header{}) {
		t.Error("no-secret client should accept everything")
	}
}
