package zapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendText(t *testing.T) {
	var gotPath, gotClientToken string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotClientToken = r.Header.Get("Client-Token")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{
		BaseURL:       srv.URL,
		InstanceID:    "inst",
		InstanceToken: "tok",
		ClientToken:   "ct",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.SendText(context.Background(), "+5511999990000", "olá"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if gotPath != "/instances/inst/token/tok/send-text" {
		t.Errorf("path = %q", gotPath)
	}
	if gotClientToken != "ct" {
		t.Errorf("Client-Token = %q", gotClientToken)
	}
	if gotBody["phone"] != "5511999990000" || gotBody["message"] != "olá" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestUpdateWebhooks(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]any
	}
	var calls []call

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{r.Method, r.URL.Path, body})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, InstanceID: "i", InstanceToken: "t"})
	if err != nil {
		t.Fatal(err)
	}

	url := "https://app.example.com/webhook/zapi"
	if err := c.UpdateWebhookReceived(context.Background(), url); err != nil {
		t.Fatalf("UpdateWebhookReceived: %v", err)
	}
	if err := c.UpdateEveryWebhooks(context.Background(), url); err != nil {
		t.Fatalf("UpdateEveryWebhooks: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(calls))
	}
	if calls[0].method != http.MethodPut || calls[0].path != "/instances/i/token/t/update-webhook-received" {
		t.Errorf("first call = %+v", calls[0])
	}
	if calls[0].body["value"] != url {
		t.Errorf("first body = %v", calls[0].body)
	}
	if calls[1].path != "/instances/i/token/t/update-every-webhooks" {
		t.Errorf("second call = %+v", calls[1])
	}
	if calls[1].body["notifySentByMe"] != true {
		t.Errorf("second body = %v", calls[1].body)
	}
}

func TestSendText_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid instance"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, InstanceID: "i", InstanceToken: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SendText(context.Background(), "5511999990000", "x"); err == nil {
		t.Error("expected error on 401")
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without instance credentials")
	}
}
