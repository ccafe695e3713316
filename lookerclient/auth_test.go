package lookerclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginReturnsAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Query().Get("client_id") != "id-1" || r.URL.Query().Get("client_secret") != "secret-1" {
			t.Errorf("unexpected query params: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"access_token":"tok-abc","expires_in":3600}`))
	}))
	defer srv.Close()

	token, err := Login(context.Background(), srv.URL, "id-1", "secret-1", nil)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "tok-abc" {
		t.Fatalf("expected tok-abc, got %q", token)
	}
}

func TestLoginFailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid client"}`))
	}))
	defer srv.Close()

	_, err := Login(context.Background(), srv.URL, "bad-id", "bad-secret", nil)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestLoginFailsOnMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := Login(context.Background(), srv.URL, "id-1", "secret-1", nil)
	if err == nil {
		t.Fatal("expected error for malformed JSON response")
	}
}

func TestLoginFailsOnMissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expires_in":3600}`))
	}))
	defer srv.Close()

	_, err := Login(context.Background(), srv.URL, "id-1", "secret-1", srv.Client())
	if err == nil {
		t.Fatal("expected error for missing access_token")
	}
}
