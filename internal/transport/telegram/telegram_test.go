package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flagcast/internal/transport"
	logx "flagcast/pkg/logx"
)

// fakeAPI captures sendMessage payloads and answers like the Bot API.
type fakeAPI struct {
	t        *testing.T
	payloads []map[string]any
	status   int
}

func (f *fakeAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		if len(body) > 0 {
			if err := json.Unmarshal(body, &m); err != nil {
				f.t.Errorf("request body is not JSON: %v", err)
			}
		}
		m["_path"] = r.URL.Path
		f.payloads = append(f.payloads, m)

		if f.status != 0 && f.status != http.StatusOK {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100,"type":"supergroup"}}}`))
	})
}

func newTestSender(t *testing.T, api *fakeAPI) *Sender {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return New(Config{APIBase: srv.URL, Timeout: 2 * time.Second}, logx.Nop())
}

func TestSendPayload(t *testing.T) {
	api := &fakeAPI{t: t}
	s := newTestSender(t, api)

	creds := transport.Credentials{Token: "TEST_TOKEN", ChatID: "-100555"}
	err := s.Send(context.Background(), creds, transport.Message{Text: "hello *world*", ThreadID: 7})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(api.payloads) != 1 {
		t.Fatalf("API received %d calls, want 1", len(api.payloads))
	}
	p := api.payloads[0]
	if p["_path"] != "/botTEST_TOKEN/sendMessage" {
		t.Fatalf("path = %v", p["_path"])
	}
	if p["chat_id"] != "-100555" {
		t.Fatalf("chat_id = %v", p["chat_id"])
	}
	if p["text"] != "hello *world*" {
		t.Fatalf("text = %v", p["text"])
	}
	if p["parse_mode"] != "Markdown" {
		t.Fatalf("parse_mode = %v", p["parse_mode"])
	}
	if got := p["disable_web_page_preview"]; got != "true" && got != true {
		t.Fatalf("disable_web_page_preview = %v", got)
	}
	if got := p["message_thread_id"]; got != "7" && got != float64(7) {
		t.Fatalf("message_thread_id = %v", got)
	}
}

func TestSendOmitsThreadIDWhenZero(t *testing.T) {
	api := &fakeAPI{t: t}
	s := newTestSender(t, api)

	creds := transport.Credentials{Token: "TEST_TOKEN", ChatID: "@ctfchannel"}
	if err := s.Send(context.Background(), creds, transport.Message{Text: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	p := api.payloads[0]
	if _, ok := p["message_thread_id"]; ok {
		t.Fatalf("message_thread_id present for ThreadID=0: %v", p["message_thread_id"])
	}
	if p["chat_id"] != "@ctfchannel" {
		t.Fatalf("chat_id = %v", p["chat_id"])
	}
}

func TestSendAPIErrorSurfacesToCaller(t *testing.T) {
	api := &fakeAPI{t: t, status: http.StatusUnauthorized}
	s := newTestSender(t, api)

	creds := transport.Credentials{Token: "BAD", ChatID: "-1"}
	if err := s.Send(context.Background(), creds, transport.Message{Text: "x"}); err == nil {
		t.Fatal("expected error from API failure")
	}
}

func TestSendEmptyCredentials(t *testing.T) {
	s := New(Config{}, logx.Nop())
	if err := s.Send(context.Background(), transport.Credentials{Token: "", ChatID: "-1"}, transport.Message{Text: "x"}); err == nil {
		t.Fatal("expected error for empty token")
	}
	if err := s.Send(context.Background(), transport.Credentials{Token: "t", ChatID: ""}, transport.Message{Text: "x"}); err == nil {
		t.Fatal("expected error for empty chat id")
	}
}
