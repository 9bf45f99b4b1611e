package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSecureHandlerMasksKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{name: "client id", key: "client_id", value: "1234567890123456", wantMask: true},
		{name: "GA4 cid", key: "cid", value: "42", wantMask: true},
		{name: "session id uppercase", key: "Session_ID", value: "42", wantMask: true},
		{name: "proxy authorization", key: "proxy-authorization", value: "Basic abc", wantMask: true},
		{name: "key containing password", key: "db_password", value: "x", wantMask: true},
		{name: "event name stays", key: "event", value: "page_view", wantMask: false},
		{name: "tracking id stays", key: "tracking_id", value: "G-ABC123", wantMask: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)
			logger.Info("test", tt.key, tt.value)

			masked := strings.Contains(buf.String(), MaskValue)
			if masked != tt.wantMask {
				t.Errorf("expected masked=%v, got output %q", tt.wantMask, buf.String())
			}
		})
	}
}

func TestSecureHandlerMasksValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		wantMask bool
	}{
		{name: "bearer token", value: "Bearer abc.def", wantMask: true},
		{name: "jwt", value: "eyJhbGciOi.eyJzdWIiOi.sig", wantMask: true},
		{name: "long opaque key", value: strings.Repeat("a1", 20), wantMask: true},
		{name: "short word", value: "scroll", wantMask: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := isSensitiveValue(tt.value); got != tt.wantMask {
				t.Errorf("expected %v, got %v", tt.wantMask, got)
			}
		})
	}
}

func TestMaskURL(t *testing.T) {
	t.Parallel()

	t.Run("masks identifier parameters only", func(t *testing.T) {
		t.Parallel()

		got, ok := maskURL("https://www.google-analytics.com/g/collect?v=2&tid=G-X&cid=111&sid=222&en=scroll")
		if !ok {
			t.Fatal("expected url to be masked")
		}
		if strings.Contains(got, "111") || strings.Contains(got, "222") {
			t.Errorf("expected identifiers to be masked, got %q", got)
		}
		if !strings.Contains(got, "tid=G-X") || !strings.Contains(got, "en=scroll") {
			t.Errorf("expected other parameters to stay, got %q", got)
		}
	})

	t.Run("ignores urls without identifiers", func(t *testing.T) {
		t.Parallel()

		if _, ok := maskURL("https://example.com/?q=go"); ok {
			t.Error("expected no masking")
		}
		if _, ok := maskURL("not a url"); ok {
			t.Error("expected no masking")
		}
	})

	t.Run("through the logger", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		NewSecureJSONLogger(&buf, true).Debug("sent", "url", "https://heapanalytics.com/h?a=1&u=999&s=888")

		var rec map[string]any
		if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if u, _ := rec["url"].(string); strings.Contains(u, "999") || strings.Contains(u, "888") {
			t.Errorf("expected identifiers masked, got %q", u)
		}
	})
}

func TestSecureHandlerLevels(t *testing.T) {
	t.Parallel()

	var quiet, verbose bytes.Buffer
	NewSecureLogger(&quiet, false).Info("hidden")
	NewSecureLogger(&verbose, true).Debug("shown")

	if quiet.Len() != 0 {
		t.Errorf("expected info to be dropped, got %q", quiet.String())
	}
	if !strings.Contains(verbose.String(), "shown") {
		t.Error("expected debug output in verbose mode")
	}
}

func TestSecureHandlerWithAttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).With("client_id", "123").WithGroup("hit")
	logger.Info("test", slog.Group("ids", slog.String("sid", "456")), "event", "click")

	out := buf.String()
	if strings.Contains(out, "123") || strings.Contains(out, "456") {
		t.Errorf("expected identifiers masked, got %q", out)
	}
	if !strings.Contains(out, "click") {
		t.Errorf("expected event name in output, got %q", out)
	}
}

func TestNewSecureHandlerNilHandler(t *testing.T) {
	t.Parallel()

	if h := NewSecureHandler(nil); h.handler == nil {
		t.Error("expected default handler")
	}
}
