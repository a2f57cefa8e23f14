package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/dramaforge/dramaforge-backend/pkg/errors"
)

func TestElevenLabsSynthesizeSpeechMapsPresetVoices(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte("audio"))
	}))
	defer server.Close()

	client := NewElevenLabsClient("el-key", WithElevenLabsBaseURL(server.URL), WithElevenLabsHTTPClient(server.Client()))
	result, err := client.SynthesizeSpeech(context.Background(), SpeechRequest{Text: "hello there", VoiceID: "ultra-female"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/text-to-speech/21m00Tcm4TlvDq8ikWAM" {
		t.Fatalf("preset voice not mapped, path %s", gotPath)
	}
	if gotKey != "el-key" {
		t.Fatalf("api key header missing, got %q", gotKey)
	}
	if gotBody["model_id"] != "eleven_multilingual_v2" {
		t.Fatalf("unexpected model %v", gotBody["model_id"])
	}
	if result.ResolvedVoice != "21m00Tcm4TlvDq8ikWAM" {
		t.Fatalf("unexpected resolved voice %s", result.ResolvedVoice)
	}
}

func TestElevenLabsSynthesizeSpeechPassesClonedVoiceID(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("audio"))
	}))
	defer server.Close()

	client := NewElevenLabsClient("el-key", WithElevenLabsBaseURL(server.URL), WithElevenLabsHTTPClient(server.Client()))
	if _, err := client.SynthesizeSpeech(context.Background(), SpeechRequest{Text: "hi", VoiceID: "clone-abc123"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/text-to-speech/clone-abc123" {
		t.Fatalf("cloned voice id not passed through, path %s", gotPath)
	}
}

func TestElevenLabsSynthesizeSpeechUnconfigured(t *testing.T) {
	client := NewElevenLabsClient("")
	_, err := client.SynthesizeSpeech(context.Background(), SpeechRequest{Text: "hi", VoiceID: "ultra-female"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeProviderUnavailable {
		t.Fatalf("expected provider-unavailable, got %v", err)
	}
}

func TestElevenLabsCloneVoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices/add" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("name") != "My Voice" {
			t.Fatalf("name field missing, got %q", r.FormValue("name"))
		}
		if _, _, err := r.FormFile("files"); err != nil {
			t.Fatalf("files field missing: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"voice_id": "cloned-123"})
	}))
	defer server.Close()

	client := NewElevenLabsClient("el-key", WithElevenLabsBaseURL(server.URL), WithElevenLabsHTTPClient(server.Client()))
	voiceID, err := client.CloneVoice(context.Background(), CloneRequest{Name: "My Voice", AudioSample: []byte("mp3")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if voiceID != "cloned-123" {
		t.Fatalf("unexpected voice id %s", voiceID)
	}
}

func TestElevenLabsCloneVoiceValidation(t *testing.T) {
	client := NewElevenLabsClient("el-key")
	if _, err := client.CloneVoice(context.Background(), CloneRequest{Name: "", AudioSample: []byte("x")}); err == nil {
		t.Fatal("expected error for missing name")
	}
	if _, err := client.CloneVoice(context.Background(), CloneRequest{Name: "v", AudioSample: nil}); err == nil {
		t.Fatal("expected error for missing sample")
	}
}

func TestElevenLabsCloneVoiceUnconfigured(t *testing.T) {
	client := NewElevenLabsClient("")
	_, err := client.CloneVoice(context.Background(), CloneRequest{Name: "v", AudioSample: []byte("x")})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeProviderUnavailable {
		t.Fatalf("expected provider-unavailable, got %v", err)
	}
}
