package stt

import "testing"

func TestDefaultAudioConfig(t *testing.T) {
	cfg := DefaultAudioConfig()

	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if cfg.Channels != 1 {
		t.Errorf("expected 1 channel, got %d", cfg.Channels)
	}
	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected language 'en-US', got %s", cfg.LanguageCode)
	}
	if !cfg.InterimResults {
		t.Error("expected interim results enabled by default")
	}
}
