package model

import "testing"

func strPtr(s string) *string { return &s }

func TestFormatClassification(t *testing.T) {
	cases := []struct {
		name     string
		f        Format
		audio    bool
		combined bool
	}{
		{"audio-only", Format{ID: "1", ACodec: strPtr("opus"), VCodec: strPtr("none")}, true, false},
		{"audio without vcodec field", Format{ID: "2", ACodec: strPtr("mp4a.40.2")}, true, false},
		{"combined", Format{ID: "3", ACodec: strPtr("mp4a.40.2"), VCodec: strPtr("avc1")}, false, true},
		{"video-only", Format{ID: "4", ACodec: strPtr("none"), VCodec: strPtr("vp9")}, false, false},
		{"uppercase none", Format{ID: "5", ACodec: strPtr("NONE"), VCodec: strPtr("avc1")}, false, false},
		{"no codecs", Format{ID: "6"}, false, false},
	}
	for _, tc := range cases {
		if got := tc.f.IsAudioOnly(); got != tc.audio {
			t.Fatalf("%s: IsAudioOnly = %v want %v", tc.name, got, tc.audio)
		}
		if got := tc.f.IsCombined(); got != tc.combined {
			t.Fatalf("%s: IsCombined = %v want %v", tc.name, got, tc.combined)
		}
	}
}

func TestAudioBitrateFallsBackToTotal(t *testing.T) {
	abr, tbr := 96.0, 130.0
	if got := (Format{Bitrate: &abr, TotalBitrate: &tbr}).AudioBitrate(); got != abr {
		t.Fatalf("expected abr, got %v", got)
	}
	if got := (Format{TotalBitrate: &tbr}).AudioBitrate(); got != tbr {
		t.Fatalf("expected tbr fallback, got %v", got)
	}
	if got := (Format{}).AudioBitrate(); got != 0 {
		t.Fatalf("expected zero, got %v", got)
	}
}
