package video

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseFFprobeOutput(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 1080, "height": 1920}
		],
		"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "45.500000"}
	}`)

	res, err := parseFFprobeOutput(data)
	if err != nil {
		t.Fatalf("parseFFprobeOutput() error = %v", err)
	}
	if res.Duration != 45500*time.Millisecond {
		t.Errorf("Duration = %v, want 45.5s", res.Duration)
	}
	if res.Width != 1080 || res.Height != 1920 {
		t.Errorf("dimensions = %dx%d, want 1080x1920", res.Width, res.Height)
	}
	if len(res.FormatNames) != 6 || res.FormatNames[1] != "mp4" {
		t.Errorf("FormatNames = %v", res.FormatNames)
	}
}

func TestParseFFprobeOutput_Rotation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"rotate tag", `{"streams":[{"codec_type":"video","width":1920,"height":1080,"tags":{"rotate":"90"}}],"format":{}}`},
		{"side data", `{"streams":[{"codec_type":"video","width":1920,"height":1080,"side_data_list":[{"rotation":-90}]}],"format":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parseFFprobeOutput([]byte(tt.data))
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if res.Width != 1080 || res.Height != 1920 {
				t.Errorf("dimensions = %dx%d, want 1080x1920", res.Width, res.Height)
			}
		})
	}
}

func TestParseFFprobeOutput_Invalid(t *testing.T) {
	if _, err := parseFFprobeOutput([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := parseFFprobeOutput([]byte(`{"format":{"duration":"abc"}}`)); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestFFprobe_NotInstalled(t *testing.T) {
	p := &FFprobe{Path: "reelsync-ffprobe-does-not-exist"}

	_, err := p.Probe(context.Background(), "clip.mp4")
	if !errors.Is(err, ErrFFprobeNotInstalled) {
		t.Errorf("Probe() error = %v, want ErrFFprobeNotInstalled", err)
	}
}

func TestAssetIsVertical(t *testing.T) {
	tests := []struct {
		w, h int
		want bool
	}{
		{1080, 1920, true},
		{1920, 1080, false},
		{1080, 1080, false},
		{0, 0, true},
	}
	for _, tt := range tests {
		a := Asset{Width: tt.w, Height: tt.h}
		if got := a.IsVertical(); got != tt.want {
			t.Errorf("Asset{%dx%d}.IsVertical() = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}
