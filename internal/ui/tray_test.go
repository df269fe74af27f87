package ui

import "testing"

func TestStatusTitle(t *testing.T) {
	tests := []struct {
		running int
		want    string
	}{
		{0, "Idle"},
		{1, "Cropping 1 video"},
		{3, "Cropping 3 videos"},
	}
	for _, tt := range tests {
		if got := statusTitle(tt.running); got != tt.want {
			t.Errorf("statusTitle(%d) = %q, want %q", tt.running, got, tt.want)
		}
	}
}

func TestVideosTitle(t *testing.T) {
	if got := videosTitle(7, 2); got != "Videos: 7 (2 cropped)" {
		t.Errorf("videosTitle() = %q", got)
	}
}

func TestRefresh_BeforeReadyIsNoop(t *testing.T) {
	tr := NewTray(TrayConfig{})
	tr.Refresh()
}

func TestIconIsPNG(t *testing.T) {
	if len(iconBytes) < 8 || string(iconBytes[1:4]) != "PNG" {
		t.Fatal("iconBytes is not a PNG")
	}
}
