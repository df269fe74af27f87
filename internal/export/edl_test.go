package export

import (
	"strings"
	"testing"
)

func TestGenerateEDL_ContiguousRecordSide(t *testing.T) {
	clips := []Clip{
		{Name: "Beach (Cropped)", MediaPath: "/docs/crops/crop_1.mp4", Duration: 5},
		{Name: "Dinner (Cropped)", MediaPath: "/docs/crops/crop_2.mp4", Duration: 2.5},
	}

	edl := GenerateEDL(clips, "Summer", 30)

	for _, want := range []string{
		"TITLE: Summer",
		"FCM: NON-DROP FRAME",
		"001  CLIP0001 V     C        00:00:00:00 00:00:05:00 00:00:00:00 00:00:05:00",
		"* FROM CLIP NAME:  Beach (Cropped)",
		"* SOURCE FILE:  /docs/crops/crop_1.mp4",
		"002  CLIP0002 V     C        00:00:00:00 00:00:02:15 00:00:05:00 00:00:07:15",
	} {
		if !strings.Contains(edl, want) {
			t.Errorf("EDL missing %q:\n%s", want, edl)
		}
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	edl := GenerateEDL([]Clip{{Name: "c", MediaPath: "/c.mp4", Duration: 1}}, "Drop", 29.97)
	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame FCM, got: %q", edl)
	}
}

func TestTimecode(t *testing.T) {
	tests := []struct {
		name   string
		frames int
		fps    int
		want   string
	}{
		{"zero", 0, 30, "00:00:00:00"},
		{"half second", 15, 30, "00:00:00:15"},
		{"one minute", 1800, 30, "00:01:00:00"},
		{"one hour", 108000, 30, "01:00:00:00"},
		{"25 fps", 26, 25, "00:00:01:01"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := timecode(tc.frames, tc.fps); got != tc.want {
				t.Fatalf("timecode(%d, %d) = %q, want %q", tc.frames, tc.fps, got, tc.want)
			}
		})
	}
}
