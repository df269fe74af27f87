package export

import (
	"fmt"
	"math"
	"strings"
)

// GenerateEDL lays clips end to end on the record side. Each source range
// runs from the start of the clip file to its length.
func GenerateEDL(clips []Clip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(DefaultFrameRate)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	if isDropFrame(frameRate) {
		b.WriteString("FCM: DROP FRAME\n")
	} else {
		b.WriteString("FCM: NON-DROP FRAME\n")
	}
	b.WriteString("\n")

	record := 0
	for i, clip := range clips {
		frames := toFrames(clip.Duration, fps)
		fmt.Fprintf(&b, "%03d  %-8s %-5s C        %s %s %s %s\n", i+1, reelName(i), "V",
			timecode(0, fps), timecode(frames, fps), timecode(record, fps), timecode(record+frames, fps))
		fmt.Fprintf(&b, "* FROM CLIP NAME:  %s\n", clip.Name)
		fmt.Fprintf(&b, "* SOURCE FILE:  %s\n", clip.MediaPath)
		record += frames
	}
	return b.String()
}

func isDropFrame(rate float64) bool {
	return math.Abs(rate-29.97) < 0.01 || math.Abs(rate-59.94) < 0.01
}

// reelName is the eight character source reel column, one per clip.
func reelName(i int) string {
	return fmt.Sprintf("CLIP%04d", i+1)
}

func toFrames(seconds float64, fps int) int {
	return int(math.Round(seconds * float64(fps)))
}

func timecode(frames, fps int) string {
	ff := frames % fps
	secs := frames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/3600, secs/60%60, secs%60, ff)
}
