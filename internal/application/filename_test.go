package application

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCaptureFilename(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)
	assert.Equal(t, "capture-05032024070809.jpg", CaptureFilename(ts))
	assert.Regexp(t, regexp.MustCompile(`^capture-\d{14}\.jpg$`), CaptureFilename(time.Now()))
}

func TestCaptureFilename_SameSecondCollides(t *testing.T) {
	base := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)

	// два снимка в одну секунду дают одно имя, в разные секунды - разные
	assert.Equal(t, CaptureFilename(base), CaptureFilename(base.Add(900*time.Millisecond)))
	assert.NotEqual(t, CaptureFilename(base), CaptureFilename(base.Add(time.Second)))
}

func TestIsCaptureKey(t *testing.T) {
	assert.True(t, IsCaptureKey("AudioVolumeUp", ""))
	assert.True(t, IsCaptureKey("Equal", "+"))
	assert.True(t, IsCaptureKey("NumpadAdd", "Add"))
	assert.False(t, IsCaptureKey("KeyA", "a"))
	assert.False(t, IsCaptureKey("AudioVolumeDown", ""))
}
