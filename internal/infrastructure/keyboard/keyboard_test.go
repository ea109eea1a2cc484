package keyboard

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

func TestTrigger_FiresOnPlus(t *testing.T) {
	trig := NewTrigger(context.Background(), strings.NewReader("a+\nb++"), nopLogger{})

	count := 0
	for range trig.Triggers() {
		count++
	}
	assert.Equal(t, 3, count)
}

func TestTrigger_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	trig := NewTrigger(ctx, strings.NewReader("+++"), nopLogger{})

	<-trig.Triggers()
	cancel()

	for range trig.Triggers() {
	}
}
