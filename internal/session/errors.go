package session

import (
	"context"
	"errors"

	"github.com/satindergrewal/slidereel/internal/capture"
	"github.com/satindergrewal/slidereel/internal/render"
)

// Message turns a run error into the one line shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, render.ErrNoSurface):
		return "Drawing surface is not available."
	case errors.Is(err, render.ErrNoContext):
		return "Could not get a drawing context."
	case errors.Is(err, capture.ErrRecorderUnavailable):
		return "Video recording is not supported here."
	case errors.Is(err, capture.ErrUnsupportedFormat):
		return "No supported video format for recording."
	case errors.Is(err, ErrBusy):
		return "A video is already being generated."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Video generation was interrupted."
	}
	return "Video generation failed: " + err.Error()
}
