package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int `validate:"min=1,max=65535"`

	// Frame surface
	Width  int `validate:"min=64,max=3840"`
	Height int `validate:"min=64,max=2160"`
	FPS    int `validate:"min=1,max=120"`

	// Slide timing
	SecondsPerSlide float64 `validate:"gt=0,lte=600"`
	FadeSeconds     float64 `validate:"gte=0"`

	// Generation behavior
	AudioEnabled bool
	RealTime     bool   // pace frames at wall-clock rate like an animation loop
	FFmpegPath   string `validate:"required"`
	FontPath     string // empty = built-in Go Regular
	OutputPath   string // non-empty = render once to this file and exit

	LogLevel string `validate:"oneof=trace debug info warn warning error"`
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port: envInt("SLIDEREEL_PORT", 8080),

		Width:  envInt("SLIDEREEL_WIDTH", 1280),
		Height: envInt("SLIDEREEL_HEIGHT", 720),
		FPS:    envInt("SLIDEREEL_FPS", 30),

		SecondsPerSlide: envFloat("SLIDEREEL_SECONDS_PER_SLIDE", 6),
		FadeSeconds:     envFloat("SLIDEREEL_FADE_SECONDS", 1),

		AudioEnabled: envBool("SLIDEREEL_AUDIO", true),
		RealTime:     envBool("SLIDEREEL_REALTIME", true),
		FFmpegPath:   envStr("SLIDEREEL_FFMPEG", "ffmpeg"),
		FontPath:     envStr("SLIDEREEL_FONT", ""),
		OutputPath:   envStr("SLIDEREEL_OUTPUT", ""),

		LogLevel: strings.ToLower(envStr("SLIDEREEL_LOG_LEVEL", "info")),
	}
}

// Validate checks field ranges and that the fade windows fit inside a slide.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("invalid config: %s", formatValidationErrors(verrs))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if 2*c.FadeSeconds > c.SecondsPerSlide {
		return fmt.Errorf("invalid config: fade %.2fs does not fit twice in a %.2fs slide", c.FadeSeconds, c.SecondsPerSlide)
	}
	return nil
}

// SlideDuration returns SecondsPerSlide as a time.Duration.
func (c Config) SlideDuration() time.Duration {
	return time.Duration(c.SecondsPerSlide * float64(time.Second))
}

func formatValidationErrors(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msg := fmt.Sprintf("field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		if e.Param() != "" {
			msg = fmt.Sprintf("%s (value: %s)", msg, e.Param())
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
