// Package capture reads the prompt phrase from a screen region: it checks the
// target window has focus, grabs the region, and runs an OCR command on it.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/rbright/promptvoice/internal/config"
	"github.com/rbright/promptvoice/internal/hypr"
)

const ocrTimeout = 5 * time.Second

// Grabber captures a screen rectangle.
type Grabber func(rect image.Rectangle) (image.Image, error)

// Source implements automation.Source. Every failure maps to "".
type Source struct {
	windowClass string
	ocr         []string
	windows     hypr.WindowQuerier
	grab        Grabber
	logger      *slog.Logger
}

// New builds a screen source backed by hyprctl and the display server.
func New(cfg config.CaptureConfig, logger *slog.Logger) *Source {
	return newSource(cfg, hypr.CLI{}, screenshotGrab, logger)
}

func newSource(cfg config.CaptureConfig, windows hypr.WindowQuerier, grab Grabber, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		windowClass: strings.TrimSpace(cfg.WindowClass),
		ocr:         append([]string(nil), cfg.OCR.Argv...),
		windows:     windows,
		grab:        grab,
		logger:      logger,
	}
}

// Capture returns the first recognized line in region, or "" when the target
// window is not focused or anything fails.
func (s *Source) Capture(ctx context.Context, region config.CaptureRegion) string {
	if !s.focused(ctx) {
		return ""
	}

	img, err := s.grab(Rect(region))
	if err != nil {
		s.logger.Debug("screen capture failed", "error", err.Error())
		return ""
	}

	text, err := s.recognize(ctx, img)
	if err != nil {
		s.logger.Debug("text recognition failed", "error", err.Error())
		return ""
	}
	return text
}

// focused reports whether the configured window class has focus. Without a
// configured class every window counts.
func (s *Source) focused(ctx context.Context) bool {
	if s.windowClass == "" {
		return true
	}
	window, err := s.windows.ActiveWindow(ctx)
	if err != nil {
		s.logger.Debug("active window query failed", "error", err.Error())
		return false
	}
	return window.Matches(s.windowClass)
}

// recognize pipes img as PNG into the OCR command and reads its stdout.
func (s *Source) recognize(ctx context.Context, img image.Image) (string, error) {
	if len(s.ocr) == 0 {
		return "", errors.New("ocr command is empty")
	}

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, ocrTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, s.ocr[0], s.ocr[1:]...)
	cmd.Stdin = &encoded
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		trimmed := strings.TrimSpace(stderr.String())
		if trimmed == "" {
			return "", fmt.Errorf("run %s: %w", s.ocr[0], err)
		}
		return "", fmt.Errorf("run %s: %w (%s)", s.ocr[0], err, trimmed)
	}
	return FirstLine(stdout.String()), nil
}

// FirstLine returns the first non-blank line of OCR output with internal
// whitespace collapsed.
func FirstLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			return strings.Join(fields, " ")
		}
	}
	return ""
}

// Rect converts a capture region to image coordinates.
func Rect(region config.CaptureRegion) image.Rectangle {
	return image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
}

func screenshotGrab(rect image.Rectangle) (image.Image, error) {
	if screenshot.NumActiveDisplays() <= 0 {
		return nil, errors.New("no active displays")
	}
	return screenshot.CaptureRect(rect)
}
