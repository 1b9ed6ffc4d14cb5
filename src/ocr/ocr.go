package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

// Engine extracts text from an image file.
type Engine interface {
	Extract(ctx context.Context, imagePath string) (string, error)
}

// Tesseract runs the tesseract command-line tool.
type Tesseract struct {
	// Path is the binary name or absolute path; empty means "tesseract" on PATH.
	Path string
	// Args are extra flags passed after the output base (for example "-l", "eng").
	Args []string
}

func (t Tesseract) binary() string {
	if t.Path == "" {
		return "tesseract"
	}
	return t.Path
}

// Extract returns whatever tesseract writes to stdout. An image without any
// recognisable text yields an empty string and no error.
func (t Tesseract) Extract(ctx context.Context, imagePath string) (string, error) {
	args := append([]string{imagePath, "stdout"}, t.Args...)
	cmd := exec.CommandContext(ctx, t.binary(), args...)
	hideWindow(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("run %s: %w", t.binary(), err)
	}
	return stdout.String(), nil
}

// ExtractPNG writes png to a temporary file, runs engine on it, and removes
// the file again.
func ExtractPNG(ctx context.Context, engine Engine, png []byte) (string, error) {
	f, err := os.CreateTemp("", "gemini-assistant-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("ocr: remove %s: %v", path, err)
		}
	}()

	if _, err := f.Write(png); err != nil {
		f.Close()
		return "", fmt.Errorf("write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp image: %w", err)
	}

	if os.Getenv("OCR_DEBUG_SAVE_IMAGES") == "true" {
		log.Printf("ocr: extracting %s (%d bytes)", path, len(png))
	}
	return engine.Extract(ctx, path)
}
