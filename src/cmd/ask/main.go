package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gemini-assistant/src/assistant"
	"gemini-assistant/src/config"
	"gemini-assistant/src/gemini"
	"gemini-assistant/src/logutil"
	"gemini-assistant/src/ocr"
	"gemini-assistant/src/screenshot"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var (
	pngMagic       = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	errNoTextFound = errors.New("no text detected in image")
)

type cliOptions struct {
	filePath     string
	jsonOutput   bool
	verbose      bool
	promptPrefix string
	region       string
	envFile      string
}

// deps are the pipeline stages; tests replace them.
type deps struct {
	engine ocr.Engine
	asker  assistant.Asker
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), nil)
}

func runWithArgs(args []string, d *deps) error {
	if len(args) == 0 {
		args = []string{"gemini-ask"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, d)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, d *deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gemini-ask",
		Short:         "Read the text in a PNG with tesseract and ask Gemini about it",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts, d)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.Flags().StringVar(&opts.promptPrefix, "prompt-prefix", "", "Text prepended to the extracted text")
	cmd.Flags().StringVar(&opts.region, "region", "", "Crop to x,y,width,height (image pixels) before OCR")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Path to the .env file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWithOptions(ctx context.Context, opts cliOptions, d *deps) error {
	if d == nil {
		d = &deps{}
	}
	if d.stdin == nil {
		d.stdin = os.Stdin
	}
	if d.stdout == nil {
		d.stdout = os.Stdout
	}
	if d.stderr == nil {
		d.stderr = os.Stderr
	}

	// Configure logging BEFORE any other operations.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(d.stderr)
		fmt.Fprintf(d.stderr, "[verbose] Starting gemini-ask\n")
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{EnvFile: opts.envFile})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.verbose {
		fmt.Fprintf(d.stderr, "[verbose] Config loaded: Model=%s, tesseract=%s\n", cfg.Model, cfg.TesseractPath)
	}

	if d.engine == nil {
		d.engine = ocr.Tesseract{Path: cfg.TesseractPath}
	}
	if d.asker == nil {
		if !cfg.HasAPIKey() {
			return fmt.Errorf("GEMINI_API_KEY not found. Checked %q and the environment", cfg.EnvPath)
		}
		if opts.verbose {
			fmt.Fprintf(d.stderr, "[verbose] Using API key %s\n", logutil.RedactKey(cfg.APIKey))
		}
		d.asker = gemini.New(cfg.APIKey, cfg.Model, cfg.APIBaseURL, cfg.APITimeout)
	}

	imageData, err := readImage(opts.filePath, d.stdin)
	if err != nil {
		return err
	}
	if opts.region != "" {
		region, err := parseRegion(opts.region)
		if err != nil {
			return err
		}
		if imageData, err = cropPNG(imageData, region); err != nil {
			return err
		}
		if opts.verbose {
			fmt.Fprintf(d.stderr, "[verbose] Cropped to %+v\n", region)
		}
	}

	return ask(ctx, opts, d, imageData)
}

func readImage(filePath string, stdin io.Reader) ([]byte, error) {
	var imageData []byte
	var err error
	if filePath == "-" {
		imageData, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		imageData, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}

	if len(imageData) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(imageData) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if len(imageData) < len(pngMagic) || !bytes.Equal(imageData[:len(pngMagic)], pngMagic) {
		return nil, fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return imageData, nil
}

// parseRegion reads "x,y,width,height".
func parseRegion(s string) (screenshot.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return screenshot.Region{}, fmt.Errorf("invalid region %q: want x,y,width,height", s)
	}
	var n [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return screenshot.Region{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		n[i] = v
	}
	r := screenshot.Region{X: n[0], Y: n[1], Width: n[2], Height: n[3]}
	if r.Empty() {
		return screenshot.Region{}, fmt.Errorf("invalid region %q: width and height must be positive", s)
	}
	return r, nil
}

func cropPNG(data []byte, region screenshot.Region) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}
	// Region coordinates are relative to the image origin.
	region.X += img.Bounds().Min.X
	region.Y += img.Bounds().Min.Y
	return screenshot.CropPNG(img, region)
}

func ask(ctx context.Context, opts cliOptions, d *deps, imageData []byte) error {
	start := time.Now()
	text, err := ocr.ExtractPNG(ctx, d.engine, imageData)
	if err != nil {
		return fmt.Errorf("OCR failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return errNoTextFound
	}
	if opts.verbose {
		fmt.Fprintf(d.stderr, "[verbose] Extracted %d characters: %s\n", len(text), logutil.Sanitize(text, 100))
	}

	prompt := text
	if opts.promptPrefix != "" {
		prompt = opts.promptPrefix + "\n\n" + text
	}
	answer, err := d.asker.Generate(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		if opts.verbose {
			fmt.Fprintf(d.stderr, "[verbose] Request failed after %v: %v\n", elapsed, err)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	if opts.verbose {
		fmt.Fprintf(d.stderr, "[verbose] Answered in %v\n", elapsed)
	}
	return outputResult(d.stdout, text, answer, opts.filePath, elapsed, opts.jsonOutput)
}

type AskResult struct {
	Question  string  `json:"question"`
	Answer    string  `json:"answer"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
}

func outputResult(w io.Writer, question, answer, sourcePath string, elapsed time.Duration, jsonOutput bool) error {
	if !jsonOutput {
		_, err := fmt.Fprintln(w, answer)
		return err
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(AskResult{
		Question:  question,
		Answer:    answer,
		Source:    sourcePath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
		CharCount: len(question),
	}); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "verbose", "prompt-prefix", "region", "env-file"} {
			if arg == "-"+name || strings.HasPrefix(arg, "-"+name+"=") {
				normalized[i] = "-" + arg
				break
			}
		}
	}

	return normalized
}
