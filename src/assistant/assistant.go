// Package assistant runs one capture: grab the selected region, extract its
// text, ask the generative API, and record the exchange.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gemini-assistant/src/gemini"
	"gemini-assistant/src/logutil"
	"gemini-assistant/src/ocr"
	"gemini-assistant/src/screenshot"
)

const (
	StatusReady         = "Ready - F12: Capture | F11: Toggle UI | Instance: Single"
	StatusSelecting     = "Select an area on your screen..."
	StatusProcessing    = "Processing selected area..."
	StatusExtracting    = "Extracting text from image..."
	StatusCallingAI     = "Text extracted. Calling AI..."
	StatusNoText        = "No text found in selection."
	StatusCaptureFailed = "Error: Could not capture screen."
	StatusCleared       = "History cleared - Ready for capture"
	StatusBusy          = "Busy - still processing the previous capture"

	QuestionNoText      = "No text detected"
	AnswerNoText        = "Could not extract text from the selected area."
	QuestionCaptureFail = "Screen capture failed"
	AnswerCaptureFail   = "Screenshot failed. Check your system permissions."
)

const (
	statusTimeout      = 3 * time.Second
	statusErrorTimeout = 5 * time.Second
)

// StatusTimeout is how long msg stays up before the ready text returns.
// Zero keeps it until the next status.
func StatusTimeout(msg string) time.Duration {
	switch msg {
	case StatusReady, StatusSelecting, StatusProcessing, StatusExtracting, StatusCallingAI:
		return 0
	case StatusCaptureFailed, StatusNoText:
		return statusErrorTimeout
	default:
		return statusTimeout
	}
}

// Capturer returns the PNG encoding of region.
type Capturer func(region screenshot.Region) ([]byte, error)

// Asker answers a prompt.
type Asker interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assistant wires the pipeline stages together.
type Assistant struct {
	Capture Capturer
	OCR     ocr.Engine
	Ask     Asker
	// Status, when set, receives progress messages. It is called from the
	// goroutine running Process.
	Status func(msg string)
}

// Exchange is the outcome of one capture before it is numbered by History.
type Exchange struct {
	Question string
	Answer   string
}

// Process runs one capture to completion. It never fails: every problem is
// reported as an Exchange the user can read.
func (a *Assistant) Process(ctx context.Context, region screenshot.Region) Exchange {
	a.status(StatusProcessing)

	capture := a.Capture
	if capture == nil {
		capture = screenshot.CaptureRegion
	}
	png, err := capture(region)
	if err != nil {
		log.Printf("assistant: capture %+v failed: %v", region, err)
		a.status(StatusCaptureFailed)
		return Exchange{Question: QuestionCaptureFail, Answer: AnswerCaptureFail}
	}

	a.status(StatusExtracting)
	text, err := ocr.ExtractPNG(ctx, a.OCR, png)
	if err != nil {
		// Extraction errors read the same as an empty selection.
		log.Printf("assistant: OCR failed: %v", err)
		text = ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		a.status(StatusNoText)
		return Exchange{Question: QuestionNoText, Answer: AnswerNoText}
	}
	log.Printf("assistant: extracted %q", logutil.Sanitize(text, 120))

	a.status(StatusCallingAI)
	return Exchange{Question: text, Answer: a.answer(ctx, text)}
}

func (a *Assistant) answer(ctx context.Context, prompt string) string {
	if a.Ask == nil {
		return ErrorText(gemini.ErrNoAPIKey)
	}
	answer, err := a.Ask.Generate(ctx, prompt)
	if err != nil {
		log.Printf("assistant: generate failed: %v", err)
		return ErrorText(err)
	}
	return answer
}

// ErrorText turns an API failure into the inline answer shown in history.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, gemini.ErrNoAPIKey):
		return "Error: API Key not configured for Generative AI."
	case errors.Is(err, gemini.ErrUnexpectedResponse):
		return "Error: Could not parse AI response."
	default:
		return fmt.Sprintf("Error connecting to AI: %v", err)
	}
}

func (a *Assistant) status(msg string) {
	if a.Status != nil {
		a.Status(msg)
	}
}
