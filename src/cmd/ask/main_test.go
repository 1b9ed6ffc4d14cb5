package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeEngine struct {
	text string
	err  error
	seen []byte
}

func (f *fakeEngine) Extract(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}
	f.seen = data
	return f.text, f.err
}

type fakeAsker struct {
	answer string
	err    error
	prompt string
}

func (f *fakeAsker) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, f.err
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writePNG(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "question.png")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testDeps(engine *fakeEngine, asker *fakeAsker) (*deps, *bytes.Buffer) {
	var out bytes.Buffer
	return &deps{engine: engine, asker: asker, stdout: &out, stderr: &bytes.Buffer{}}, &out
}

func args(t *testing.T, extra ...string) []string {
	t.Helper()
	env := filepath.Join(t.TempDir(), "missing.env")
	return append([]string{"gemini-ask", "--env-file", env}, extra...)
}

func TestAskPlainOutput(t *testing.T) {
	engine := &fakeEngine{text: "What is the capital of France?\n"}
	asker := &fakeAsker{answer: "Paris"}
	d, out := testDeps(engine, asker)

	if err := runWithArgs(args(t, "--file", writePNG(t, testPNG(t, 4, 4))), d); err != nil {
		t.Fatalf("runWithArgs: %v", err)
	}
	if got := out.String(); got != "Paris\n" {
		t.Errorf("stdout = %q, want %q", got, "Paris\n")
	}
	if asker.prompt != "What is the capital of France?" {
		t.Errorf("prompt = %q", asker.prompt)
	}
}

func TestAskJSONOutput(t *testing.T) {
	engine := &fakeEngine{text: "2+2"}
	asker := &fakeAsker{answer: "4"}
	d, out := testDeps(engine, asker)
	path := writePNG(t, testPNG(t, 4, 4))

	if err := runWithArgs(args(t, "--file", path, "--json"), d); err != nil {
		t.Fatalf("runWithArgs: %v", err)
	}

	var result AskResult
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if result.Question != "2+2" || result.Answer != "4" {
		t.Errorf("result = %+v", result)
	}
	if result.Source != path {
		t.Errorf("source = %q, want %q", result.Source, path)
	}
	if result.CharCount != 3 {
		t.Errorf("character_count = %d, want 3", result.CharCount)
	}
	if result.Timestamp == "" {
		t.Error("missing timestamp")
	}
}

func TestAskPromptPrefix(t *testing.T) {
	asker := &fakeAsker{answer: "ok"}
	d, _ := testDeps(&fakeEngine{text: "text"}, asker)

	err := runWithArgs(args(t, "--file", writePNG(t, testPNG(t, 2, 2)), "--prompt-prefix", "Answer briefly:"), d)
	if err != nil {
		t.Fatalf("runWithArgs: %v", err)
	}
	if asker.prompt != "Answer briefly:\n\ntext" {
		t.Errorf("prompt = %q", asker.prompt)
	}
}

func TestAskNoTextSkipsModel(t *testing.T) {
	asker := &fakeAsker{answer: "unused"}
	d, out := testDeps(&fakeEngine{text: "  \n"}, asker)

	err := runWithArgs(args(t, "--file", writePNG(t, testPNG(t, 2, 2))), d)
	if !errors.Is(err, errNoTextFound) {
		t.Fatalf("err = %v, want errNoTextFound", err)
	}
	if asker.prompt != "" {
		t.Errorf("model was asked %q", asker.prompt)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected stdout %q", out.String())
	}
}

func TestAskModelErrorIsReturned(t *testing.T) {
	d, _ := testDeps(&fakeEngine{text: "q"}, &fakeAsker{err: errors.New("boom")})

	err := runWithArgs(args(t, "--file", writePNG(t, testPNG(t, 2, 2))), d)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestAskRejectsNonPNG(t *testing.T) {
	d, _ := testDeps(&fakeEngine{text: "q"}, &fakeAsker{})
	err := runWithArgs(args(t, "--file", writePNG(t, []byte("GIF89a not a png"))), d)
	if err == nil || !strings.Contains(err.Error(), "magic") {
		t.Fatalf("err = %v, want magic number error", err)
	}
}

func TestAskRejectsEmptyFile(t *testing.T) {
	d, _ := testDeps(&fakeEngine{text: "q"}, &fakeAsker{})
	err := runWithArgs(args(t, "--file", writePNG(t, nil)), d)
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("err = %v, want empty file error", err)
	}
}

func TestAskReadsStdin(t *testing.T) {
	engine := &fakeEngine{text: "q"}
	d, out := testDeps(engine, &fakeAsker{answer: "a"})
	img := testPNG(t, 3, 3)
	d.stdin = bytes.NewReader(img)

	if err := runWithArgs(args(t, "--file", "-"), d); err != nil {
		t.Fatalf("runWithArgs: %v", err)
	}
	if !bytes.Equal(engine.seen, img) {
		t.Error("engine did not receive the stdin image")
	}
	if out.String() != "a\n" {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestAskRegionCrops(t *testing.T) {
	engine := &fakeEngine{text: "q"}
	d, _ := testDeps(engine, &fakeAsker{answer: "a"})

	err := runWithArgs(args(t, "--file", writePNG(t, testPNG(t, 20, 10)), "--region", "2,3,5,4"), d)
	if err != nil {
		t.Fatalf("runWithArgs: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(engine.seen))
	if err != nil {
		t.Fatalf("engine saw invalid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 5 || b.Dy() != 4 {
		t.Errorf("cropped size = %dx%d, want 5x4", b.Dx(), b.Dy())
	}
	if r, g, _, _ := img.At(0, 0).RGBA(); r>>8 != 2 || g>>8 != 3 {
		t.Errorf("crop origin pixel = (%d,%d), want (2,3)", r>>8, g>>8)
	}
}

func TestAskRegionOutsideImage(t *testing.T) {
	d, _ := testDeps(&fakeEngine{text: "q"}, &fakeAsker{})
	err := runWithArgs(args(t, "--file", writePNG(t, testPNG(t, 4, 4)), "--region", "100,100,5,5"), d)
	if err == nil {
		t.Fatal("expected an error for a region outside the image")
	}
}

func TestParseRegion(t *testing.T) {
	r, err := parseRegion(" 1, 2,30 ,40")
	if err != nil {
		t.Fatalf("parseRegion: %v", err)
	}
	if r.X != 1 || r.Y != 2 || r.Width != 30 || r.Height != 40 {
		t.Errorf("region = %+v", r)
	}

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "0,0,0,10", "0,0,10,-1"} {
		if _, err := parseRegion(bad); err == nil {
			t.Errorf("parseRegion(%q) succeeded", bad)
		}
	}
}

func TestFileFlagRequired(t *testing.T) {
	d, _ := testDeps(&fakeEngine{}, &fakeAsker{})
	err := runWithArgs([]string{"gemini-ask"}, d)
	if err == nil || !strings.Contains(err.Error(), "file") {
		t.Fatalf("err = %v, want required flag error", err)
	}
}

func TestNormalizeLegacyArgs(t *testing.T) {
	got := normalizeLegacyArgs([]string{"gemini-ask", "-file", "x.png", "-json", "-region=1,2,3,4", "-v", "--verbose"})
	want := []string{"gemini-ask", "--file", "x.png", "--json", "--region=1,2,3,4", "-v", "--verbose"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("normalizeLegacyArgs = %v, want %v", got, want)
	}
}
