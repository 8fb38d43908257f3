package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/card-assistant/internal/scanning"
)

// DefaultLanguages covers Korean cards with Latin emails and titles
var DefaultLanguages = []string{"kor", "eng"}

// Engine implements scanning.Engine using the gosseract client
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// New creates a Tesseract engine for the given traineddata languages
func New(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Engine{languages: languages, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize uses a fresh client per call; gosseract clients are not safe for
// concurrent use.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := scanning.EncodePNG(img)
	if err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (e *Engine) Close() error { return nil }
