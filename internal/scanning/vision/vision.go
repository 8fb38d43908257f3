package vision

import (
	"context"
	"errors"
	"fmt"
	"image"

	visionapi "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/zombor/card-assistant/internal/scanning"
)

// ErrNoResponse is returned when Vision answers a request with no result
var ErrNoResponse = errors.New("no annotation response")

// Engine implements scanning.Engine with Google Cloud Vision document text detection
type Engine struct {
	client *visionapi.ImageAnnotatorClient
	hints  []string
}

// New creates a Vision engine. An empty credentials path falls back to
// application default credentials.
func New(ctx context.Context, credentialsFile string) (*Engine, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := visionapi.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}

	return &Engine{client: client, hints: []string{"ko", "en"}}, nil
}

func (e *Engine) Name() string { return "vision" }

// Recognize sends the image as PNG and returns the full text annotation
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := scanning.EncodePNG(img)
	if err != nil {
		return "", err
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:        &visionpb.Image{Content: data},
			Features:     []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			ImageContext: &visionpb.ImageContext{LanguageHints: e.hints},
		}},
	}

	resp, err := e.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("annotating image: %w", err)
	}
	return annotationText(resp)
}

// annotationText pulls the document text out of a batch response. A card
// with nothing printed on it yields empty text, not an error.
func annotationText(resp *visionpb.BatchAnnotateImagesResponse) (string, error) {
	if len(resp.GetResponses()) == 0 {
		return "", ErrNoResponse
	}

	r := resp.GetResponses()[0]
	if r.GetError() != nil && r.GetError().GetMessage() != "" {
		return "", fmt.Errorf("vision error: %s", r.GetError().GetMessage())
	}
	return r.GetFullTextAnnotation().GetText(), nil
}

// Close closes the Vision client
func (e *Engine) Close() error {
	return e.client.Close()
}
