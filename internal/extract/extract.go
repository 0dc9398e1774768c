// Package extract defines the document-text extraction seam. The PDF
// download and OCR/AI pipeline is an external collaborator; the core only
// consumes its output.
package extract

import (
	"context"

	"github.com/signal-watch/signalwatch/internal/model"
)

// DocumentExtractor turns a filed document into raw text with a confidence
// score and the method that produced it. A low or zero confidence means "no
// usable text", which the caller treats as fewer fragments, never as a job
// failure.
type DocumentExtractor interface {
	Extract(ctx context.Context, doc model.Document) (model.Extraction, error)
}

// Noop is the extractor used when no PDF/OCR collaborator is wired in. It
// reports no usable text for every document.
type Noop struct{}

func (Noop) Extract(_ context.Context, _ model.Document) (model.Extraction, error) {
	return model.Extraction{Method: model.ExtractionMethodNone, Confidence: 0}, nil
}
