package ocr

import (
	"image"

	"github.com/gen2brain/go-fitz"
	"github.com/pkg/errors"

	"github.com/customeros/mailscan/interfaces"
)

type fitzRasterizer struct{}

// NewRasterizer renders PDF pages with MuPDF.
func NewRasterizer() interfaces.Rasterizer {
	return fitzRasterizer{}
}

func (fitzRasterizer) Open(data []byte) (interfaces.RasterDocument, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, errors.Wrap(err, "open pdf")
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPages() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(page int, dpi float64) (image.Image, error) {
	img, err := d.doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, errors.Wrapf(err, "render page %d", page)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
