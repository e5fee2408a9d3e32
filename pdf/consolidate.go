package pdf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/signintech/gopdf"
	"go.uber.org/zap"
)

// Document is one raw label buffer handed to the consolidator.
type Document struct {
	Name string // diagnostic identity, e.g. the covered order IDs
	Data []byte
}

// Result is the output of one consolidation pass.
type Result struct {
	PDF        []byte
	TotalPages int
	// Failed maps input indexes of documents that could not be parsed or
	// embedded to the reason. Their pages do not count toward the slot index.
	Failed map[int]error
}

// Consolidator merges many single-label documents into densely packed
// output pages.
type Consolidator struct {
	layout *Layout
	conf   *model.Configuration
	logger *zap.Logger
}

// NewConsolidator creates a Consolidator placing labelsPerPage source pages
// on each output page.
func NewConsolidator(labelsPerPage int, logger *zap.Logger) (*Consolidator, error) {
	layout, err := NewLayout(labelsPerPage)
	if err != nil {
		return nil, err
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Consolidator{layout: layout, conf: conf, logger: logger}, nil
}

// Consolidate embeds every page of every document into one multi-page
// output, preserving input order. A document that fails to parse is skipped
// entirely and recorded in Result.Failed; the run continues with the rest.
func (c *Consolidator) Consolidate(docs []Document) (*Result, error) {
	out := &gopdf.GoPdf{}
	out.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4, Unit: gopdf.UnitPT})

	res := &Result{Failed: make(map[int]error)}
	slot := 0

	for i, doc := range docs {
		dims, err := c.inspect(doc.Data)
		if err != nil {
			c.logger.Warn("Skipping unreadable label document",
				zap.String("document", doc.Name),
				zap.Int("index", i),
				zap.Error(err),
			)
			res.Failed[i] = err
			continue
		}

		next, err := c.embed(out, doc.Data, dims, slot)
		if err != nil {
			c.logger.Warn("Failed to embed label document",
				zap.String("document", doc.Name),
				zap.Int("index", i),
				zap.Error(err),
			)
			res.Failed[i] = err
			slot = next
			continue
		}
		slot = next
	}

	if slot == 0 {
		return res, nil
	}

	pdfBytes, err := out.GetBytesPdfReturnErr()
	if err != nil {
		return nil, fmt.Errorf("serialize consolidated document: %w", err)
	}
	res.PDF = pdfBytes
	res.TotalPages = c.layout.PageCount(slot)
	return res, nil
}

// inspect validates the buffer as a PDF and returns per-page dimensions.
func (c *Consolidator) inspect(data []byte) ([]types.Dim, error) {
	count, err := api.PageCount(bytes.NewReader(data), c.conf)
	if err != nil {
		return nil, fmt.Errorf("parse label document: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("label document has no pages")
	}
	dims, err := api.PageDims(bytes.NewReader(data), c.conf)
	if err != nil {
		return nil, fmt.Errorf("read page dimensions: %w", err)
	}
	if len(dims) != count {
		return nil, fmt.Errorf("page dimension mismatch: %d pages, %d dims", count, len(dims))
	}
	return dims, nil
}

// embed places every page of one document into the output, returning the
// advanced slot index. The importer panics on inputs it cannot handle, so
// the panic is converted into an error here.
func (c *Consolidator) embed(out *gopdf.GoPdf, data []byte, dims []types.Dim, slot int) (next int, err error) {
	next = slot
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import label page: %v", r)
		}
	}()

	for i, dim := range dims {
		pl, perr := c.layout.Place(next, dim.Width, dim.Height)
		if perr != nil {
			// zero-dimension page, skip without consuming a slot
			continue
		}
		var rs io.ReadSeeker = bytes.NewReader(data)
		tpl := out.ImportPageStream(&rs, i+1, "/MediaBox")
		if pl.NewPage {
			out.AddPage()
		}
		out.UseImportedTemplate(tpl, pl.X, pl.Y, pl.W, pl.H)
		next++
	}
	return next, nil
}
