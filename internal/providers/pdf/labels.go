package pdf

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

const (
	DefaultLabelTitle = "CEMENT TRACKER"

	// MaxLabels bounds a single sheet request.
	MaxLabels = 5000

	labelsPerRow = 3
)

func (p *PDFProvider) GenerateLabels(ctx context.Context, ids []string) (io.Reader, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 || len(cleaned) > MaxLabels {
		return nil, ErrNoLabels
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	for start := 0; start < len(cleaned); start += labelsPerRow {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+labelsPerRow, len(cleaned))
		chunk := cleaned[start:end]

		qrs := make([]core.Col, 0, labelsPerRow)
		titles := make([]core.Col, 0, labelsPerRow)
		names := make([]core.Col, 0, labelsPerRow)
		for _, id := range chunk {
			qrs = append(qrs, code.NewQrCol(12/labelsPerRow, id, props.Rect{
				Center:  true,
				Percent: 80,
			}))
			titles = append(titles, text.NewCol(12/labelsPerRow, p.title, props.Text{
				Size:  7,
				Style: fontstyle.Bold,
				Align: align.Center,
			}))
			names = append(names, text.NewCol(12/labelsPerRow, id, props.Text{
				Size:  8,
				Align: align.Center,
			}))
		}
		// Pad short rows so labels keep their width.
		for i := len(chunk); i < labelsPerRow; i++ {
			qrs = append(qrs, col.New(12/labelsPerRow))
			titles = append(titles, col.New(12/labelsPerRow))
			names = append(names, col.New(12/labelsPerRow))
		}

		m.AddRow(40, qrs...)
		m.AddRow(5, titles...)
		m.AddRow(10, names...)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
