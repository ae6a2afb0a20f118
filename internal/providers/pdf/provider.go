package pdf

import (
	"context"
	"errors"
	"io"

	"go.uber.org/fx"
)

var ErrNoLabels = errors.New("no_labels")

// Provider renders printable documents for the ledger.
type Provider interface {
	// GenerateLabels lays out one QR label per bag id, in the given order.
	GenerateLabels(ctx context.Context, ids []string) (io.Reader, error)
}

type PDFProvider struct {
	title string
}

func New() Provider {
	return &PDFProvider{title: DefaultLabelTitle}
}

var Module = fx.Module("pdf",
	fx.Provide(New),
)
