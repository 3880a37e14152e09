package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/the-queue-must-flow/internal/admin"
	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

// CatalogFile is the YAML layout accepted by catalog import:
//
//	items:
//	  - id: paracetamol
//	    name: Paracetamol 500mg
//	    unit_price: "0.10"
type CatalogFile struct {
	Items []CatalogEntry `yaml:"items"`
}

// CatalogEntry is one item in a CatalogFile. Prices are strings so they are
// never routed through a float.
type CatalogEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	UnitPrice   string `yaml:"unit_price"`
	ImageRef    string `yaml:"image_ref"`
}

// ParseCatalog decodes a catalog file. Unknown keys are rejected.
func ParseCatalog(r io.Reader) ([]admin.ItemInput, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file CatalogFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	inputs := make([]admin.ItemInput, len(file.Items))
	for i, entry := range file.Items {
		price, err := decimal.NewFromString(entry.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i+1, entry.Name,
				common.NewValidationError("unit_price", "not a decimal: "+entry.UnitPrice))
		}
		inputs[i] = admin.ItemInput{
			ID:          entry.ID,
			Name:        entry.Name,
			Description: entry.Description,
			UnitPrice:   price,
			ImageRef:    entry.ImageRef,
		}
	}
	return inputs, nil
}

// ItemAdder creates catalog items.
type ItemAdder interface {
	AddItem(ctx context.Context, actor service.Actor, in admin.ItemInput) (*model.CatalogItem, error)
}

// ImportCatalog adds items in order, drawing progress to w. It stops at the
// first failure; items before it stay imported.
func ImportCatalog(ctx context.Context, adder ItemAdder, actor service.Actor, items []admin.ItemInput, w io.Writer) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	bar := progressbar.NewOptions(len(items),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Importing catalog..."),
		progressbar.OptionClearOnFinish(),
	)

	imported := 0
	for i, in := range items {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		if _, err := adder.AddItem(ctx, actor, in); err != nil {
			return imported, fmt.Errorf("item %d (%s): %w", i+1, in.Name, err)
		}
		imported++
		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
	return imported, nil
}
