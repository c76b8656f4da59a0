package orders

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// ErrMissingFile marks an input CSV that does not exist on disk.
var ErrMissingFile = errors.New("input file missing")

// LoadSources reads the configured CSV sources and returns all canonical
// rows. A missing file degrades that source to zero rows with a warning;
// the other source still contributes orders. Malformed content is still an
// error.
func LoadSources(retailPath, itemsPath, amountsPath string, mode Mode, logger *slog.Logger) ([]CanonicalRow, error) {
	var rows []CanonicalRow

	if retailPath != "" {
		retail, err := loadRetail(retailPath, mode)
		switch {
		case errors.Is(err, ErrMissingFile):
			logger.Warn("Retail CSV missing, source contributes no orders", "path", retailPath)
		case err != nil:
			return nil, err
		default:
			rows = append(rows, retail...)
		}
	}

	if itemsPath != "" && amountsPath != "" {
		digital, err := loadDigital(itemsPath, amountsPath)
		switch {
		case errors.Is(err, ErrMissingFile):
			logger.Warn("Digital CSV missing, source contributes no orders",
				"items_path", itemsPath, "amounts_path", amountsPath)
		case err != nil:
			return nil, err
		default:
			rows = append(rows, digital...)
		}
	}

	return rows, nil
}

func loadRetail(path string, mode Mode) ([]CanonicalRow, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRetail(f, mode)
}

func loadDigital(itemsPath, amountsPath string) ([]CanonicalRow, error) {
	items, err := openInput(itemsPath)
	if err != nil {
		return nil, err
	}
	defer items.Close()

	amounts, err := openInput(amountsPath)
	if err != nil {
		return nil, err
	}
	defer amounts.Close()

	return ParseDigital(items, amounts)
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", path, ErrMissingFile)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	return f, nil
}
