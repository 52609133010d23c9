package batch

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
)

// WriteReport writes a batch run's results as a CSV manifest, one row
// per file plus a header line.
func WriteReport(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := gocsv.MarshalFile(&results, f); err != nil {
		f.Close()
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return f.Close()
}
