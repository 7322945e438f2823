package render

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hamed0406/fedihealth/internal/domain"
	"github.com/hamed0406/fedihealth/internal/health"
	"github.com/hamed0406/fedihealth/internal/probe"
)

// ErrFailedRun is returned when exporting a run that failed the gate.
var ErrFailedRun = errors.New("run failed the reachability check")

// CSVHeader is the header row of every export.
var CSVHeader = []string{"Instance", "Score", "Reachable", "API", "Federation", "Latency_ms", "Security_Score"}

// csvNA marks a value the run could not measure.
const csvNA = "NA"

// CSVRow flattens a report into one export row.
func CSVRow(rep *domain.Report) []string {
	latency := csvNA
	res, found := rep.Result(probe.NameReachability)
	if d, ok := latencyOf(res, found); ok {
		latency = strconv.FormatInt(d.Milliseconds(), 10)
	}

	security := csvNA
	if res, ok := rep.Result(probe.NameSecurity); ok && res.Status != probe.StatusError {
		security = strconv.Itoa(res.Score)
	}

	return []string{
		rep.Instance.Host(),
		strconv.Itoa(health.Score(rep)),
		strconv.FormatBool(rep.OK(probe.NameReachability)),
		strconv.FormatBool(rep.OK(probe.NameAPI)),
		strconv.FormatBool(rep.OK(probe.NameNodeInfo)),
		latency,
		security,
	}
}

// WriteCSV writes the header and one row for rep.
func WriteCSV(w io.Writer, rep *domain.Report) error {
	if rep.Failed {
		return ErrFailedRun
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.Write(CSVRow(rep)); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ExportCSV writes rep to path, replacing any existing file. Nothing is
// created for a failed run.
func ExportCSV(path string, rep *domain.Report) (err error) {
	if rep.Failed {
		return ErrFailedRun
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return WriteCSV(f, rep)
}

// Exported confirms an export on the console.
func Exported(w io.Writer, path string) error {
	_, err := fmt.Fprintf(w, "💾 Exported to: %s\n\n", path)
	return err
}
