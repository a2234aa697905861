package main

import (
	"fmt"
	"io"
	"time"

	"github.com/sweeney/power-monitor/internal/cell"
	"github.com/sweeney/power-monitor/internal/gpio"
	"github.com/sweeney/power-monitor/internal/history"
	"github.com/sweeney/power-monitor/internal/logic"
)

// writeState prints the probe reading, the raw cell and the last logged
// transition.
func writeState(w io.Writer, reader gpio.Reader, c *cell.Cell, hist *history.Log, now time.Time) error {
	powerOn, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	fmt.Fprintf(w, "probe: %s\n", logic.StateOf(powerOn))

	raw, err := c.ReadRaw()
	if err != nil {
		return fmt.Errorf("read cell: %w", err)
	}
	fmt.Fprintf(w, "cell:  %s (0x%02X)\n", cell.Decode(raw), raw)

	last, ok, err := hist.Last()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "last:  none")
		return nil
	}
	fmt.Fprintf(w, "last:  %s at %s (%s ago)\n",
		last.State(), last.Timestamp.Format(logic.TimestampLayout), logic.Since(&last, now))
	return nil
}

// writeHistory prints every stored row, oldest first. Rows from the first
// malformed one on are flagged, since the log ignores them.
func writeHistory(w io.Writer, storage history.Storage, path string, now time.Time) error {
	lines, err := storage.ReadAll(path)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	if len(lines) == 0 {
		fmt.Fprintln(w, "no transitions recorded")
		return nil
	}

	broken := false
	for i, line := range lines {
		rec, err := logic.ParseRecord(line, now.Location())
		switch {
		case err != nil:
			broken = true
			fmt.Fprintf(w, "%d  %q  malformed (%s)\n", i+1, line, logic.SinceLine(line, now))
		case broken:
			fmt.Fprintf(w, "%d  %s  ignored after malformed row\n", i+1, line)
		default:
			fmt.Fprintf(w, "%d  %s  %-3s  %s ago\n", i+1,
				rec.Timestamp.Format(logic.TimestampLayout), rec.State(), logic.SinceLine(line, now))
		}
	}
	return nil
}
