package scan

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/xmaslights/ledmap/rimage/detection/lightspot"
	"github.com/xmaslights/ledmap/utils"
)

var csvHeader = []string{"light_id", "pixel_x", "pixel_y", "support_area"}

// WriteCSV writes vs as one "light_id,pixel_x,pixel_y,support_area" row per detection in ascending id order,
// after a comment line naming the view, the light count and whether the scan ran to the end.
func WriteCSV(w io.Writer, vs *ViewScan) error {
	if _, err := fmt.Fprintf(w, "# view=%s count=%d complete=%t\n", vs.View, vs.Count, vs.Complete); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, id := range vs.IDs() {
		d := vs.Detections[id]
		if err := cw.Write([]string{
			strconv.Itoa(id),
			strconv.FormatFloat(d.Pixel.X, 'f', 4, 64),
			strconv.FormatFloat(d.Pixel.Y, 'f', 4, 64),
			strconv.FormatFloat(d.SupportArea, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a scan written by WriteCSV. Files without the comment line need count > 0 and are taken
// to be complete; the support_area column is optional.
func ReadCSV(r io.Reader, view string, count int) (*ViewScan, error) {
	br := bufio.NewReader(r)
	header := scanHeader{complete: true}
	if first, err := br.Peek(1); err == nil && first[0] == '#' {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		if header, err = parseScanComment(line); err != nil {
			return nil, err
		}
		if view == "" {
			view = header.view
		}
		if count <= 0 {
			count = header.count
		}
	}
	if count <= 0 {
		return nil, errors.New("scan light count unknown")
	}

	cr := csv.NewReader(br)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	vs := NewViewScan(view, count)
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == csvHeader[0] {
			continue
		}
		if len(rec) < 3 {
			return nil, errors.Errorf("row %d: expected light_id,pixel_x,pixel_y, got %d fields", i+1, len(rec))
		}
		d, err := parseRow(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
		if err := vs.Add(d); err != nil {
			return nil, errors.Wrapf(err, "row %d", i+1)
		}
	}
	vs.Complete = header.complete
	return vs, nil
}

// scanHeader is the "# view=a count=40 complete=true" line leading a saved scan.
type scanHeader struct {
	view     string
	count    int
	complete bool
}

// parseScanComment reads a header line. Headers written before the complete field existed read as complete.
func parseScanComment(line string) (scanHeader, error) {
	header := scanHeader{complete: true}
	for _, field := range strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "#")) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "view":
			header.view = value
		case "count":
			n, err := strconv.Atoi(value)
			if err != nil {
				return header, errors.Wrapf(err, "bad light count in %q", line)
			}
			header.count = n
		case "complete":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return header, errors.Wrapf(err, "bad complete flag in %q", line)
			}
			header.complete = b
		}
	}
	return header, nil
}

func parseRow(rec []string) (lightspot.Detection, error) {
	var d lightspot.Detection
	id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
	if err != nil {
		return d, err
	}
	d.LightID = id
	if d.Pixel.X, err = strconv.ParseFloat(strings.TrimSpace(rec[1]), 64); err != nil {
		return d, err
	}
	if d.Pixel.Y, err = strconv.ParseFloat(strings.TrimSpace(rec[2]), 64); err != nil {
		return d, err
	}
	if len(rec) > 3 && strings.TrimSpace(rec[3]) != "" {
		if d.SupportArea, err = strconv.ParseFloat(strings.TrimSpace(rec[3]), 64); err != nil {
			return d, err
		}
	}
	return d, nil
}

// Save writes vs to path.
func Save(path string, vs *ViewScan) error {
	var sb strings.Builder
	if err := WriteCSV(&sb, vs); err != nil {
		return err
	}
	return errors.Wrapf(utils.WriteFileAtomic(path, []byte(sb.String()), 0o644), "saving scan to %s", path)
}

// Load reads a scan saved by Save. count overrides the light count recorded in the file when positive.
func Load(path string, count int) (vs *ViewScan, err error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	vs, err = ReadCSV(f, "", count)
	if err != nil {
		return nil, errors.Wrapf(err, "reading scan %s", path)
	}
	return vs, nil
}
