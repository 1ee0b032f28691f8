package reconstruct

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/xmaslights/ledmap/utils"
)

const (
	reportHeader  = "LED ID, X, Y, Z"
	missingPrefix = "# missing: "
)

// WriteReport writes the human readable reconstruction: a header, one "id,x,y,z" line per light in ascending
// id order with 4 decimals, then one comment line per missing reason.
func WriteReport(w io.Writer, res *Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, reportHeader)
	for _, id := range res.IDs() {
		p := res.Points[id]
		fmt.Fprintf(bw, "%d,%.4f,%.4f,%.4f\n", id, p.X, p.Y, p.Z)
	}
	for _, reason := range []MissingReason{ReasonNotDetected, ReasonDepthImplausible} {
		fmt.Fprintf(bw, "%s%s: %s\n", missingPrefix, reason, formatIDs(res.MissingBecause(reason)))
	}
	return bw.Flush()
}

func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Report is a parsed reconstruction artifact: the id to position mapping downstream tools consume.
type Report struct {
	Positions map[int]r3.Vector
	Missing   map[int]MissingReason
}

// ParseReport reads what WriteReport writes. Unknown comment lines are ignored.
func ParseReport(r io.Reader) (*Report, error) {
	rep := &Report{Positions: map[int]r3.Vector{}, Missing: map[int]MissingReason{}}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "" || text == reportHeader:
			continue
		case strings.HasPrefix(text, missingPrefix):
			if err := parseMissing(rep, strings.TrimPrefix(text, missingPrefix)); err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
		case strings.HasPrefix(text, "#"):
			continue
		default:
			id, p, err := parsePoint(text)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			if _, dup := rep.Positions[id]; dup {
				return nil, errors.Errorf("line %d: light %d listed twice", line, id)
			}
			rep.Positions[id] = p
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rep, nil
}

func parsePoint(text string) (int, r3.Vector, error) {
	fields := strings.Split(text, ",")
	if len(fields) != 4 {
		return 0, r3.Vector{}, errors.Errorf("expected id,x,y,z, got %q", text)
	}
	id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return 0, r3.Vector{}, err
	}
	var v [3]float64
	for i := range v {
		if v[i], err = strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64); err != nil {
			return 0, r3.Vector{}, err
		}
	}
	return id, r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseMissing(rep *Report, text string) error {
	reason, list, ok := strings.Cut(text, ":")
	if !ok {
		return errors.Errorf("malformed missing line %q", text)
	}
	list = strings.TrimSpace(list)
	if !strings.HasPrefix(list, "[") || !strings.HasSuffix(list, "]") {
		return errors.Errorf("malformed id list %q", list)
	}
	for _, f := range strings.Split(strings.Trim(list, "[]"), ",") {
		if f = strings.TrimSpace(f); f == "" {
			continue
		}
		id, err := strconv.Atoi(f)
		if err != nil {
			return err
		}
		rep.Missing[id] = MissingReason(strings.TrimSpace(reason))
	}
	return nil
}

// WriteJSON writes the full result, including run id and reprojection errors.
func WriteJSON(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// SaveReport writes the text report to path.
func SaveReport(path string, res *Result) error {
	var sb strings.Builder
	if err := WriteReport(&sb, res); err != nil {
		return err
	}
	return errors.Wrapf(utils.WriteFileAtomic(path, []byte(sb.String()), 0o644), "saving report to %s", path)
}

// SaveJSON writes the JSON form of res to path.
func SaveJSON(path string, res *Result) error {
	var sb strings.Builder
	if err := WriteJSON(&sb, res); err != nil {
		return err
	}
	return errors.Wrapf(utils.WriteFileAtomic(path, []byte(sb.String()), 0o644), "saving result to %s", path)
}

// LoadReport reads a text report from path.
func LoadReport(path string) (rep *Report, err error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ParseReport(f)
}
