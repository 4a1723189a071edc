package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// MaxDimension caps each side of a decoded grid.
const MaxDimension = 4096

// Decode failures. Every error returned by the codec wraps exactly one of these.
var (
	ErrMalformedHeader       = errors.New("malformed header")
	ErrNonPositiveDimensions = errors.New("non-positive dimensions")
	ErrDimensionsTooLarge    = errors.New("dimensions too large")
	ErrMalformedRun          = errors.New("malformed run")
	ErrMapSizeMismatch       = errors.New("map size mismatch")
	ErrUnreadableSource      = errors.New("unreadable source")
)

var headerPattern = regexp.MustCompile(`^(\d+)[xX](\d+)$`)

// Codec converts between grids and the run-length text format:
//
//	<cols>X<rows>
//	<run><KIND> <run><KIND> ...
//
// Every line after the header belongs to one row-major token stream.
type Codec struct {
	alphabet map[Kind]bool
	lenient  bool
	logger   log.FieldLogger
}

// CodecOption configures a Codec
type CodecOption func(*Codec)

// WithLenientSize pads short documents with open cells and drops extra cells
// instead of failing with ErrMapSizeMismatch. A warning is logged either way.
func WithLenientSize() CodecOption {
	return func(c *Codec) { c.lenient = true }
}

// WithKind adds (or redefines) a tile letter the decoder accepts. Kinds are
// uppercase ASCII letters; WithKind panics on anything else.
func WithKind(kind Kind, blocking bool) CodecOption {
	if kind < 'A' || kind > 'Z' {
		panic(fmt.Sprintf("engine: tile kind %q is not an uppercase letter", byte(kind)))
	}
	return func(c *Codec) { c.alphabet[kind] = blocking }
}

// WithLogger sets where lenient-mode warnings go
func WithLogger(logger log.FieldLogger) CodecOption {
	return func(c *Codec) { c.logger = logger }
}

// NewCodec returns a strict codec over the E/O alphabet unless options say otherwise.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{
		alphabet: map[Kind]bool{KindOpen: false, KindBlocking: true},
		logger:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lenient reports whether size mismatches are padded/truncated
func (c *Codec) Lenient() bool { return c.lenient }

var defaultCodec = NewCodec()

// Decode parses doc with the default strict codec
func Decode(doc string) (*Grid, error) { return defaultCodec.Decode(doc) }

// Encode renders g with the default codec
func Encode(g *Grid) string { return defaultCodec.Encode(g) }

// Decode parses a whole document. On error no grid is returned.
func (c *Codec) Decode(doc string) (*Grid, error) {
	header, body, _ := strings.Cut(doc, "\n")
	cols, rows, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	cells, err := c.expand(body, cols, rows)
	if err != nil {
		return nil, err
	}

	grid, err := NewGrid(rows, cols)
	if err != nil {
		return nil, err
	}
	for i := range cells {
		grid.cells[i] = &cells[i]
	}
	return grid, nil
}

// DecodeReader reads r to the end and decodes it. Read failures wrap ErrUnreadableSource.
func (c *Codec) DecodeReader(r io.Reader) (*Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableSource, err)
	}
	return c.Decode(string(data))
}

// DecodeFile reads and decodes a scenario file
func (c *Codec) DecodeFile(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableSource, err)
	}
	return c.Decode(string(data))
}

func parseHeader(line string) (cols, rows int, err error) {
	line = strings.TrimSpace(line)
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: expected <cols>X<rows>, got %q", ErrMalformedHeader, line)
	}
	cols, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: width %q: %v", ErrMalformedHeader, m[1], err)
	}
	rows, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: height %q: %v", ErrMalformedHeader, m[2], err)
	}
	if cols <= 0 || rows <= 0 {
		return 0, 0, fmt.Errorf("%w: %dX%d", ErrNonPositiveDimensions, cols, rows)
	}
	if cols > MaxDimension || rows > MaxDimension {
		return 0, 0, fmt.Errorf("%w: %dX%d exceeds %d per side", ErrDimensionsTooLarge, cols, rows, MaxDimension)
	}
	return cols, rows, nil
}

// expand walks the token stream and returns exactly cols*rows cells.
func (c *Codec) expand(body string, cols, rows int) ([]TileCell, error) {
	want := cols * rows
	cells := make([]TileCell, 0, want)
	total := 0

	i := 0
	for i < len(body) {
		if isSpace(body[i]) {
			i++
			continue
		}

		start := i
		for i < len(body) && body[i] >= '0' && body[i] <= '9' {
			i++
		}
		if i == start {
			return nil, runError(body, start, "expected run length")
		}
		if i >= len(body) {
			return nil, runError(body, start, "missing tile kind")
		}
		run, err := strconv.Atoi(body[start:i])
		if err != nil {
			return nil, runError(body, start, "run length out of range")
		}
		if run < 1 {
			return nil, runError(body, start, "run length must be at least 1")
		}

		letter := body[i]
		if letter < 'A' || letter > 'Z' {
			return nil, runError(body, start, "tile kind must be an uppercase letter")
		}
		blocking, ok := c.alphabet[Kind(letter)]
		if !ok {
			return nil, runError(body, start, fmt.Sprintf("unrecognized tile kind %q", letter))
		}
		i++

		if total > math.MaxInt-run {
			total = math.MaxInt
		} else {
			total += run
		}

		n := run
		if room := want - len(cells); n > room {
			n = room
		}
		cell := NewTileCell(Kind(letter), blocking)
		for k := 0; k < n; k++ {
			cells = append(cells, cell)
		}
	}

	if total == want {
		return cells, nil
	}
	if !c.lenient {
		return nil, fmt.Errorf("%w: header %dX%d needs %d cells, body expands to %d",
			ErrMapSizeMismatch, cols, rows, want, total)
	}

	c.logger.WithFields(log.Fields{
		"cols":     cols,
		"rows":     rows,
		"declared": want,
		"expanded": total,
	}).Warn("rle size mismatch, padding/truncating map")

	for len(cells) < want {
		cells = append(cells, CellFor(KindOpen))
	}
	return cells, nil
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func runError(body string, pos int, reason string) error {
	end := pos + 8
	if end > len(body) {
		end = len(body)
	}
	return fmt.Errorf("%w: %s at offset %d near %q", ErrMalformedRun, reason, pos, body[pos:end])
}

// Encode renders the grid as a canonical document: uppercase header, one body
// line of single-space separated runs, trailing newline. Kinds collapse to O/E.
func (c *Codec) Encode(g *Grid) string {
	var b strings.Builder
	_ = c.EncodeTo(&b, g)
	return b.String()
}

// EncodeTo writes the canonical document to w
func (c *Codec) EncodeTo(w io.Writer, g *Grid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%dX%d\n", g.cols, g.rows)

	first := true
	emit := func(n int, k Kind) {
		if !first {
			bw.WriteByte(' ')
		}
		first = false
		bw.WriteString(strconv.Itoa(n))
		bw.WriteByte(byte(k))
	}

	var cur Kind
	run := 0
	for _, cell := range g.cells {
		k := KindOpen
		if cell != nil {
			k = cell.EncodedKind()
		}
		if run > 0 && k == cur {
			run++
			continue
		}
		if run > 0 {
			emit(run, cur)
		}
		cur, run = k, 1
	}
	if run > 0 {
		emit(run, cur)
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

// DecodeErrorCode maps a codec error to a stable machine-readable code.
// It returns "" for errors the codec did not produce.
func DecodeErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrNonPositiveDimensions):
		return "non_positive_dimensions"
	case errors.Is(err, ErrDimensionsTooLarge):
		return "dimensions_too_large"
	case errors.Is(err, ErrMalformedRun):
		return "malformed_run"
	case errors.Is(err, ErrMapSizeMismatch):
		return "map_size_mismatch"
	case errors.Is(err, ErrUnreadableSource):
		return "unreadable_source"
	}
	return ""
}
