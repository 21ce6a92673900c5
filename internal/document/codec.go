package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2/unstable"
)

// Marshal renders the document rooted at root as text
func Marshal(root *Section) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes never fail
	_ = Encode(&buf, root)
	return buf.Bytes()
}

// Encode writes the document rooted at root to w. Root values come first,
// then every section depth-first in insertion order. Sections holding only
// subsections get no header of their own.
func Encode(w io.Writer, root *Section) error {
	ew := &errWriter{w: w}
	writeValues(ew, root)
	for _, c := range root.children {
		writeSection(ew, c)
	}
	return ew.err
}

func writeSection(w *errWriter, s *Section) {
	if len(s.keys) > 0 || len(s.children) == 0 {
		if w.n > 0 {
			w.printf("\n")
		}
		w.printf("[%s]\n", headerPath(s))
		writeValues(w, s)
	}
	for _, c := range s.children {
		writeSection(w, c)
	}
}

func writeValues(w *errWriter, s *Section) {
	for _, k := range s.keys {
		w.printf("%s = %s\n", quoteKey(k), formatValue(s.values[k]))
	}
}

func headerPath(s *Section) string {
	elems := s.pathElements()
	for i, e := range elems {
		elems[i] = quoteKey(e)
	}
	return strings.Join(elems, ".")
}

func isBareKey(k string) bool {
	if k == "" {
		return false
	}
	for _, r := range k {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

func quoteKey(k string) string {
	if isBareKey(k) {
		return k
	}
	return quoteString(k)
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return quoteString(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatTOMLFloat(val)
	default:
		return quoteString(fmt.Sprint(val))
	}
}

// formatTOMLFloat always yields a float literal so the value decodes with
// the same type it was stored with.
func formatTOMLFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return formatFloat(f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

type errWriter struct {
	w   io.Writer
	n   int
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	var n int
	n, e.err = fmt.Fprintf(e.w, format, args...)
	e.n += n
}

// Unmarshal parses document text. Section and key order is preserved.
func Unmarshal(data []byte) (*Section, error) {
	root := New()
	current := root

	p := unstable.Parser{}
	p.Reset(data)

	for p.NextExpression() {
		expr := p.Expression()

		switch expr.Kind {
		case unstable.Table:
			current = root
			it := expr.Key()
			for it.Next() {
				current = current.Child(string(it.Node().Data))
			}

		case unstable.KeyValue:
			var names []string
			it := expr.Key()
			for it.Next() {
				names = append(names, string(it.Node().Data))
			}
			target := current
			for _, name := range names[:len(names)-1] {
				target = target.Child(name)
			}
			key := names[len(names)-1]
			if target.Has(key) {
				return nil, target.decodeErr(key, errors.New("duplicate key"))
			}
			v, err := decodeValue(expr.Value())
			if err != nil {
				return nil, target.decodeErr(key, err)
			}
			target.set(key, v)

		case unstable.ArrayTable:
			return nil, errors.New("parse document: arrays of tables are not supported")
		}
	}

	if err := p.Error(); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return root, nil
}

func decodeValue(n *unstable.Node) (interface{}, error) {
	text := string(n.Data)

	switch n.Kind {
	case unstable.String:
		return text, nil

	case unstable.Bool:
		return text == "true", nil

	case unstable.Integer:
		i, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", text)
		}
		return i, nil

	case unstable.Float:
		return parseTOMLFloat(text)

	case unstable.LocalDate, unstable.LocalDateTime, unstable.DateTime:
		return text, nil

	default:
		return nil, fmt.Errorf("unsupported value kind %v", n.Kind)
	}
}

func parseTOMLFloat(text string) (float64, error) {
	switch strings.TrimLeft(text, "+-") {
	case "inf":
		if strings.HasPrefix(text, "-") {
			return math.Inf(-1), nil
		}
		return math.Inf(1), nil
	case "nan":
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", text)
	}
	return f, nil
}
