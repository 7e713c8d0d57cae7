// Package meshfile reads the newline-delimited ASCII connectivity format
// (spec §6.2) that describes a forest's coarse macro-mesh. It is an
// external collaborator to the core quadrant/tree algebra: the core only
// ever consumes the resulting p4forest.Connectivity.
package meshfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/rubendibattista/p4forest"
)

// requiredSections lists the bracketed section headers in file order.
// "[Element Tags]", "[Face Tags]", "[Curved Faces]" and "[Curved Types]"
// carry no body in the meshes this reader supports and are recognized
// but otherwise ignored, as is the body of "[Vertex to Vertex]".
var requiredSections = []string{
	"[Forest Info]",
	"[Coordinates of Element Vertices]",
	"[Element to Vertex]",
	"[Element to Element]",
	"[Element to Face]",
	"[Vertex to Element]",
	"[Vertex to Vertex]",
	"[Element Tags]",
	"[Face Tags]",
	"[Curved Faces]",
	"[Curved Types]",
}

// Read parses a connectivity file from r and returns the in-memory
// Connectivity. File indices are 1-based; the returned structure is
// 0-based throughout, matching spec §6.2.
func Read(r io.Reader) (*p4forest.Connectivity, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	p := &parser{sc: sc}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.build()
}

type forestInfo struct {
	nk, nv, nve int
}

type parser struct {
	sc   *bufio.Scanner
	line int

	info forestInfo

	vertices     []float64
	elemToVertex map[int][4]int32
	elemToElem   map[int][4]int32
	elemToFace   map[int][4]int8
	vtxToTree    [][]int32

	pending []string
}

// nextLine returns the next non-blank, non-comment line with trailing
// comments stripped, or ("", false, nil) at end of file.
func (p *parser) nextLine() (string, bool, error) {
	if n := len(p.pending); n > 0 {
		line := p.pending[n-1]
		p.pending = p.pending[:n-1]
		return line, true, nil
	}
	for p.sc.Scan() {
		p.line++
		line := p.sc.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return line, true, nil
	}
	if err := p.sc.Err(); err != nil {
		return "", false, errors.Wrapf(err, "meshfile: reading line %d", p.line)
	}
	return "", false, nil
}

// nextSection scans forward to the next bracketed section header and
// returns it.
func (p *parser) nextSection() (string, error) {
	for {
		line, ok, err := p.nextLine()
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errors.New("meshfile: unexpected end of file while looking for a section header")
		}
		if strings.HasPrefix(line, "[") {
			return line, nil
		}
		return "", errors.Errorf("meshfile: line %d: expected a section header, got %q", p.line, line)
	}
}

func (p *parser) parse() error {
	section, err := p.nextSection()
	if err != nil {
		return err
	}
	if section != "[Forest Info]" {
		return errors.Errorf("meshfile: line %d: expected [Forest Info], got %q", p.line, section)
	}
	if err := p.parseForestInfo(); err != nil {
		return err
	}

	for _, want := range requiredSections[1:] {
		section, err := p.nextSection()
		if err != nil {
			return err
		}
		if section != want {
			return errors.Errorf("meshfile: line %d: expected %s, got %q", p.line, want, section)
		}
		switch want {
		case "[Coordinates of Element Vertices]":
			err = p.parseVertices()
		case "[Element to Vertex]":
			err = p.parseElemToVertex()
		case "[Element to Element]":
			err = p.parseElemToElem()
		case "[Element to Face]":
			err = p.parseElemToFace()
		case "[Vertex to Element]":
			err = p.parseVertexToElement()
		case "[Vertex to Vertex]":
			err = p.skipIndexedRows(p.info.nv)
		default:
			// header-only sections: no body to consume
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func fields(line string) []string {
	return strings.Fields(line)
}

func parseKV(line string) (string, string, error) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", "", errors.Errorf("meshfile: malformed key=value line %q", line)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

func (p *parser) parseForestInfo() error {
	want := map[string]*int{
		"Nk": &p.info.nk, "Nv": &p.info.nv, "Nve": &p.info.nve,
	}
	seen := 0
	for seen < len(want) {
		line, ok, err := p.nextLine()
		if err != nil {
			return err
		}
		if !ok || strings.HasPrefix(line, "[") {
			return errors.Errorf("meshfile: [Forest Info] ended before Nk, Nv, Nve were all found")
		}
		key, val, err := parseKV(line)
		if err != nil {
			return err
		}
		if dst, ok := want[key]; ok {
			n, err := strconv.Atoi(val)
			if err != nil {
				return errors.Wrapf(err, "meshfile: line %d: bad integer for %s", p.line, key)
			}
			*dst = n
			seen++
		}
	}
	// consume any remaining key=value lines until the next section.
	for {
		line, ok, err := p.nextLine()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("meshfile: unexpected end of file after [Forest Info]")
		}
		if strings.HasPrefix(line, "[") {
			p.pushback(line)
			return nil
		}
	}
}

// pushback is a one-line unget, implemented by re-scanning through a
// small buffered queue on the parser. bufio.Scanner has no native
// pushback, so the single pending line is tracked here.
func (p *parser) pushback(line string) {
	p.pending = append(p.pending, line)
}

func (p *parser) parseVertices() error {
	p.vertices = make([]float64, 3*p.info.nv)
	for i := 0; i < p.info.nv; i++ {
		line, err := p.requireLine()
		if err != nil {
			return err
		}
		f := fields(line)
		if len(f) != 4 {
			return errors.Errorf("meshfile: line %d: expected \"idx x y z\", got %q", p.line, line)
		}
		idx, err := strconv.Atoi(f[0])
		if err != nil {
			return errors.Wrapf(err, "meshfile: line %d: bad vertex index", p.line)
		}
		for c := 0; c < 3; c++ {
			v, err := strconv.ParseFloat(f[c+1], 64)
			if err != nil {
				return errors.Wrapf(err, "meshfile: line %d: bad coordinate", p.line)
			}
			p.vertices[3*(idx-1)+c] = v
		}
	}
	return nil
}

func (p *parser) parseElemToVertex() error {
	p.elemToVertex = make(map[int][4]int32, p.info.nk)
	for i := 0; i < p.info.nk; i++ {
		line, err := p.requireLine()
		if err != nil {
			return err
		}
		f := fields(line)
		if len(f) != 5 {
			return errors.Errorf("meshfile: line %d: expected \"idx v0 v1 v2 v3\", got %q", p.line, line)
		}
		idx, row, err := parseIndexedRow(f, p.line)
		if err != nil {
			return err
		}
		var r [4]int32
		for k := 0; k < 4; k++ {
			r[k] = int32(row[k] - 1)
		}
		p.elemToVertex[idx-1] = r
	}
	return nil
}

func (p *parser) parseElemToElem() error {
	p.elemToElem = make(map[int][4]int32, p.info.nk)
	for i := 0; i < p.info.nk; i++ {
		line, err := p.requireLine()
		if err != nil {
			return err
		}
		f := fields(line)
		if len(f) != 5 {
			return errors.Errorf("meshfile: line %d: expected \"idx n0 n1 n2 n3\", got %q", p.line, line)
		}
		idx, row, err := parseIndexedRow(f, p.line)
		if err != nil {
			return err
		}
		var r [4]int32
		for k := 0; k < 4; k++ {
			r[k] = int32(row[k] - 1)
		}
		p.elemToElem[idx-1] = r
	}
	return nil
}

func (p *parser) parseElemToFace() error {
	p.elemToFace = make(map[int][4]int8, p.info.nk)
	for i := 0; i < p.info.nk; i++ {
		line, err := p.requireLine()
		if err != nil {
			return err
		}
		f := fields(line)
		if len(f) != 5 {
			return errors.Errorf("meshfile: line %d: expected \"idx f0 f1 f2 f3\", got %q", p.line, line)
		}
		idx, row, err := parseIndexedRow(f, p.line)
		if err != nil {
			return err
		}
		var r [4]int8
		for k := 0; k < 4; k++ {
			r[k] = int8(row[k])
		}
		p.elemToFace[idx-1] = r
	}
	return nil
}

// parseVertexToElement reads the [Vertex to Element] adjacency one row
// per vertex, keeping file order within each row; build assembles the
// CSR arrays from these rows.
func (p *parser) parseVertexToElement() error {
	p.vtxToTree = make([][]int32, p.info.nv)
	for i := 0; i < p.info.nv; i++ {
		line, err := p.requireLine()
		if err != nil {
			return err
		}
		f := fields(line)
		if len(f) < 2 {
			return errors.Errorf("meshfile: line %d: expected \"idx count t0 ...\", got %q", p.line, line)
		}
		idx, err := strconv.Atoi(f[0])
		if err != nil {
			return errors.Wrapf(err, "meshfile: line %d: bad vertex index", p.line)
		}
		count, err := strconv.Atoi(f[1])
		if err != nil {
			return errors.Wrapf(err, "meshfile: line %d: bad adjacency count", p.line)
		}
		if len(f) != 2+count {
			return errors.Errorf("meshfile: line %d: adjacency count %d does not match %d entries", p.line, count, len(f)-2)
		}
		row := make([]int32, count)
		for k := 0; k < count; k++ {
			t, err := strconv.Atoi(f[2+k])
			if err != nil {
				return errors.Wrapf(err, "meshfile: line %d: bad tree index", p.line)
			}
			row[k] = int32(t - 1)
		}
		p.vtxToTree[idx-1] = row
	}
	return nil
}

func (p *parser) skipIndexedRows(n int) error {
	for i := 0; i < n; i++ {
		if _, err := p.requireLine(); err != nil {
			return err
		}
	}
	return nil
}

func parseIndexedRow(f []string, lineNo int) (int, [4]int, error) {
	var row [4]int
	idx, err := strconv.Atoi(f[0])
	if err != nil {
		return 0, row, errors.Wrapf(err, "meshfile: line %d: bad element index", lineNo)
	}
	for k := 0; k < 4; k++ {
		v, err := strconv.Atoi(f[k+1])
		if err != nil {
			return 0, row, errors.Wrapf(err, "meshfile: line %d: bad integer field", lineNo)
		}
		row[k] = v
	}
	return idx, row, nil
}

// requireLine returns the next meaningful line or an error at EOF,
// consuming a pushed-back line first if one is pending.
func (p *parser) requireLine() (string, error) {
	line, ok, err := p.nextLine()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.Errorf("meshfile: unexpected end of file at line %d", p.line)
	}
	return line, nil
}

func (p *parser) build() (*p4forest.Connectivity, error) {
	c := &p4forest.Connectivity{
		NumVertices:  int32(p.info.nv),
		NumTrees:     int32(p.info.nk),
		Vertices:     p.vertices,
		TreeToVertex: make([]int32, 4*p.info.nk),
		TreeToTree:   make([]int32, 4*p.info.nk),
		TreeToFace:   make([]int8, 4*p.info.nk),
	}
	for t := 0; t < p.info.nk; t++ {
		tv, ok := p.elemToVertex[t]
		if !ok {
			return nil, fmt.Errorf("meshfile: missing [Element to Vertex] row for element %d", t+1)
		}
		te, ok := p.elemToElem[t]
		if !ok {
			return nil, fmt.Errorf("meshfile: missing [Element to Element] row for element %d", t+1)
		}
		tf, ok := p.elemToFace[t]
		if !ok {
			return nil, fmt.Errorf("meshfile: missing [Element to Face] row for element %d", t+1)
		}
		for k := 0; k < 4; k++ {
			c.TreeToVertex[4*t+k] = tv[k]
			c.TreeToTree[4*t+k] = te[k]
			c.TreeToFace[4*t+k] = tf[k]
		}
	}

	c.VTTOffset = make([]int32, p.info.nv+1)
	total := int32(0)
	for v := 0; v < p.info.nv; v++ {
		c.VTTOffset[v] = total
		total += int32(len(p.vtxToTree[v]))
	}
	c.VTTOffset[p.info.nv] = total
	c.VertexToTree = make([]int32, 0, total)
	for v := 0; v < p.info.nv; v++ {
		c.VertexToTree = append(c.VertexToTree, p.vtxToTree[v]...)
	}

	if !c.IsValid() {
		return nil, errors.New("meshfile: parsed connectivity failed structural validation")
	}
	return c, nil
}
