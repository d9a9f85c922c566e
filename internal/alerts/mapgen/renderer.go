// Package mapgen derives a colored region map from alert facts.
package mapgen

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/i474232898/weather-alerts-aggregation/internal/alerts"
)

const (
	AlertColor = "#FF0000"
	ClearColor = "#B0B0B0"

	DefaultWidth = 700
)

// Format of a rendered map.
type Format int

const (
	FormatNone Format = iota
	FormatSVG
	FormatPNG
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatSVG:
		return "svg"
	default:
		return "none"
	}
}

// ContentType returns the MIME type of the format, or "" for FormatNone.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return ""
	}
}

// Output is the result of Render. Data is empty for FormatNone; callers fall back to text.
type Output struct {
	Format Format
	Data   []byte
}

// RenderError reports a failed rendering stage.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render alert map: %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Config configures a Renderer.
type Config struct {
	Template   []byte
	Shapes     map[string]string // canonical region name -> shape id
	Width      int
	Rasterizer Rasterizer
	Log        *zap.Logger
}

// Renderer colors the template by alert state and rasterizes it. It is safe for concurrent use.
type Renderer struct {
	template   []byte
	shapes     map[string]string
	width      int
	rasterizer Rasterizer
	log        *zap.Logger
}

func NewRenderer(cfg Config) *Renderer {
	r := &Renderer{
		template:   cfg.Template,
		shapes:     cfg.Shapes,
		width:      cfg.Width,
		rasterizer: cfg.Rasterizer,
		log:        cfg.Log,
	}
	if r.shapes == nil {
		r.shapes = DefaultShapes
	}
	if r.width <= 0 {
		r.width = DefaultWidth
	}
	if r.rasterizer == nil {
		r.rasterizer = OKSVGRasterizer{}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// Render produces a PNG, or the colored SVG when rasterization fails, or FormatNone
// when the template cannot be processed. It never panics.
func (r *Renderer) Render(facts []alerts.Fact) (out Output) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("alert map render panicked", zap.Any("panic", p))
			out = Output{Format: FormatNone}
		}
	}()

	svg, err := r.Colorize(facts)
	if err != nil {
		r.log.Error("alert map unavailable", zap.Error(err))
		return Output{Format: FormatNone}
	}

	img, err := r.rasterize(svg)
	if err != nil || len(img) == 0 {
		if err == nil {
			err = errors.New("empty image")
		}
		r.log.Warn("alert map rasterization failed, sending svg", zap.Error(&RenderError{Stage: "rasterize", Err: err}))
		return Output{Format: FormatSVG, Data: svg}
	}
	return Output{Format: FormatPNG, Data: img}
}

func (r *Renderer) rasterize(svg []byte) (img []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			img, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	return r.rasterizer.Rasterize(svg, r.width)
}

// Colorize returns the template with every mapped shape filled by its region's state.
// Facts for regions without a shape are logged and skipped; unmapped shapes are left as is.
func (r *Renderer) Colorize(facts []alerts.Fact) ([]byte, error) {
	if len(r.template) == 0 {
		return nil, &RenderError{Stage: "template", Err: errors.New("template is empty")}
	}

	fills := make(map[string]string, len(r.shapes))
	for _, id := range r.shapes {
		fills[id] = ClearColor
	}
	for _, f := range facts {
		id, ok := r.shapes[f.Region]
		if !ok {
			r.log.Warn("no map shape for region", zap.String("region", f.Region))
			continue
		}
		if f.Active {
			fills[id] = AlertColor
		}
	}

	svg, err := rewriteFills(r.template, fills)
	if err != nil {
		return nil, &RenderError{Stage: "template", Err: err}
	}
	return svg, nil
}

// rewriteFills re-encodes the document token by token, setting the fill of elements whose
// id is in fills. Raw tokens keep namespace prefixes as written; they are folded into local
// names so the encoder reproduces them without inventing namespace declarations.
func rewriteFills(doc []byte, fills map[string]string) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = true

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	depth, sawRoot := 0, false

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse svg: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			t.Name = foldName(t.Name)
			if depth == 0 {
				if t.Name.Local != "svg" {
					return nil, fmt.Errorf("root element is %q, want svg", t.Name.Local)
				}
				sawRoot = true
			}
			depth++
			attrs := make([]xml.Attr, len(t.Attr))
			for i, a := range t.Attr {
				a.Name = foldName(a.Name)
				attrs[i] = a
			}
			t.Attr = attrs
			if fill, ok := fills[attrValue(t.Attr, "id")]; ok {
				t.Attr = setFill(t.Attr, fill)
			}
			tok = t
		case xml.EndElement:
			t.Name = foldName(t.Name)
			depth--
			tok = t
		case xml.CharData:
			tok = t.Copy()
		case xml.Comment:
			tok = t.Copy()
		case xml.ProcInst:
			tok = t.Copy()
		case xml.Directive:
			tok = t.Copy()
		}

		if err := enc.EncodeToken(tok); err != nil {
			return nil, fmt.Errorf("encode svg: %w", err)
		}
	}
	if !sawRoot || depth != 0 {
		return nil, errors.New("parse svg: incomplete document")
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("encode svg: %w", err)
	}
	return buf.Bytes(), nil
}

func foldName(n xml.Name) xml.Name {
	if n.Space == "" {
		return n
	}
	return xml.Name{Local: n.Space + ":" + n.Local}
}

func attrValue(attrs []xml.Attr, local string) string {
	for _, a := range attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// setFill sets the fill attribute and drops any fill declared in the style attribute,
// which would otherwise take precedence.
func setFill(attrs []xml.Attr, fill string) []xml.Attr {
	out := attrs[:0]
	found := false
	for _, a := range attrs {
		switch a.Name.Local {
		case "fill":
			a.Value = fill
			found = true
		case "style":
			a.Value = stripStyleFill(a.Value)
			if a.Value == "" {
				continue
			}
		}
		out = append(out, a)
	}
	if !found {
		out = append(out, xml.Attr{Name: xml.Name{Local: "fill"}, Value: fill})
	}
	return out
}

func stripStyleFill(style string) string {
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		prop, _, _ := strings.Cut(decl, ":")
		if strings.TrimSpace(decl) == "" || strings.EqualFold(strings.TrimSpace(prop), "fill") {
			continue
		}
		kept = append(kept, strings.TrimSpace(decl))
	}
	return strings.Join(kept, ";")
}
