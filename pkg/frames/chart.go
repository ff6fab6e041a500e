package frames

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// X value kinds of a series.
const (
	XLinear   = ""
	XDate     = "date"
	XCategory = "category"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ChartFrame is a {data, layout} chart document. The typed fields are numeric
// views for drawing; Raw fields keep what the data service sent.
type ChartFrame struct {
	Data   []Series
	Layout ChartLayout
}

// Series is one trace. X and Y hold NaN for nulls and values that are not
// numbers. Date strings on x become Unix milliseconds; any other string turns
// x into category positions 0..n-1 with the text kept in XText.
type Series struct {
	Name  string
	Type  string
	Mode  string
	X     []float64
	Y     []float64
	XType string
	XText []string
	Raw   json.RawMessage
}

func (s *Series) UnmarshalJSON(b []byte) error {
	var raw struct {
		Name json.RawMessage `json:"name"`
		Type json.RawMessage `json:"type"`
		Mode json.RawMessage `json:"mode"`
		X    json.RawMessage `json:"x"`
		Y    json.RawMessage `json:"y"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ys := rawArray(raw.Y)
	*s = Series{
		Name: textOf(raw.Name),
		Type: textOf(raw.Type),
		Mode: textOf(raw.Mode),
		Y:    make([]float64, len(ys)),
		Raw:  append(json.RawMessage(nil), b...),
	}
	for i, m := range ys {
		s.Y[i], _ = number(m)
	}

	xs := rawArray(raw.X)
	if xs == nil {
		s.X = make([]float64, len(s.Y))
		for i := range s.X {
			s.X[i] = float64(i)
		}
		return nil
	}
	s.X, s.XType, s.XText = parseX(xs)
	return nil
}

// rawArray splits a JSON array into its elements; anything else is nil.
func rawArray(m json.RawMessage) []json.RawMessage {
	var out []json.RawMessage
	if len(m) == 0 || json.Unmarshal(m, &out) != nil {
		return nil
	}
	return out
}

func parseX(items []json.RawMessage) ([]float64, string, []string) {
	xs := make([]float64, len(items))
	text := make([]string, len(items))
	kind := XLinear
	for i, m := range items {
		if v, ok := number(m); ok {
			xs[i] = v
			continue
		}
		xs[i] = math.NaN()
		var str string
		if isNull(m) || json.Unmarshal(m, &str) != nil {
			continue
		}
		text[i] = str
		if t, ok := parseDate(str); ok {
			xs[i] = float64(t.UnixMilli())
			if kind == XLinear {
				kind = XDate
			}
			continue
		}
		kind = XCategory
	}

	if kind != XCategory {
		return xs, kind, nil
	}
	for i, m := range items {
		xs[i] = float64(i)
		if text[i] == "" {
			text[i] = textOf(m)
		}
	}
	return xs, kind, text
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isNull(m json.RawMessage) bool {
	m = bytes.TrimSpace(m)
	return len(m) == 0 || bytes.Equal(m, []byte("null"))
}

// number reads a JSON number or numeric string. Anything else is NaN.
func number(m json.RawMessage) (float64, bool) {
	if isNull(m) {
		return math.NaN(), false
	}
	var f float64
	if err := json.Unmarshal(m, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return math.NaN(), false
}

// textOf returns a JSON string's value, or the raw text of any other scalar.
func textOf(m json.RawMessage) string {
	if isNull(m) {
		return ""
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s
	}
	return string(m)
}

type AxisTitle struct {
	Text string
}

// UnmarshalJSON accepts both the {"text": ...} form and a bare string.
func (t *AxisTitle) UnmarshalJSON(b []byte) error {
	var obj struct {
		Text json.RawMessage `json:"text"`
	}
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte("{")) {
		if err := json.Unmarshal(b, &obj); err == nil {
			t.Text = textOf(obj.Text)
			return nil
		}
	}
	t.Text = textOf(b)
	return nil
}

// Axis is the part of a layout axis the viewer uses. Range is set only when
// both ends are numbers or dates.
type Axis struct {
	Title     AxisTitle
	Type      string
	Range     []float64
	Autorange bool
}

func parseAxis(m json.RawMessage) Axis {
	var raw struct {
		Title     AxisTitle       `json:"title"`
		Type      json.RawMessage `json:"type"`
		Range     json.RawMessage `json:"range"`
		Autorange json.RawMessage `json:"autorange"`
	}
	if len(m) == 0 || json.Unmarshal(m, &raw) != nil {
		return Axis{}
	}
	a := Axis{Title: raw.Title, Type: textOf(raw.Type)}
	switch textOf(raw.Autorange) {
	case "true", "reversed":
		a.Autorange = true
	}
	if ends := rawArray(raw.Range); len(ends) == 2 {
		r := make([]float64, 2)
		ok := true
		for i, e := range ends {
			v, isNum := number(e)
			if !isNum {
				t, isDate := parseDate(textOf(e))
				if !isDate {
					ok = false
					break
				}
				v = float64(t.UnixMilli())
			}
			r[i] = v
		}
		if ok {
			a.Range = r
		}
	}
	return a
}

// ChartLayout holds the chart and axis titles plus the y range; Raw is the
// whole layout object.
type ChartLayout struct {
	Title AxisTitle
	XAxis Axis
	YAxis Axis
	Raw   json.RawMessage
}

func (l *ChartLayout) UnmarshalJSON(b []byte) error {
	var raw struct {
		Title AxisTitle       `json:"title"`
		XAxis json.RawMessage `json:"xaxis"`
		YAxis json.RawMessage `json:"yaxis"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*l = ChartLayout{
		Title: raw.Title,
		XAxis: parseAxis(raw.XAxis),
		YAxis: parseAxis(raw.YAxis),
		Raw:   append(json.RawMessage(nil), b...),
	}
	return nil
}

// YExtent returns the min and max of the first series' finite y values.
func (c *ChartFrame) YExtent() (float64, float64, bool) {
	if c == nil || len(c.Data) == 0 {
		return 0, 0, false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range c.Data[0].Y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi, lo <= hi
}

// XExtent returns the first and last finite x value of the first series.
func (c *ChartFrame) XExtent() (float64, float64, bool) {
	if c == nil || len(c.Data) == 0 {
		return 0, 0, false
	}
	var finite []float64
	for _, v := range c.Data[0].X {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 0, false
	}
	return finite[0], finite[len(finite)-1], true
}

// XTickLabel formats an x position for an axis tick when the first series
// has date or category x values.
func (c *ChartFrame) XTickLabel(x float64) (string, bool) {
	if c == nil || len(c.Data) == 0 || math.IsNaN(x) {
		return "", false
	}
	s := c.Data[0]
	switch s.XType {
	case XDate:
		return time.UnixMilli(int64(x)).UTC().Format("2006-01-02 15:04"), true
	case XCategory:
		if i := int(math.Round(x)); i >= 0 && i < len(s.XText) {
			return s.XText[i], true
		}
	}
	return "", false
}
