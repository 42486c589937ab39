package lattice

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TimingWeight is a frame interval [Start, End).
// Times (sequencing) widens the interval, Plus (choice) narrows it.
type TimingWeight struct {
	Start int
	End   int
}

// TimingOne is the identity of Times.
var TimingOne = TimingWeight{Start: math.MaxInt, End: 0}

// TimingZero is the identity of Plus.
var TimingZero = TimingWeight{Start: 0, End: math.MaxInt}

// Times returns [min(s1,s2), max(e1,e2)).
func (w TimingWeight) Times(o TimingWeight) TimingWeight {
	return TimingWeight{Start: min(w.Start, o.Start), End: max(w.End, o.End)}
}

// Plus returns [max(s1,s2), min(e1,e2)).
func (w TimingWeight) Plus(o TimingWeight) TimingWeight {
	return TimingWeight{Start: max(w.Start, o.Start), End: min(w.End, o.End)}
}

func (w TimingWeight) String() string {
	return "[" + strconv.Itoa(w.Start) + ":" + strconv.Itoa(w.End) + "]"
}

// ParseTimingWeight parses the "[s:e]" form produced by String.
func ParseTimingWeight(s string) (TimingWeight, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return TimingWeight{}, errors.Errorf("timing weight format error: %q", s)
	}
	start, end, ok := strings.Cut(s[1:len(s)-1], ":")
	if !ok {
		return TimingWeight{}, errors.Errorf("timing weight format error: %q", s)
	}
	b, err := strconv.Atoi(start)
	if err != nil {
		return TimingWeight{}, errors.Wrapf(err, "timing weight start %q", start)
	}
	e, err := strconv.Atoi(end)
	if err != nil {
		return TimingWeight{}, errors.Wrapf(err, "timing weight end %q", end)
	}
	return TimingWeight{Start: b, End: e}, nil
}

// Weight is the composite lattice weight. Cost is the total scaled cost of the
// arc (graph + acoustic), Acoustic the acoustic part of it.
type Weight struct {
	Cost     float32
	Acoustic float32
	Time     TimingWeight
}

// One is the identity of Times.
var One = Weight{Time: TimingOne}

// Zero is the identity of Plus.
var Zero = Weight{Cost: float32(math.Inf(1)), Time: TimingZero}

// DefaultDelta is the default quantization step for ApproxEqual.
const DefaultDelta = 1.0 / 1024

// Times sums both costs and widens the interval.
func (w Weight) Times(o Weight) Weight {
	return Weight{
		Cost:     w.Cost + o.Cost,
		Acoustic: w.Acoustic + o.Acoustic,
		Time:     w.Time.Times(o.Time),
	}
}

// Plus keeps the operand with the strictly lower Cost; ties keep w.
func (w Weight) Plus(o Weight) Weight {
	if o.Cost < w.Cost {
		return o
	}
	return w
}

// GraphCost returns the non-acoustic part of Cost.
func (w Weight) GraphCost() float32 { return w.Cost - w.Acoustic }

// Quantize rounds both costs to a multiple of delta. The interval is kept.
func (w Weight) Quantize(delta float32) Weight {
	return Weight{
		Cost:     quantize(w.Cost, delta),
		Acoustic: quantize(w.Acoustic, delta),
		Time:     w.Time,
	}
}

func quantize(v, delta float32) float32 {
	if math.IsInf(float64(v), 0) {
		return v
	}
	return float32(math.Floor(float64(v/delta)+0.5)) * delta
}

// ApproxEqual compares two weights after quantization.
func ApproxEqual(a, b Weight, delta float32) bool {
	return a.Quantize(delta) == b.Quantize(delta)
}

// Member reports whether w is a valid weight (no NaN, no -Inf).
func (w Weight) Member() bool {
	return !math.IsNaN(float64(w.Cost)) && !math.IsNaN(float64(w.Acoustic)) &&
		!math.IsInf(float64(w.Cost), -1) && !math.IsInf(float64(w.Acoustic), -1)
}

func (w Weight) String() string {
	return "(" + formatFloat(w.Cost) + "," + formatFloat(w.Acoustic) + "," + w.Time.String() + ")"
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

// ParseWeight parses the "(c,a,[s:e])" form produced by String.
func ParseWeight(s string) (Weight, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return Weight{}, errors.Errorf("lattice weight format error: %q", s)
	}
	vals := strings.SplitN(s[1:len(s)-1], ",", 3)
	if len(vals) != 3 {
		return Weight{}, errors.Errorf("lattice weight format error: %q", s)
	}
	c, err := strconv.ParseFloat(vals[0], 32)
	if err != nil {
		return Weight{}, errors.Wrapf(err, "lattice weight cost %q", vals[0])
	}
	a, err := strconv.ParseFloat(vals[1], 32)
	if err != nil {
		return Weight{}, errors.Wrapf(err, "lattice weight acoustic %q", vals[1])
	}
	tm, err := ParseTimingWeight(vals[2])
	if err != nil {
		return Weight{}, err
	}
	return Weight{Cost: float32(c), Acoustic: float32(a), Time: tm}, nil
}
