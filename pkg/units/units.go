// Package units provides the dimensioned scalar types used throughout
// petrec. All lengths are carried in millimetres and all times in
// picoseconds, the natural scales of PET scanner geometry and coincidence
// timing. Wrapping them in distinct types keeps millimetres out of
// picosecond slots at package boundaries; numeric kernels unwrap to plain
// float64 once inputs have been validated.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Length is a distance in millimetres.
type Length float64

// Time is a duration in picoseconds.
type Time float64

// Ratio is a dimensionless quantity.
type Ratio float64

// Angle is a plane angle in radians.
type Angle float64

// Velocity is a speed in millimetres per picosecond.
type Velocity float64

// C is the speed of light in vacuum, in millimetres per picosecond.
const C Velocity = 0.299792458

// Tau is one full turn.
const Tau Angle = 2 * math.Pi

// MM wraps a value already expressed in millimetres.
func MM(v float64) Length { return Length(v) }

// CM wraps a value expressed in centimetres.
func CM(v float64) Length { return Length(v * 10) }

// PS wraps a value already expressed in picoseconds.
func PS(v float64) Time { return Time(v) }

// NS wraps a value expressed in nanoseconds.
func NS(v float64) Time { return Time(v * 1000) }

// MM returns the length as a plain float64 in millimetres.
func (l Length) MM() float64 { return float64(l) }

// PS returns the time as a plain float64 in picoseconds.
func (t Time) PS() float64 { return float64(t) }

// Radians returns the angle as a plain float64 in radians.
func (a Angle) Radians() float64 { return float64(a) }

// Mul scales a time by a velocity, giving the distance covered.
func (v Velocity) Mul(t Time) Length { return Length(float64(v) * float64(t)) }

// ParseLength parses a length such as "180 mm", "38 cm" or "0.5 m".
// A bare number is taken to already be in millimetres.
func ParseLength(s string) (Length, error) {
	v, unit, err := splitQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("parse length %q: %w", s, err)
	}
	switch unit {
	case "", "mm":
		return Length(v), nil
	case "cm":
		return Length(v * 10), nil
	case "m":
		return Length(v * 1000), nil
	}
	return 0, fmt.Errorf("parse length %q: unknown unit %q", s, unit)
}

// ParseTime parses a time such as "200 ps" or "2 ns".
// A bare number is taken to already be in picoseconds.
func ParseTime(s string) (Time, error) {
	v, unit, err := splitQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	switch unit {
	case "", "ps":
		return Time(v), nil
	case "ns":
		return Time(v * 1000), nil
	case "us":
		return Time(v * 1e6), nil
	}
	return 0, fmt.Errorf("parse time %q: unknown unit %q", s, unit)
}

// splitQuantity separates "12.5 cm" into its numeric value and unit name.
// The unit may be separated by whitespace or attached directly.
func splitQuantity(s string) (float64, string, error) {
	s = strings.TrimSpace(s)
	num, unit := s, ""
	if i := strings.IndexFunc(s, unicode.IsLetter); i >= 0 {
		num, unit = strings.TrimSpace(s[:i]), s[i:]
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, "", fmt.Errorf("bad number %q", num)
	}
	return v, unit, nil
}

// UnmarshalYAML accepts either a bare number (millimetres) or a string
// with an explicit unit such as "38 cm".
func (l *Length) UnmarshalYAML(node *yaml.Node) error {
	var f float64
	if err := node.Decode(&f); err == nil {
		*l = Length(f)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("length must be a number or a string: %w", err)
	}
	v, err := ParseLength(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// MarshalYAML renders the length with its unit so that saved
// configuration files stay readable.
func (l Length) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("%g mm", float64(l)), nil
}

// UnmarshalYAML accepts either a bare number (picoseconds) or a string
// with an explicit unit such as "200 ps".
func (t *Time) UnmarshalYAML(node *yaml.Node) error {
	var f float64
	if err := node.Decode(&f); err == nil {
		*t = Time(f)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("time must be a number or a string: %w", err)
	}
	v, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// MarshalYAML renders the time with its unit.
func (t Time) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("%g ps", float64(t)), nil
}
