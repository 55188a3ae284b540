package fea

import (
	"fmt"
	"math"
)

// DefaultDensity is the cable material density in kg/m³ used when a
// section does not set one.
const DefaultDensity = 1000.0

// Section describes the material and cross section shared by cable
// elements. A section is treated as immutable once elements reference it.
type Section struct {
	Diameter        float64 // m
	YoungModulus    float64 // Pa
	Density         float64 // kg/m³
	RayleighDamping float64 // stiffness proportional coefficient (s)
	MassDamping     float64 // mass proportional coefficient (1/s)
}

// NewSection returns a validated circular section with the default density.
func NewSection(diameter, youngModulus, rayleighDamping float64) (*Section, error) {
	s := &Section{
		Diameter:        diameter,
		YoungModulus:    youngModulus,
		Density:         DefaultDensity,
		RayleighDamping: rayleighDamping,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the physical bounds of the section.
func (s *Section) Validate() error {
	switch {
	case !(s.Diameter > 0):
		return fmt.Errorf("%w: section diameter must be positive, got %g", ErrInvalidGeometry, s.Diameter)
	case !(s.YoungModulus > 0):
		return fmt.Errorf("%w: Young's modulus must be positive, got %g", ErrInvalidGeometry, s.YoungModulus)
	case !(s.Density > 0):
		return fmt.Errorf("%w: density must be positive, got %g", ErrInvalidGeometry, s.Density)
	case s.RayleighDamping < 0 || s.MassDamping < 0:
		return fmt.Errorf("%w: damping must be non-negative", ErrInvalidGeometry)
	}
	return nil
}

// Area is the cross section area.
func (s *Section) Area() float64 {
	return math.Pi * s.Diameter * s.Diameter / 4
}

// Inertia is the second moment of area of the circular section.
func (s *Section) Inertia() float64 {
	d2 := s.Diameter * s.Diameter
	return math.Pi * d2 * d2 / 64
}

// LinearDensity is the mass per unit length.
func (s *Section) LinearDensity() float64 {
	return s.Density * s.Area()
}
