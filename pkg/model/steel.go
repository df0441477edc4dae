// Package model defines the core data structures used throughout the application.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DesignSteel is one line of demand: a finished piece that must be produced.
// It is immutable after admission.
type DesignSteel struct {
	ID              string  `json:"id"`
	Length          float64 `json:"length"`
	Quantity        int     `json:"quantity"`
	CrossSection    float64 `json:"crossSection"`
	Specification   string  `json:"specification,omitempty"`
	ComponentNumber string  `json:"componentNumber,omitempty"`
	PartNumber      string  `json:"partNumber,omitempty"`
	DisplayID       string  `json:"displayId,omitempty"`
}

// GroupKey returns the planning group key for this design steel.
func (d *DesignSteel) GroupKey() string {
	return GroupKey(d.Specification, d.CrossSection)
}

// TotalLength returns length * quantity.
func (d *DesignSteel) TotalLength() float64 {
	return d.Length * float64(d.Quantity)
}

// ModuleSteel is one element of stock supply from the catalog.
type ModuleSteel struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Length float64 `json:"length"`
}

// Cut records how many design pieces of one length were produced from a source.
type Cut struct {
	DesignID string  `json:"designId"`
	Length   float64 `json:"length"`
	Quantity int     `json:"quantity"`
}

// GroupKey builds the canonical group key "<specification>_<round(crossSection)>".
func GroupKey(specification string, crossSection float64) string {
	return fmt.Sprintf("%s_%d", specification, int(math.Round(crossSection)))
}

// ParseGroupKey splits a group key into specification and rounded cross-section.
// If the specification itself contains '_', only the last segment is parsed as
// the cross-section.
func ParseGroupKey(key string) (specification string, crossSection int) {
	idx := strings.LastIndex(key, "_")
	if idx < 0 {
		return key, 0
	}
	cs, err := strconv.Atoi(key[idx+1:])
	if err != nil {
		return key, 0
	}
	return key[:idx], cs
}
