// Package model defines domain types for loan vintages and FPD metrics.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NotAvailable is the sentinel stored for null or empty dimension values.
const NotAvailable = "N/A"

// LoanRecord is one normalized loan origination.
type LoanRecord struct {
	ID          string
	Origination time.Time
	Cosecha     string // "YYYY-MM"

	Default    bool // first-payment default
	NonPayment bool // secondary outcome, false when the column is absent

	Amount    decimal.Decimal
	HasAmount bool

	Region     string
	Branch     string
	Product    string
	ClientType string
	Channel    string

	SourceFile string
}

// Dimension names a categorical attribute records can be grouped or filtered by.
type Dimension string

const (
	DimRegion     Dimension = "region"
	DimBranch     Dimension = "branch"
	DimProduct    Dimension = "product"
	DimClientType Dimension = "client_type"
	DimChannel    Dimension = "channel"
)

// AllDimensions lists the dimensions in display order.
var AllDimensions = []Dimension{DimRegion, DimBranch, DimProduct, DimClientType, DimChannel}

var dimensionAliases = map[string]Dimension{
	"region":       DimRegion,
	"branch":       DimBranch,
	"sucursal":     DimBranch,
	"uen":          DimBranch,
	"product":      DimProduct,
	"producto":     DimProduct,
	"client_type":  DimClientType,
	"client-type":  DimClientType,
	"tipo_cliente": DimClientType,
	"channel":      DimChannel,
	"canal":        DimChannel,
}

// ParseDimension resolves a user-supplied dimension name.
func ParseDimension(s string) (Dimension, error) {
	if d, ok := dimensionAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return "", fmt.Errorf("unknown dimension %q (want region, branch, product, client_type or channel)", s)
}

// Label returns a display name for the dimension.
func (d Dimension) Label() string {
	switch d {
	case DimRegion:
		return "Region"
	case DimBranch:
		return "Branch"
	case DimProduct:
		return "Product"
	case DimClientType:
		return "Client Type"
	case DimChannel:
		return "Channel"
	}
	return string(d)
}

// Value returns the record's value for the given dimension.
func (r *LoanRecord) Value(d Dimension) string {
	switch d {
	case DimRegion:
		return r.Region
	case DimBranch:
		return r.Branch
	case DimProduct:
		return r.Product
	case DimClientType:
		return r.ClientType
	case DimChannel:
		return r.Channel
	}
	return NotAvailable
}
