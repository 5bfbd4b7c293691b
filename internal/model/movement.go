package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MovementKind distinguishes returns, imports and transfers of blood units.
type MovementKind string

const (
	MovementReturn   MovementKind = "RETURN"
	MovementImport   MovementKind = "IMPORT"
	MovementTransfer MovementKind = "TRANSFER"
)

type Movement struct {
	ID          string       `json:"id"`
	Kind        MovementKind `json:"kind"`
	UnitNumber  string       `json:"unitNumber"`
	ProductCode string       `json:"productCode"`
	From        string       `json:"from,omitempty"`
	To          string       `json:"to,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	CreatedBy   string       `json:"createdBy,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

func (k MovementKind) Valid() bool {
	switch k {
	case MovementReturn, MovementImport, MovementTransfer:
		return true
	}
	return false
}

func (m *Movement) Validate() error {
	var errs []error
	if !m.Kind.Valid() {
		errs = append(errs, fmt.Errorf("kind: unknown value %q", m.Kind))
	}
	if strings.TrimSpace(m.UnitNumber) == "" {
		errs = append(errs, errors.New("unitNumber: required"))
	}
	if strings.TrimSpace(m.ProductCode) == "" {
		errs = append(errs, errors.New("productCode: required"))
	}
	switch m.Kind {
	case MovementReturn:
		if strings.TrimSpace(m.From) == "" {
			errs = append(errs, errors.New("from: returning facility required"))
		}
		if strings.TrimSpace(m.Reason) == "" {
			errs = append(errs, errors.New("reason: required for returns"))
		}
	case MovementImport:
		if strings.TrimSpace(m.From) == "" {
			errs = append(errs, errors.New("from: origin required"))
		}
	case MovementTransfer:
		if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
			errs = append(errs, errors.New("from, to: both locations required"))
		} else if m.From == m.To {
			errs = append(errs, errors.New("to: must differ from origin"))
		}
	}
	return errors.Join(errs...)
}
