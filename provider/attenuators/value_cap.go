package attenuators

import (
	"github.com/reglet-dev/reglet-broker/application/config"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// PuddinType is the demo permission type limited by a dollar amount.
const PuddinType = "Puddin"

var _ ports.Attenuator = (*ValueCap)(nil)

// ValueCap limits a permission to a single allowance ceiling.
type ValueCap struct {
	Type        string
	Label       string
	Placeholder string
	Decimals    int
}

// NewPuddin returns the ValueCap for the Puddin demo type.
func NewPuddin() *ValueCap {
	return &ValueCap{
		Type:        PuddinType,
		Label:       "How many dollars worth of pudding?",
		Placeholder: "240",
		Decimals:    2,
	}
}

// TypeName implements ports.Attenuator.
func (v *ValueCap) TypeName() string {
	return v.Type
}

// Render implements ports.Attenuator.
func (v *ValueCap) Render(perm entities.StoredPermission) entities.AttenuationSpec {
	def := v.Placeholder
	if limit, ok := ceiling(perm, FieldAllowance); ok {
		def = floorString(limit, v.Decimals)
	}
	return entities.AttenuationSpec{Fields: []entities.Field{{
		Name:        FieldAllowance,
		Label:       v.Label,
		Kind:        entities.FieldNumber,
		Placeholder: v.Placeholder,
		Default:     def,
		Decimals:    v.Decimals,
	}}}
}

// Issue implements ports.Attenuator. The granted data carries the chosen
// allowance as a fixed-point decimal string.
func (v *ValueCap) Issue(perm entities.StoredPermission, answers map[string]any, _ entities.Address) (entities.GrantTerms, error) {
	amount, err := parseAmount(config.Values(answers), FieldAllowance, v.Decimals)
	if err != nil {
		return entities.GrantTerms{}, err
	}
	if err := checkCeiling(perm, amount, v.Decimals); err != nil {
		return entities.GrantTerms{}, err
	}
	return entities.GrantTerms{Data: map[string]any{
		FieldAllowance: amount.FloatString(v.Decimals),
		FieldDecimals:  v.Decimals,
	}}, nil
}
