// Package attenuators holds the built-in attenuators of the bundled
// permission provider. Each one handles a single permission type and is
// registered with the provider's engine by type name.
package attenuators

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/reglet-dev/reglet-broker/application/config"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/errors"
)

// Field names shared by the built-in attenuators.
const (
	FieldAllowance  = "allowance"
	FieldExpiration = "expiration"
	FieldFreeText   = "freeText"
	FieldDecimals   = "decimals"
)

// parseAmount reads a non-negative decimal amount with at most decimals
// fractional digits. Amounts are kept as exact rationals; token amounts
// with 18 decimals do not fit a float64.
func parseAmount(values config.Values, key string, decimals int) (*big.Rat, error) {
	var text string
	switch v := values[key].(type) {
	case string:
		text = strings.TrimSpace(v)
	case nil:
		return nil, invalid(key, "is required")
	default:
		text = fmt.Sprint(v)
	}
	if text == "" {
		return nil, invalid(key, "is required")
	}

	amount, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, invalid(key, fmt.Sprintf("%q is not a number", text))
	}
	if amount.Sign() < 0 {
		return nil, invalid(key, "must not be negative")
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(amount, new(big.Rat).SetInt(scale))
	if !scaled.IsInt() {
		return nil, invalid(key, fmt.Sprintf("allows at most %d decimals", decimals))
	}
	return amount, nil
}

// ceiling returns the stored upper bound for key, if the permission has one.
func ceiling(perm entities.StoredPermission, key string) (*big.Rat, bool) {
	if perm.Data == nil {
		return nil, false
	}
	switch v := perm.Data[key].(type) {
	case string:
		return new(big.Rat).SetString(strings.TrimSpace(v))
	case int:
		return new(big.Rat).SetInt64(int64(v)), true
	case int64:
		return new(big.Rat).SetInt64(v), true
	case float64:
		// Shortest decimal text, so a YAML 0.3 is 3/10 and not its binary neighbour.
		return new(big.Rat).SetString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return nil, false
}

// floorString formats r with decimals fractional digits, rounding down so
// a rendered ceiling never exceeds the ceiling itself.
func floorString(r *big.Rat, decimals int) string {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	units := new(big.Int).Quo(new(big.Int).Mul(r.Num(), scale), r.Denom())
	return new(big.Rat).SetFrac(units, scale).FloatString(decimals)
}

func checkCeiling(perm entities.StoredPermission, amount *big.Rat, decimals int) error {
	limit, ok := ceiling(perm, FieldAllowance)
	if ok && amount.Cmp(limit) > 0 {
		return invalid(FieldAllowance, fmt.Sprintf("exceeds the held amount of %s", floorString(limit, decimals)))
	}
	return nil
}

func invalid(field, message string) error {
	return &errors.ValidationError{
		Target: "attenuation",
		Issues: []entities.ValidationError{{Field: field, Message: message}},
	}
}
