package convert

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Decimal converts a connect Decimal value to float64. Strings are base64
// encoded two's-complement big-endian unscaled integers divided by
// 10^scale. Numbers are widened as-is. Objects of the form
// {"scale": n, "value": "<base64>"} carry their own scale.
func Decimal(v any, scale int) Result {
	if v == nil {
		return Result{}
	}

	switch d := v.(type) {
	case string:
		f, err := decodeScaled(d, scale)
		if err != nil {
			return Result{Err: err}
		}
		return Result{Value: f}
	case map[string]any:
		return variableScale(d)
	}

	if f, ok := asFloat64(v); ok {
		return Result{Value: f}
	}
	return Result{Err: fmt.Errorf("unsupported decimal value of type %T", v)}
}

func variableScale(d map[string]any) Result {
	raw, ok := d["value"].(string)
	if !ok {
		return Result{Err: errors.New("variable scale decimal without value")}
	}
	scale, ok := asInt64(d["scale"])
	if !ok {
		if s, isStr := d["scale"].(string); isStr {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
			if err != nil {
				return Result{Err: fmt.Errorf("variable scale decimal scale: %w", err)}
			}
			scale, ok = n, true
		}
	}
	if !ok {
		return Result{Err: errors.New("variable scale decimal without scale")}
	}
	f, err := decodeScaled(raw, int(scale))
	if err != nil {
		return Result{Err: err}
	}
	return Result{Value: f}
}

func decodeScaled(s string, scale int) (float64, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return 0, fmt.Errorf("base64 decode: %w", err)
		}
	}
	f, _ := Unscaled(raw, scale).Float64()
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("decimal of %d bytes at scale %d overflows float64", len(raw), scale)
	}
	return f, nil
}

// Unscaled interprets b as a signed big-endian integer and divides it by
// 10^scale exactly. An empty slice is zero.
func Unscaled(b []byte, scale int) *big.Rat {
	n := new(big.Int).SetBytes(b)
	if len(b) > 0 && b[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8)))
	}

	r := new(big.Rat).SetInt(n)
	if scale == 0 {
		return r
	}
	abs := scale
	if abs < 0 {
		abs = -abs
	}
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs)), nil)
	if scale > 0 {
		return r.Quo(r, new(big.Rat).SetInt(pow))
	}
	return r.Mul(r, new(big.Rat).SetInt(pow))
}

// EncodeUnscaled is the inverse of Unscaled for the integer part: it renders
// n as minimal two's-complement big-endian bytes, base64 encoded.
func EncodeUnscaled(n *big.Int) string {
	return base64.StdEncoding.EncodeToString(twosComplement(n))
}

func twosComplement(n *big.Int) []byte {
	if n.Sign() == 0 {
		return []byte{0}
	}
	if n.Sign() > 0 {
		b := n.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}
	// Width in bytes large enough to hold n in two's complement.
	width := (new(big.Int).Not(n).BitLen())/8 + 1
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width*8))
	b := new(big.Int).Add(mod, n).Bytes()
	for len(b) < width {
		b = append([]byte{0xff}, b...)
	}
	return b
}
