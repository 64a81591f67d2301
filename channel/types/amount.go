// Copyright 2025 PolyCrypt GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"math/big"

	"github.com/pkg/errors"
)

// MaxAmountBits is the width of every integer in the canonical encoding.
const MaxAmountBits = 256

// ErrEncoding is returned for numeric or address input that cannot be
// represented in the canonical encoding.
var ErrEncoding = errors.New("encoding error")

// ParseAmount parses a decimal string into an unsigned 256-bit amount.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.WithMessage(ErrEncoding, "empty amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.WithMessagef(ErrEncoding, "amount %q is not a decimal integer", s)
	}
	if err := CheckAmount(v); err != nil {
		return nil, errors.WithMessagef(err, "amount %q", s)
	}
	return v, nil
}

// CheckAmount reports whether v fits into an unsigned 256-bit word.
func CheckAmount(v *big.Int) error {
	switch {
	case v == nil:
		return errors.WithMessage(ErrEncoding, "missing amount")
	case v.Sign() < 0:
		return errors.WithMessagef(ErrEncoding, "negative amount %s", v)
	case v.BitLen() > MaxAmountBits:
		return errors.WithMessagef(ErrEncoding, "amount exceeds %d bits", MaxAmountBits)
	}
	return nil
}

// FormatAmount renders v as a decimal string. A nil amount renders as "0".
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
