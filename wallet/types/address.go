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
	"bytes"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	ctypes "perun.network/perun-hub-backend/channel/types"
)

// AddressBinaryLen is the length of the binary representation of an address,
// in bytes.
const AddressBinaryLen = common.AddressLength

// ParseAddress parses a 0x-prefixed, 40 digit hex address. Mixed case input
// is accepted without checksum validation.
func ParseAddress(s string) (common.Address, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, errors.WithMessagef(ctypes.ErrEncoding, "address %q lacks 0x prefix", s)
	}
	b, err := hexutil.Decode("0x" + s[2:])
	if err != nil {
		return common.Address{}, errors.WithMessagef(ctypes.ErrEncoding, "address %q: %v", s, err)
	}
	return AddressFromBytes(b)
}

// AddressFromBytes unmarshals an address from its binary representation.
func AddressFromBytes(data []byte) (common.Address, error) {
	if len(data) != AddressBinaryLen {
		return common.Address{}, errors.WithMessagef(ctypes.ErrEncoding,
			"unexpected address length %d, want %d", len(data), AddressBinaryLen)
	}
	return common.BytesToAddress(data), nil
}

// Format renders an address in the lowercase form used on the wire and in hub
// paths.
func Format(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// Cmp orders two addresses bytewise.
//
//	 0 if a==b,
//	-1 if a < b,
//	+1 if a > b.
func Cmp(a, b common.Address) int {
	return bytes.Compare(a.Bytes(), b.Bytes())
}

// IsZero reports whether a is the zero address.
func IsZero(a common.Address) bool {
	return a == common.Address{}
}
