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

package wire

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"perun.network/perun-hub-backend/channel/types"
)

// Count is a nonce or counter. It is written as a decimal string and read
// from either a decimal string or a JSON number.
type Count uint64

// MarshalJSON implements json.Marshaler.
func (c Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(c), 10))
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if len(s) >= 2 && s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.WithMessage(types.ErrEncoding, err.Error())
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return errors.WithMessagef(types.ErrEncoding, "count %s", string(data))
	}
	*c = Count(v)
	return nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, err := types.ParseAmount(s)
	if err != nil {
		return nil, errors.WithMessage(err, field)
	}
	return v, nil
}

// parseDelta parses a signed amount whose magnitude fits into 256 bits.
func parseDelta(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.WithMessagef(types.ErrEncoding, "%s: amount %q is not a decimal integer", field, s)
	}
	if v.BitLen() > types.MaxAmountBits {
		return nil, errors.WithMessagef(types.ErrEncoding, "%s: amount exceeds %d bits", field, types.MaxAmountBits)
	}
	return v, nil
}

func parseHash(field, s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, errors.WithMessagef(types.ErrEncoding, "%s: invalid hash %q", field, s)
	}
	return common.BytesToHash(b), nil
}

func parseSig(field, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, errors.WithMessagef(types.ErrEncoding, "%s: %v", field, err)
	}
	return b, nil
}

func formatSig(sig []byte) string {
	if len(sig) == 0 {
		return ""
	}
	return hexutil.Encode(sig)
}
