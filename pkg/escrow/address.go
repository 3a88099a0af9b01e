package escrow

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/interchainx/fusion-escrow/pkg/types"
)

// Salt disambiguates otherwise identical parameter tuples.
type Salt [32]byte

// DeriveAddress computes an escrow's identity from its creation parameters
// before the escrow exists:
//
//	keccak256(0xff ‖ factory ‖ salt ‖ keccak256(encodeParams(params)))[12:]
//
// The function is pure, so counterparties can predict where funds will sit
// without executing creation, and creation must produce the same identity.
func DeriveAddress(factory common.Address, salt Salt, params types.EscrowParams) common.Address {
	paramsHash := crypto.Keccak256(encodeParams(params))

	buf := make([]byte, 0, 1+common.AddressLength+len(salt)+len(paramsHash))
	buf = append(buf, 0xff)
	buf = append(buf, factory.Bytes()...)
	buf = append(buf, salt[:]...)
	buf = append(buf, paramsHash...)

	return common.BytesToAddress(crypto.Keccak256(buf)[12:])
}

// encodeParams serializes the parameter tuple with fixed-width fields so the
// derivation is stable across implementations.
func encodeParams(p types.EscrowParams) []byte {
	buf := make([]byte, 0, 2*common.AddressLength+1+common.AddressLength+2*32+common.HashLength+8)
	buf = append(buf, p.Maker.Bytes()...)
	buf = append(buf, p.Taker.Bytes()...)
	buf = append(buf, byte(p.Asset.Kind))
	buf = append(buf, p.Asset.Token.Bytes()...)
	buf = append(buf, bigEndian32(p.Amount.BigInt().Bytes())...)
	buf = append(buf, bigEndian32(p.SafetyDeposit.BigInt().Bytes())...)
	buf = append(buf, p.SecretHash.Bytes()...)

	var expiry [8]byte
	binary.BigEndian.PutUint64(expiry[:], uint64(p.Expiry.Unix()))
	buf = append(buf, expiry[:]...)
	return buf
}

func bigEndian32(b []byte) []byte {
	var out [32]byte
	copy(out[32-len(b):], b)
	return out[:]
}
