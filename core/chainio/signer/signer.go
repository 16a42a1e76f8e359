package signer

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	eip191Prefix = "\x19Ethereum Signed Message:\n"
)

// FromPrivateKeyHex parses a hex private key, with or without the 0x prefix.
func FromPrivateKeyHex(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	if strings.HasPrefix(privateKeyHex, "0x") {
		privateKeyHex = privateKeyHex[2:]
	}
	return crypto.HexToECDSA(privateKeyHex)
}

// Generate EIP191 signature
func SignMessage(key *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	hash := eip191Hash(data)
	sig, e := crypto.Sign(hash.Bytes(), key)
	if e != nil {
		return nil, e
	}
	// https://stackoverflow.com/questions/69762108/implementing-ethereum-personal-sign-eip-191-from-go-ethereum-gives-different-s
	sig[64] += 27

	return sig, e
}

// RecoverAddress returns the address that produced an EIP191 signature over
// data. The counterpart of SignMessage; used by accounts and paymasters to
// check operation signatures against their owner key.
func RecoverAddress(data []byte, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	// undo the +27 recovery id shift applied at signing time
	fixed := make([]byte, crypto.SignatureLength)
	copy(fixed, sig)
	if fixed[64] >= 27 {
		fixed[64] -= 27
	}

	hash := eip191Hash(data)
	pub, err := crypto.SigToPub(hash.Bytes(), fixed)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func eip191Hash(data []byte) common.Hash {
	prefix := []byte(eip191Prefix + fmt.Sprint(len(data)))
	return crypto.Keccak256Hash(append(prefix, data...))
}
