package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// Signer signs serialized Solana transactions with one ed25519 key.
type Signer struct {
	key    ed25519.PrivateKey
	pub    ed25519.PublicKey
	pubB58 string
}

// NewSigner builds a Signer from a hex-encoded 32-byte seed or 64-byte
// secret key as returned by LoadKey.
func NewSigner(keyHex string) (*Signer, error) {
	b, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode key: %w", err)
	}

	var key ed25519.PrivateKey
	switch len(b) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(b)
	case ed25519.PrivateKeySize:
		key = ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
		if !bytes.Equal(key[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
			return nil, errors.New("crypto: secret key public half does not match seed")
		}
	default:
		return nil, fmt.Errorf("crypto: expected 32 or 64-byte key, got %d bytes", len(b))
	}

	pub := key.Public().(ed25519.PublicKey)
	return &Signer{key: key, pub: pub, pubB58: base58.Encode(pub)}, nil
}

// PublicKey returns the base58 wallet address.
func (s *Signer) PublicKey() string {
	return s.pubB58
}

// SignTransaction fills this wallet's signature slot in a serialized legacy
// or v0 transaction and returns the signed bytes. The input is not modified.
func (s *Signer) SignTransaction(unsigned []byte) ([]byte, error) {
	numSigs, n, err := readCompactU16(unsigned)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w: signature count: %v", domain.ErrSigningFailed, err)
	}
	sigStart := n
	msgStart := sigStart + numSigs*ed25519.SignatureSize
	if numSigs == 0 || msgStart > len(unsigned) {
		return nil, fmt.Errorf("crypto: %w: malformed transaction", domain.ErrSigningFailed)
	}
	msg := unsigned[msgStart:]

	keys, required, err := signerKeys(msg)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w: %v", domain.ErrSigningFailed, err)
	}
	if required != numSigs {
		return nil, fmt.Errorf("crypto: %w: header requires %d signatures, tx has %d slots",
			domain.ErrSigningFailed, required, numSigs)
	}

	slot := -1
	for i := 0; i < required && i < len(keys); i++ {
		if bytes.Equal(keys[i], s.pub) {
			slot = i
			break
		}
	}
	if slot < 0 {
		return nil, fmt.Errorf("crypto: %w: wallet %s is not a required signer", domain.ErrSigningFailed, s.pubB58)
	}

	out := make([]byte, len(unsigned))
	copy(out, unsigned)
	sig := ed25519.Sign(s.key, msg)
	copy(out[sigStart+slot*ed25519.SignatureSize:], sig)
	return out, nil
}

// SignatureOf returns the base58 signature in the fee payer slot, which is
// the transaction id on Solana.
func SignatureOf(signedTx []byte) (string, error) {
	numSigs, n, err := readCompactU16(signedTx)
	if err != nil || numSigs == 0 || len(signedTx) < n+ed25519.SignatureSize {
		return "", errors.New("crypto: transaction has no signature")
	}
	return base58.Encode(signedTx[n : n+ed25519.SignatureSize]), nil
}

// signerKeys parses the message header and returns the static account keys
// and the number of required signatures.
func signerKeys(msg []byte) ([][]byte, int, error) {
	if len(msg) == 0 {
		return nil, 0, errors.New("empty message")
	}
	off := 0
	if msg[0]&0x80 != 0 {
		if v := msg[0] & 0x7f; v != 0 {
			return nil, 0, fmt.Errorf("unsupported message version %d", v)
		}
		off = 1
	}
	if len(msg) < off+3 {
		return nil, 0, errors.New("short message header")
	}
	required := int(msg[off])
	off += 3

	numKeys, n, err := readCompactU16(msg[off:])
	if err != nil {
		return nil, 0, fmt.Errorf("account key count: %w", err)
	}
	off += n
	if len(msg) < off+numKeys*ed25519.PublicKeySize {
		return nil, 0, errors.New("short account key list")
	}

	keys := make([][]byte, numKeys)
	for i := range keys {
		keys[i] = msg[off : off+ed25519.PublicKeySize]
		off += ed25519.PublicKeySize
	}
	return keys, required, nil
}

// readCompactU16 decodes Solana's shortvec length prefix.
func readCompactU16(b []byte) (int, int, error) {
	val := 0
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, errors.New("truncated compact-u16")
		}
		val |= int(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return val, i + 1, nil
		}
	}
	return 0, 0, errors.New("compact-u16 overflow")
}

var _ domain.TxSigner = (*Signer)(nil)
