// Package capss implements the CAPSS post-quantum signature scheme: a
// SmallWood zero-knowledge argument of knowledge of a preimage of the
// Anemoi permutation, made non-interactive and bound to the signed
// message. Keys and signatures are plain byte slices; all integers in
// serialized formats are little-endian.
package capss

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/MuriData/capss/config"
	"github.com/MuriData/capss/pkg/field"
	"github.com/MuriData/capss/pkg/merkle"
	"github.com/MuriData/capss/pkg/regperm"
	"github.com/MuriData/capss/pkg/smallwood"
)

// ErrVerificationFailed reports an invalid signature.
var ErrVerificationFailed = errors.New("capss: signature verification failed")

// scheme bundles the configured statement shape and proof system of
// one variant.
type scheme struct {
	lppcCfg *regperm.Config
	sw      *smallwood.Smallwood
}

func newScheme(variant int) (*scheme, error) {
	p, err := config.ForVariant(variant)
	if err != nil {
		return nil, err
	}
	lppcCfg, err := regperm.NewConfig(p.BatchingFactor, p.IVSize, p.YSize)
	if err != nil {
		return nil, err
	}
	arities := make([]int, p.TreeHeight)
	for i := range arities {
		arities[i] = p.TreeArity
	}
	sw, err := smallwood.New(lppcCfg.Lppc(), smallwood.Config{
		Rho:                 p.Rho,
		NOpenedEvals:        p.PiopNOpenedEvals,
		Beta:                p.Beta,
		PiopFormatChallenge: 0,
		DecsNEvals:          p.TreeNLeaves,
		DecsNOpenedEvals:    p.DecsNOpenedEvals,
		DecsEta:             p.DecsEta,
		DecsPowBits:         p.DecsPowBits,
		DecsFormatChallenge: 0,
		DecsTree: &merkle.Config{
			NLeaves: p.TreeNLeaves,
			Height:  p.TreeHeight,
			Arities: arities,
		},
	})
	if err != nil {
		return nil, err
	}
	return &scheme{lppcCfg: lppcCfg, sw: sw}, nil
}

// GetSizes returns the public-key size, the secret-key size and an
// upper bound on the signature size of a variant.
func GetSizes(variant int) (pkLen, skLen, sigMaxLen int, err error) {
	s, err := newScheme(variant)
	if err != nil {
		return 0, 0, 0, err
	}
	pkLen = s.lppcCfg.SerializedSize()
	skLen = pkLen + field.VecSize(s.lppcCfg.SecretSize())
	sigMaxLen = s.sw.MaxProofSize()
	return pkLen, skLen, sigMaxLen, nil
}

// Keypair generates a key pair. The secret key embeds the public key.
func Keypair(variant int) (pk, sk []byte, err error) {
	s, err := newScheme(variant)
	if err != nil {
		return nil, nil, err
	}
	st, secret, err := regperm.Random(s.lppcCfg)
	if err != nil {
		return nil, nil, err
	}
	pkLen := s.lppcCfg.SerializedSize()
	pk = make([]byte, pkLen)
	st.Serialize(pk)
	sk = make([]byte, pkLen+field.VecSize(s.lppcCfg.SecretSize()))
	copy(sk, pk)
	secret.Serialize(sk[pkLen:])
	return pk, sk, nil
}

// SignDetached signs a message and returns the bare signature.
func SignDetached(variant int, message, sk []byte) ([]byte, error) {
	s, err := newScheme(variant)
	if err != nil {
		return nil, err
	}
	pkLen := s.lppcCfg.SerializedSize()
	if len(sk) < pkLen+field.VecSize(s.lppcCfg.SecretSize()) {
		return nil, fmt.Errorf("capss: secret key too short")
	}

	st, err := regperm.Deserialize(s.lppcCfg, sk[:pkLen])
	if err != nil {
		return nil, err
	}
	secret := field.NewVec(s.lppcCfg.SecretSize())
	if err := secret.Deserialize(sk[pkLen:]); err != nil {
		return nil, err
	}
	witness, err := st.BuildWitness(secret)
	if err != nil {
		return nil, err
	}
	return s.sw.Prove(st, witness, message)
}

// SignAttached signs a message and returns the signed message with the
// layout u32_le(len(sig)) || message || signature.
func SignAttached(variant int, message, sk []byte) ([]byte, error) {
	sig, err := SignDetached(variant, message, sk)
	if err != nil {
		return nil, err
	}
	sm := make([]byte, 4+len(message)+len(sig))
	binary.LittleEndian.PutUint32(sm, uint32(len(sig)))
	copy(sm[4:], message)
	copy(sm[4+len(message):], sig)
	return sm, nil
}

// VerifyDetached checks a detached signature.
func VerifyDetached(variant int, message, sig, pk []byte) error {
	s, err := newScheme(variant)
	if err != nil {
		return err
	}
	if len(pk) < s.lppcCfg.SerializedSize() {
		return fmt.Errorf("capss: public key too short")
	}
	st, err := regperm.Deserialize(s.lppcCfg, pk)
	if err != nil {
		return err
	}
	if err := s.sw.Verify(st, message, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}
	return nil
}

// VerifyAttached checks a signed message and returns the embedded
// message.
func VerifyAttached(variant int, signedMsg, pk []byte) ([]byte, error) {
	if len(signedMsg) < 4 {
		return nil, fmt.Errorf("capss: signed message shorter than its length prefix")
	}
	sigLen := int(binary.LittleEndian.Uint32(signedMsg))
	if sigLen+4 > len(signedMsg) {
		return nil, fmt.Errorf("capss: signed message shorter than its signature")
	}
	message := signedMsg[4 : len(signedMsg)-sigLen]
	sig := signedMsg[len(signedMsg)-sigLen:]
	if err := VerifyDetached(variant, message, sig, pk); err != nil {
		return nil, err
	}
	out := make([]byte, len(message))
	copy(out, message)
	return out, nil
}
