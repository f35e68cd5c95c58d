package metaplex

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const pdaMarker = "ProgramDerivedAddress"

// FindMetadataAddress derives the metadata PDA for a mint.
// Seeds: ["metadata", program_id, mint].
func FindMetadataAddress(mint string) (string, uint8, error) {
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", 0, fmt.Errorf("decode mint: %w", err)
	}
	programBytes, err := base58.Decode(ProgramID)
	if err != nil {
		return "", 0, fmt.Errorf("decode program id: %w", err)
	}

	if len(mintBytes) != PubkeySize {
		return "", 0, fmt.Errorf("mint is %d bytes, want %d", len(mintBytes), PubkeySize)
	}

	seeds := [][]byte{
		[]byte("metadata"),
		programBytes,
		mintBytes,
	}

	return findProgramAddress(seeds, programBytes)
}

// findProgramAddress searches bumps from 255 down for a hash that is off the ed25519 curve.
// The hash input is seeds || bump || program id || "ProgramDerivedAddress",
// as in the runtime's create_program_address.
func findProgramAddress(seeds [][]byte, programID []byte) (string, uint8, error) {
	for bump := byte(255); bump > 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{bump})
		h.Write(programID)
		h.Write([]byte(pdaMarker))

		sum := h.Sum(nil)
		if !isOnCurve(sum) {
			return base58.Encode(sum), bump, nil
		}
	}

	return "", 0, fmt.Errorf("no viable bump seed")
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
