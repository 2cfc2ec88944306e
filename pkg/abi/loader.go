package abi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// artifact is a compiler output file holding an ABI and its creation code.
type artifact struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode json.RawMessage `json:"bytecode"`
}

// LoadFile reads a contract ABI from path. The file is either a bare ABI
// JSON array or a compiler artifact object with "abi" and "bytecode" keys.
// Bytecode is nil when the file does not carry it.
func LoadFile(path string) (*gethabi.ABI, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read contract file %s: %w", path, err)
	}

	parsed, bytecode, err := Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse contract file %s: %w", path, err)
	}

	return parsed, bytecode, nil
}

// Parse parses a bare ABI array or a compiler artifact.
func Parse(raw []byte) (*gethabi.ABI, []byte, error) {
	raw = bytes.TrimSpace(raw)

	if len(raw) > 0 && raw[0] == '[' {
		parsed, err := gethabi.JSON(bytes.NewReader(raw))
		if err != nil {
			return nil, nil, err
		}

		return &parsed, nil, nil
	}

	var art artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, nil, err
	}

	if len(art.ABI) == 0 {
		return nil, nil, ErrNoABI
	}

	parsed, err := gethabi.JSON(bytes.NewReader(art.ABI))
	if err != nil {
		return nil, nil, err
	}

	return &parsed, artifactBytecode(art.Bytecode), nil
}

// artifactBytecode accepts both the Hardhat string form and the Foundry
// {"object": "0x..."} form.
func artifactBytecode(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}

	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		var obj struct {
			Object string `json:"object"`
		}

		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil
		}

		code = obj.Object
	}

	b := common.FromHex(code)
	if len(b) == 0 {
		return nil
	}

	return b
}
