package abi

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/sirupsen/logrus"
)

// RecordStoreMethod is the read-only call that returns an attested record.
const RecordStoreMethod = "getUserRecordBySubmissionId"

//go:embed contracts/RecordStore.json
var recordStoreABI []byte

// GetABIDir returns the base directory for ABI files
// Checks environment variable ABI_DIR first, then uses defaults
func GetABIDir() string {
	if abiDir := os.Getenv("ABI_DIR"); abiDir != "" {
		return abiDir
	}

	defaultPaths := []string{
		"/root/abi", // Docker container
		"./abi",     // Local development
		"/app/abi",  // Alternative Docker path
	}

	for _, path := range defaultPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "./abi"
}

// ResolveABIPath resolves a file name against the ABI directory.
// Absolute paths and paths containing a directory are used as given.
func ResolveABIPath(filename string) string {
	if filepath.IsAbs(filename) || filepath.Base(filename) != filename {
		return filename
	}
	return filepath.Join(GetABIDir(), filename)
}

// HardhatArtifact represents a Hardhat compilation artifact
type HardhatArtifact struct {
	Format       string          `json:"_format"`
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode,omitempty"`
}

// ParseABI parses either a raw ABI array or a Hardhat artifact.
func ParseABI(data []byte) (abi.ABI, error) {
	var artifact HardhatArtifact
	if err := json.Unmarshal(data, &artifact); err == nil && artifact.Format != "" {
		logrus.WithFields(logrus.Fields{
			"contractName": artifact.ContractName,
			"format":       artifact.Format,
		}).Debug("Detected Hardhat artifact, extracting ABI")

		parsed, err := abi.JSON(bytes.NewReader(artifact.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI from Hardhat artifact: %w", err)
		}
		return parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI (not a Hardhat artifact or valid ABI): %w", err)
	}
	return parsed, nil
}

// LoadABI loads an ABI from file using standardized path resolution
// Supports both raw ABI JSON files and Hardhat artifact files
func LoadABI(filename string) (abi.ABI, error) {
	abiPath := ResolveABIPath(filename)

	logrus.WithField("path", abiPath).Debug("Loading ABI file")

	data, err := os.ReadFile(abiPath)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read ABI file %s: %w", abiPath, err)
	}

	parsed, err := ParseABI(data)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%s: %w", abiPath, err)
	}

	logrus.WithFields(logrus.Fields{
		"path":    abiPath,
		"methods": len(parsed.Methods),
		"events":  len(parsed.Events),
	}).Debug("Successfully loaded ABI")

	return parsed, nil
}

// LoadRecordStoreABI returns the record store ABI. An empty override selects
// the built-in definition. Any ABI used must declare RecordStoreMethod.
func LoadRecordStoreABI(override string) (abi.ABI, error) {
	var (
		parsed abi.ABI
		err    error
	)
	if override == "" {
		parsed, err = ParseABI(recordStoreABI)
	} else {
		parsed, err = LoadABI(override)
	}
	if err != nil {
		return abi.ABI{}, err
	}

	method, ok := parsed.Methods[RecordStoreMethod]
	if !ok {
		return abi.ABI{}, fmt.Errorf("ABI does not declare %s", RecordStoreMethod)
	}
	if len(method.Inputs) != 4 || len(method.Outputs) < 2 {
		return abi.ABI{}, fmt.Errorf("unexpected %s signature %s", RecordStoreMethod, method.Sig)
	}
	return parsed, nil
}
