package orgac

import (
	"encoding/json"
	"fmt"

	"github.com/platware/orgauth/pkg/accesscontrol"
)

// The permission, permissions, and additional_fields columns hold JSON text.
// All encoding and decoding for those columns lives here so the storage
// format can change in one place.

func encodeStatements(s accesscontrol.Statements) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode permission statements: %w", err)
	}
	return string(data), nil
}

func decodeStatements(raw string) (accesscontrol.Statements, error) {
	var s accesscontrol.Statements
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("failed to decode permission statements: %w", err)
	}
	return s, nil
}

func encodePermissions(perms []string) (string, error) {
	data, err := json.Marshal(perms)
	if err != nil {
		return "", fmt.Errorf("failed to encode permissions: %w", err)
	}
	return string(data), nil
}

func decodePermissions(raw string) ([]string, error) {
	var perms []string
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return perms, nil
}

func encodeAdditionalFields(fields map[string]interface{}) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode additional fields: %w", err)
	}
	return string(data), nil
}

func decodeAdditionalFields(raw string) (map[string]interface{}, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode additional fields: %w", err)
	}
	return fields, nil
}
