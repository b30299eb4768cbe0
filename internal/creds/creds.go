// Package creds loads Viam machine connection credentials.
package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Environment variables consulted when no credentials file is given.
const (
	addressEnv  = "VIEWOPT_ROBOT_ADDRESS"
	entityIDEnv = "VIEWOPT_API_KEY_ID"
	apiKeyEnv   = "VIEWOPT_API_KEY"
)

// MachineCredentials identifies a Viam machine and the API key to dial
// it with.
type MachineCredentials struct {
	Address  string `json:"address"`
	EntityID string `json:"entity_id"`
	APIKey   string `json:"api_key"`
}

func (c *MachineCredentials) validate() error {
	if c.Address == "" {
		return errors.New("credentials missing address")
	}
	if c.EntityID == "" || c.APIKey == "" {
		return errors.New("credentials missing api key")
	}
	return nil
}

// Load reads machine credentials from a JSON file. With an empty path the
// VIEWOPT_ROBOT_ADDRESS, VIEWOPT_API_KEY_ID, and VIEWOPT_API_KEY
// environment variables are used instead.
func Load(path string) (*MachineCredentials, error) {
	if path == "" {
		return fromEnv()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	var c MachineCredentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

func fromEnv() (*MachineCredentials, error) {
	c := MachineCredentials{
		Address:  os.Getenv(addressEnv),
		EntityID: os.Getenv(entityIDEnv),
		APIKey:   os.Getenv(apiKeyEnv),
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("no -creds file and %w from environment", err)
	}
	return &c, nil
}
