// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package profile

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/trialmatch/pkg/types"
)

// ReadFile loads a profile from a YAML file, the format written by
// WriteYAML. The user id in the file is optional.
func ReadFile(path string) (types.UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("reading profile file: %w", err)
	}
	var p types.UserProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return types.UserProfile{}, fmt.Errorf("parsing profile file: %w", err)
	}
	return p, nil
}

// WriteYAML writes p to w as YAML.
func WriteYAML(w io.Writer, p types.UserProfile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&p); err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	return enc.Close()
}

// Import reads the profile at path and stores it under userID, which
// overrides any user id in the file.
func (s *Store) Import(ctx context.Context, userID, path string) (types.UserProfile, error) {
	p, err := ReadFile(path)
	if err != nil {
		return types.UserProfile{}, err
	}
	if userID != "" {
		p.UserID = userID
	}
	return s.Upsert(ctx, p)
}

// ExportYAML writes every stored profile to path as a YAML sequence.
func (s *Store) ExportYAML(ctx context.Context, path string) error {
	profiles, err := s.List(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
