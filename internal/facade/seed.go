package facade

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/albardn2/karma-sub001/internal/model"
	"github.com/albardn2/karma-sub001/internal/store"
)

// Seed is reference data and opening lots loaded from YAML.
type Seed struct {
	References []SeedReference         `yaml:"references"`
	Lots       []model.InventoryCreate `yaml:"lots"`
}

// SeedReference registers one reference record.
type SeedReference struct {
	Kind model.RefKind `yaml:"kind"`
	UUID string        `yaml:"uuid"`
	Name string        `yaml:"name"`
}

// LoadSeed reads a seed file. Unknown fields are rejected.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("seed: decode %s: %w", path, err)
	}
	return seed, nil
}

// ApplySeed registers the references and opens the lots in one
// transaction.
func (s *Service) ApplySeed(ctx context.Context, seed Seed) ([]model.Inventory, error) {
	var lots []model.Inventory
	err := s.store.RunInTransaction(ctx, func(tx *store.Tx) error {
		lots = lots[:0]
		for _, ref := range seed.References {
			if err := tx.PutReference(ctx, ref.Kind, ref.UUID, ref.Name); err != nil {
				return err
			}
		}
		for _, req := range seed.Lots {
			lot, err := s.ledger.CreateInventory(ctx, tx, req)
			if err != nil {
				return err
			}
			lots = append(lots, lot)
		}
		return nil
	})
	return lots, err
}
