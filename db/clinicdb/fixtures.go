package clinicdb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML seed file layout. Supplies and equipment keep the
// medical/dental split of the clinic's static inventories.
type Fixtures struct {
	Patients      []Patient      `yaml:"patients"`
	Consultations []Consultation `yaml:"consultations"`
	Supplies      Supplies       `yaml:"supplies"`
	Equipment     EquipmentItems `yaml:"equipment"`
}

func LoadFixtures(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read fixtures file %s: %w", path, err)
	}

	fixtures := &Fixtures{}
	if err := yaml.Unmarshal(raw, fixtures); err != nil {
		return nil, fmt.Errorf("could not parse fixtures file %s: %w", path, err)
	}

	return fixtures, nil
}
