package factory

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// BASE AMOUNT TABLE (YAML)
// =============================================================================
//
//   base_amounts:
//     - effective_from: 2024-05-01
//       amount: 124028
//     - effective_from: 2025-05-01
//       amount: 130160

type baseAmountsYAML struct {
	BaseAmounts []struct {
		EffectiveFrom time.Time `yaml:"effective_from"`
		Amount        int64     `yaml:"amount"`
	} `yaml:"base_amounts"`
}

// LoadBaseAmounts parses a YAML base amount table.
func LoadBaseAmounts(data []byte) (eligibility.BaseAmountTable, error) {
	var doc baseAmountsYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return eligibility.BaseAmountTable{}, eris.Wrap(err, "factory: parse base amounts")
	}
	if len(doc.BaseAmounts) == 0 {
		return eligibility.BaseAmountTable{}, eris.New("factory: base amount table is empty")
	}

	entries := make([]eligibility.BaseAmount, 0, len(doc.BaseAmounts))
	for _, e := range doc.BaseAmounts {
		if e.Amount <= 0 {
			return eligibility.BaseAmountTable{}, eris.Errorf("factory: base amount %d from %s must be positive",
				e.Amount, e.EffectiveFrom.Format(time.DateOnly))
		}
		entries = append(entries, eligibility.BaseAmount{
			EffectiveFrom: generic.DayOf(e.EffectiveFrom),
			Amount:        generic.MoneyFromInt(e.Amount),
		})
	}
	return eligibility.NewBaseAmountTable(entries...), nil
}

// LoadBaseAmountsFile reads the table from path. An empty path yields the
// built-in table.
func LoadBaseAmountsFile(path string) (eligibility.BaseAmountTable, error) {
	if path == "" {
		return eligibility.DefaultBaseAmounts(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return eligibility.BaseAmountTable{}, eris.Wrapf(err, "factory: read base amounts %s", path)
	}
	return LoadBaseAmounts(data)
}
