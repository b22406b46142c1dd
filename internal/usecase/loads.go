package usecase

import (
	"github.com/shopspring/decimal"

	"PowerLedger/internal/domain/errs"
	"PowerLedger/internal/domain/models"
)

var one = decimal.NewFromInt(1)

// LoadFigures are the pi/fd/md triple shared by circuits and sub-circuits.
type LoadFigures struct {
	PiKW decimal.Decimal
	Fd   decimal.Decimal
	MdKW decimal.Decimal
}

// resolveLoad normalizes precision and derives md from pi*fd unless an
// explicit md is given.
func resolveLoad(pi, fd decimal.Decimal, md *decimal.Decimal) (LoadFigures, error) {
	if pi.IsNegative() {
		return LoadFigures{}, errs.Invalid("pi_kw", "must not be negative")
	}
	if !fd.IsPositive() || fd.GreaterThan(one) {
		return LoadFigures{}, errs.Invalid("fd", "must be in (0, 1]")
	}
	out := LoadFigures{
		PiKW: pi.Round(models.PowerPlaces),
		Fd:   fd.Round(models.FactorPlaces),
	}
	if md != nil {
		if md.IsNegative() {
			return LoadFigures{}, errs.Invalid("md_kw", "must not be negative")
		}
		out.MdKW = md.Round(models.PowerPlaces)
	} else {
		out.MdKW = models.DeriveMD(out.PiKW, out.Fd)
	}
	return out, nil
}

func validStatus(s models.LoadStatus) error {
	if !s.Valid() {
		return errs.Invalid("status", "unknown status %q", s)
	}
	return nil
}

// circuitLoad is what a circuit currently contributes to its station.
func circuitLoad(status models.LoadStatus, md decimal.Decimal, subs []*models.SubCircuit) decimal.Decimal {
	if status == models.StatusInactive {
		return decimal.Zero
	}
	total := md
	for _, sc := range subs {
		if sc.Status == models.StatusOperativeNormal {
			total = total.Add(sc.MdKW)
		}
	}
	return total
}

// subCircuitLoad is what a sub-circuit contributes given its parent's status.
func subCircuitLoad(parent models.LoadStatus, status models.LoadStatus, md decimal.Decimal) decimal.Decimal {
	if parent == models.StatusInactive || status != models.StatusOperativeNormal {
		return decimal.Zero
	}
	return md
}
