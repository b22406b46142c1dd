package metrics

import "PowerLedger/internal/domain/models"

// Nop discards every measurement. Tests use it to avoid registering
// collectors twice on the default registry.
type Nop struct{}

func (Nop) RecordRecalculation(models.StationStatus) {}
func (Nop) RecordAdmission(bool, bool) {}
func (Nop) RecordSchedulerRun(string, int, float64) {}
func (Nop) RecordRestore(string, float64) {}
func (Nop) RecordBackup(int64) {}
func (Nop) RecordError(string) {}
