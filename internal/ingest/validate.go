package ingest

import (
	"encoding/json"

	"kayakcast/internal/models"
)

const (
	FlagDischargeNegative = "discharge_negative"
	FlagGageNegative      = "gage_negative"
	FlagBothMissing       = "both_missing"

	FlagDischargeMissing = "discharge_missing"
	FlagGageMissing      = "gage_missing"
)

// ValidateReading returns quality flags for a reading. Negative physical
// values are malformed input: a flagged reading is rejected (the row is
// skipped, never the whole batch).
func ValidateReading(r *models.Reading) []string {
	var flags []string

	if r.DischargeCFS.Valid && r.DischargeCFS.Float64 < 0 {
		flags = append(flags, FlagDischargeNegative)
	}
	if r.GageHeightFt.Valid && r.GageHeightFt.Float64 < 0 {
		flags = append(flags, FlagGageNegative)
	}
	if !r.DischargeCFS.Valid && !r.GageHeightFt.Valid {
		flags = append(flags, FlagBothMissing)
	}

	return flags
}

// AdvisoryFlags returns quality flags recorded on a reading that is still
// stored: a single missing parameter degrades scoring for that hour but does
// not make the row unusable.
func AdvisoryFlags(r *models.Reading) []string {
	var flags []string

	if !r.DischargeCFS.Valid && r.GageHeightFt.Valid {
		flags = append(flags, FlagDischargeMissing)
	}
	if r.DischargeCFS.Valid && !r.GageHeightFt.Valid {
		flags = append(flags, FlagGageMissing)
	}

	return flags
}

func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
