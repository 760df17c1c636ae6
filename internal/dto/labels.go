package dto

import "github.com/sekurigo/privacy-api/internal/models"

// Dutch display labels keyed by the wire enums. Presentation only; the core
// never branches on these.
var statusLabels = map[models.RequestStatus]string{
	models.StatusPending:            "In afwachting",
	models.StatusUnderReview:        "In beoordeling",
	models.StatusInProgress:         "In behandeling",
	models.StatusCompleted:          "Afgerond",
	models.StatusRejected:           "Afgewezen",
	models.StatusPartiallyCompleted: "Gedeeltelijk afgerond",
}

var rightTypeLabels = map[models.RightType]string{
	models.RightAccess:             "Recht op inzage",
	models.RightRectification:      "Recht op rectificatie",
	models.RightErasure:            "Recht op vergetelheid",
	models.RightRestrictProcessing: "Recht op beperking van de verwerking",
	models.RightDataPortability:    "Recht op dataportabiliteit",
	models.RightObject:             "Recht van bezwaar",
}

// StatusLabel returns the Dutch label for a status, falling back to the code.
func StatusLabel(s models.RequestStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// RightTypeLabel returns the Dutch label for a right type, falling back to
// the code.
func RightTypeLabel(r models.RightType) string {
	if label, ok := rightTypeLabels[r]; ok {
		return label
	}
	return string(r)
}
