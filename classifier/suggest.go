package classifier

import "github.com/linesmerrill/lapor-sampah-api/models"

// labelCategories is the trash vocabulary. Every key is a detector label worth showing
// to the resident as a hint; the value is the category it suggests, or "" when the
// label is trash-relevant but does not point at one category.
var labelCategories = map[string]models.Category{
	// containers and packaging
	"bottle":  models.CategoryPlastic,
	"cup":     models.CategoryPlastic,
	"bag":     models.CategoryPlastic,
	"handbag": models.CategoryPlastic,
	"bowl":    "",

	// food waste
	"banana":   models.CategoryOrganic,
	"apple":    models.CategoryOrganic,
	"food":     models.CategoryOrganic,
	"sandwich": models.CategoryOrganic,
	"orange":   models.CategoryOrganic,
	"broccoli": models.CategoryOrganic,
	"carrot":   models.CategoryOrganic,
	"hot dog":  models.CategoryOrganic,
	"pizza":    models.CategoryOrganic,
	"donut":    models.CategoryOrganic,
	"cake":     models.CategoryOrganic,

	// paper
	"book":  models.CategoryOrganic,
	"paper": models.CategoryOrganic,

	// electronics and appliances
	"cell phone": models.CategoryHazardous,
	"laptop":     models.CategoryHazardous,
	"remote":     models.CategoryHazardous,
	"keyboard":   models.CategoryHazardous,
	"mouse":      models.CategoryHazardous,
	"tv":         models.CategoryHazardous,
	"hair drier": models.CategoryHazardous,

	// bulky items
	"couch":        models.CategoryIllegalDump,
	"chair":        models.CategoryIllegalDump,
	"bed":          models.CategoryIllegalDump,
	"refrigerator": models.CategoryIllegalDump,
	"microwave":    models.CategoryIllegalDump,
	"oven":         models.CategoryIllegalDump,
	"toilet":       models.CategoryIllegalDump,
	"suitcase":     models.CategoryIllegalDump,
}

// IsTrash reports whether label belongs to the trash vocabulary
func IsTrash(label string) bool {
	_, ok := labelCategories[label]
	return ok
}

// FilterTrash keeps the detections whose label is in the trash vocabulary, preserving order
func FilterTrash(detections []models.Detection) []models.Detection {
	out := make([]models.Detection, 0, len(detections))
	for _, d := range detections {
		if IsTrash(d.Label) {
			out = append(out, d)
		}
	}
	return out
}

// SuggestCategory returns the category of the highest-ranked detection whose label maps
// to one, or nil. It never fails and never blocks.
func SuggestCategory(detections []models.Detection) *models.Category {
	for _, d := range detections {
		if c := labelCategories[d.Label]; c != "" {
			return &c
		}
	}
	return nil
}
