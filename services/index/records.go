package index

// Category is one of the six fixed groups of the search index.
type Category string

const (
	CategoryPatients       Category = "patients"
	CategoryConsultations  Category = "consultations"
	CategoryMedicalRecords Category = "medicalRecords"
	CategoryMedicines      Category = "medicines"
	CategorySupplies       Category = "supplies"
	CategoryEquipment      Category = "equipment"
)

// Categories lists every category in the order queries scan them.
var Categories = []Category{
	CategoryPatients,
	CategoryConsultations,
	CategoryMedicalRecords,
	CategoryMedicines,
	CategorySupplies,
	CategoryEquipment,
}

// Page names the view a search result navigates to.
type Page string

const (
	PagePatients       Page = "Patients"
	PageConsultations  Page = "Consultations"
	PageMedicalRecords Page = "Medical Records"
	PageMedicines      Page = "Medicines"
	PageSupplies       Page = "Supplies"
	PageEquipment      Page = "Equipment"
)

var pageRoutes = map[Page]string{
	PagePatients:       "/patients",
	PageConsultations:  "/consultations",
	PageMedicalRecords: "/medical-records",
	PageMedicines:      "/medicines",
	PageSupplies:       "/supplies",
	PageEquipment:      "/equipment",
}

// Route returns the client-side route of the page, or "" for unknown pages.
func (p Page) Route() string {
	return pageRoutes[p]
}

func (p Page) Valid() bool {
	_, ok := pageRoutes[p]
	return ok
}

// Icon is a symbolic glyph name resolved by the client.
type Icon string

const (
	IconUser        Icon = "user"
	IconStethoscope Icon = "stethoscope"
	IconFileText    Icon = "file-text"
	IconPill        Icon = "pill"
	IconPackage     Icon = "package"
	IconWrench      Icon = "wrench"
)

// Record is the normalized, searchable view of one clinic entity.
type Record struct {
	// ID resolves to exactly one entity of the source collection. Supplies and
	// equipment carry their department prefix, e.g. "medical-6".
	ID string `json:"id"`
	// Key is unique across the whole index: "<category>:<id>".
	Key         string `json:"key"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Page        Page   `json:"page"`
	Icon        Icon   `json:"icon"`
	Data        any    `json:"data"`
}

func recordKey(category Category, id string) string {
	return string(category) + ":" + id
}
