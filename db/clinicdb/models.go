package clinicdb

import "time"

type Department string

const (
	DepartmentMedical Department = "medical"
	DepartmentDental  Department = "dental"
)

type Patient struct {
	ID            uint       `gorm:"primaryKey" json:"id" yaml:"id"`
	PatientNo     string     `gorm:"size:32;uniqueIndex" json:"patient_no" yaml:"patient_no"`
	FirstName     string     `gorm:"size:100" json:"first_name" yaml:"first_name"`
	MiddleName    string     `gorm:"size:100" json:"middle_name" yaml:"middle_name"`
	LastName      string     `gorm:"size:100;index" json:"last_name" yaml:"last_name"`
	Gender        string     `gorm:"size:16" json:"gender" yaml:"gender"`
	BirthDate     *time.Time `json:"birth_date,omitempty" yaml:"birth_date"`
	ContactNumber string     `gorm:"size:32" json:"contact_number" yaml:"contact_number"`
	Address       string     `gorm:"size:255" json:"address" yaml:"address"`
	Department    Department `gorm:"size:16" json:"department" yaml:"department"`
}

type Consultation struct {
	ID             uint      `gorm:"primaryKey" json:"id" yaml:"id"`
	ConsultationNo string    `gorm:"size:32;uniqueIndex" json:"consultation_no" yaml:"consultation_no"`
	PatientID      uint      `gorm:"index" json:"patient_id" yaml:"patient_id"`
	Type           string    `gorm:"size:16" json:"type" yaml:"type"`
	Date           time.Time `json:"date" yaml:"date"`
	ChiefComplaint string    `gorm:"type:text" json:"chief_complaint" yaml:"chief_complaint"`
	Diagnosis      string    `gorm:"type:text" json:"diagnosis" yaml:"diagnosis"`
	Treatment      string    `gorm:"type:text" json:"treatment" yaml:"treatment"`
	Physician      string    `gorm:"size:100" json:"physician" yaml:"physician"`
	Status         string    `gorm:"size:32" json:"status" yaml:"status"`
}

// Supplies and equipment number their items per department, so the primary
// key is (id, department).
type Supply struct {
	ID         uint       `gorm:"primaryKey;autoIncrement:false" json:"id" yaml:"id"`
	ItemCode   string     `gorm:"size:32" json:"item_code" yaml:"item_code"`
	Name       string     `gorm:"size:255" json:"name" yaml:"name"`
	Category   string     `gorm:"size:100" json:"category" yaml:"category"`
	Department Department `gorm:"primaryKey;size:16" json:"department" yaml:"department"`
	Quantity   int        `json:"quantity" yaml:"quantity"`
	Unit       string     `gorm:"size:32" json:"unit" yaml:"unit"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty" yaml:"expiry_date"`
}

type Equipment struct {
	ID           uint       `gorm:"primaryKey;autoIncrement:false" json:"id" yaml:"id"`
	PropertyNo   string     `gorm:"size:32" json:"property_no" yaml:"property_no"`
	Name         string     `gorm:"size:255" json:"name" yaml:"name"`
	Category     string     `gorm:"size:100" json:"category" yaml:"category"`
	Department   Department `gorm:"primaryKey;size:16" json:"department" yaml:"department"`
	Status       string     `gorm:"size:32" json:"status" yaml:"status"`
	Location     string     `gorm:"size:100" json:"location" yaml:"location"`
	SerialNumber string     `gorm:"size:64" json:"serial_number" yaml:"serial_number"`
}

// Equipment is both singular and plural; keep gorm from pluralizing it to "equipments".
func (Equipment) TableName() string {
	return "equipment"
}

// Supplies and Equipment are each kept as two department sub-collections.
type Supplies struct {
	Medical []Supply `json:"medical" yaml:"medical"`
	Dental  []Supply `json:"dental" yaml:"dental"`
}

type EquipmentItems struct {
	Medical []Equipment `json:"medical" yaml:"medical"`
	Dental  []Equipment `json:"dental" yaml:"dental"`
}
