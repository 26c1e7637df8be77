package index

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meghashyamc/clinicsearch/clients/medicinesapi"
	"github.com/meghashyamc/clinicsearch/db/clinicdb"
)

const (
	displayDateLayout = "Jan 2, 2006"
	NoVisits          = "No visits"
)

// MedicalRecord is derived per patient from their consultations.
type MedicalRecord struct {
	Patient     clinicdb.Patient `json:"patient"`
	TotalVisits int              `json:"total_visits"`
	LastVisit   string           `json:"last_visit"`
}

func formatName(lastName string, firstName string) string {
	lastName = strings.TrimSpace(lastName)
	firstName = strings.TrimSpace(firstName)
	switch {
	case lastName == "":
		return firstName
	case firstName == "":
		return lastName
	default:
		return lastName + ", " + firstName
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, sep)
}

func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(displayDateLayout)
}

func departmentID(department clinicdb.Department, id uint) string {
	return fmt.Sprintf("%s-%d", department, id)
}

func patientRecords(patients []clinicdb.Patient) []Record {
	records := make([]Record, 0, len(patients))
	for _, patient := range patients {
		id := strconv.FormatUint(uint64(patient.ID), 10)
		records = append(records, Record{
			ID:          id,
			Key:         recordKey(CategoryPatients, id),
			Title:       formatName(patient.LastName, patient.FirstName),
			Subtitle:    joinNonEmpty(" - ", patient.PatientNo, joinNonEmpty(" ", titleCase(string(patient.Department)), "Patient")),
			Description: joinNonEmpty(", ", patient.Gender, formatDate(patient.BirthDate), patient.ContactNumber, patient.Address),
			Category:    titleCase(string(patient.Department)),
			Page:        PagePatients,
			Icon:        IconUser,
			Data:        patient,
		})
	}
	return records
}

func consultationRecords(consultations []clinicdb.Consultation, patients []clinicdb.Patient) []Record {
	patientNames := make(map[uint]string, len(patients))
	for _, patient := range patients {
		patientNames[patient.ID] = formatName(patient.LastName, patient.FirstName)
	}

	records := make([]Record, 0, len(consultations))
	for _, consultation := range consultations {
		name, ok := patientNames[consultation.PatientID]
		if !ok || name == "" {
			name = "Unknown patient"
		}
		id := strconv.FormatUint(uint64(consultation.ID), 10)
		records = append(records, Record{
			ID:          id,
			Key:         recordKey(CategoryConsultations, id),
			Title:       name,
			Subtitle:    joinNonEmpty(" - ", consultation.ConsultationNo, joinNonEmpty(" ", consultation.Type, "Consultation")),
			Description: joinNonEmpty(" - ", consultation.ChiefComplaint, consultation.Diagnosis, formatDate(&consultation.Date)),
			Category:    consultation.Status,
			Page:        PageConsultations,
			Icon:        IconStethoscope,
			Data:        consultation,
		})
	}
	return records
}

// deriveMedicalRecords joins every patient with their consultations.
func deriveMedicalRecords(patients []clinicdb.Patient, consultations []clinicdb.Consultation) []MedicalRecord {
	visits := make(map[uint][]time.Time, len(patients))
	for _, consultation := range consultations {
		visits[consultation.PatientID] = append(visits[consultation.PatientID], consultation.Date)
	}

	derived := make([]MedicalRecord, 0, len(patients))
	for _, patient := range patients {
		dates := visits[patient.ID]
		medicalRecord := MedicalRecord{
			Patient:     patient,
			TotalVisits: len(dates),
			LastVisit:   NoVisits,
		}
		if len(dates) > 0 {
			sort.Slice(dates, func(a, b int) bool { return dates[a].After(dates[b]) })
			medicalRecord.LastVisit = dates[0].Format(displayDateLayout)
		}
		derived = append(derived, medicalRecord)
	}
	return derived
}

func medicalRecordRecords(medicalRecords []MedicalRecord) []Record {
	records := make([]Record, 0, len(medicalRecords))
	for _, medicalRecord := range medicalRecords {
		patient := medicalRecord.Patient
		id := strconv.FormatUint(uint64(patient.ID), 10)
		visitsLabel := "visits"
		if medicalRecord.TotalVisits == 1 {
			visitsLabel = "visit"
		}
		records = append(records, Record{
			ID:          id,
			Key:         recordKey(CategoryMedicalRecords, id),
			Title:       formatName(patient.LastName, patient.FirstName),
			Subtitle:    joinNonEmpty(" - ", patient.PatientNo, "Medical Record"),
			Description: fmt.Sprintf("%d %s, last visit: %s", medicalRecord.TotalVisits, visitsLabel, medicalRecord.LastVisit),
			Category:    titleCase(string(patient.Department)),
			Page:        PageMedicalRecords,
			Icon:        IconFileText,
			Data:        medicalRecord,
		})
	}
	return records
}

func medicineRecords(medicines []medicinesapi.Medicine) []Record {
	records := make([]Record, 0, len(medicines))
	for _, medicine := range medicines {
		id := string(medicine.ID)
		brand := ""
		if medicine.BrandName != "" {
			brand = "(" + medicine.BrandName + ")"
		}
		records = append(records, Record{
			ID:       id,
			Key:      recordKey(CategoryMedicines, id),
			Title:    medicine.Name,
			Subtitle: joinNonEmpty(" - ", medicine.MedicineCode, medicine.Type),
			Description: joinNonEmpty(", ",
				joinNonEmpty(" ", medicine.GenericName, brand),
				fmt.Sprintf("qty %d", medicine.Quantity),
				joinNonEmpty(" ", prefixIfSet("expires", medicine.ExpiryDate))),
			Category: medicine.Category,
			Page:     PageMedicines,
			Icon:     IconPill,
			Data:     medicine,
		})
	}
	return records
}

func supplyRecords(supplies *clinicdb.Supplies) []Record {
	if supplies == nil {
		return []Record{}
	}
	records := make([]Record, 0, len(supplies.Medical)+len(supplies.Dental))
	add := func(department clinicdb.Department, items []clinicdb.Supply) {
		for _, supply := range items {
			id := departmentID(department, supply.ID)
			records = append(records, Record{
				ID:       id,
				Key:      recordKey(CategorySupplies, id),
				Title:    supply.Name,
				Subtitle: joinNonEmpty(" - ", supply.ItemCode, titleCase(string(department))+" Supply"),
				Description: joinNonEmpty(", ",
					supply.Category,
					joinNonEmpty(" ", strconv.Itoa(supply.Quantity), supply.Unit),
					prefixIfSet("expires", formatDate(supply.ExpiryDate))),
				Category: supply.Category,
				Page:     PageSupplies,
				Icon:     IconPackage,
				Data:     supply,
			})
		}
	}
	add(clinicdb.DepartmentMedical, supplies.Medical)
	add(clinicdb.DepartmentDental, supplies.Dental)
	return records
}

func equipmentRecords(equipment *clinicdb.EquipmentItems) []Record {
	if equipment == nil {
		return []Record{}
	}
	records := make([]Record, 0, len(equipment.Medical)+len(equipment.Dental))
	add := func(department clinicdb.Department, items []clinicdb.Equipment) {
		for _, item := range items {
			id := departmentID(department, item.ID)
			records = append(records, Record{
				ID:          id,
				Key:         recordKey(CategoryEquipment, id),
				Title:       item.Name,
				Subtitle:    joinNonEmpty(" - ", item.PropertyNo, titleCase(string(department))+" Equipment"),
				Description: joinNonEmpty(", ", item.Status, item.Location, prefixIfSet("S/N", item.SerialNumber)),
				Category:    item.Category,
				Page:        PageEquipment,
				Icon:        IconWrench,
				Data:        item,
			})
		}
	}
	add(clinicdb.DepartmentMedical, equipment.Medical)
	add(clinicdb.DepartmentDental, equipment.Dental)
	return records
}

func prefixIfSet(prefix string, value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return prefix + " " + value
}
