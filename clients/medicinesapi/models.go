package medicinesapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Medicine struct {
	ID           RecordID `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	MedicineCode string   `json:"medicine_code"`
	GenericName  string   `json:"generic_name"`
	BrandName    string   `json:"brand_name"`
	Category     string   `json:"category"`
	Quantity     int      `json:"quantity"`
	ExpiryDate   string   `json:"expiry_date"`
}

// RecordID accepts both numeric and string ids from the medicines API.
type RecordID string

func (r *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RecordID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("medicine id must be a string or a number: %w", err)
	}
	*r = RecordID(n.String())
	return nil
}

// listResponse is the `{data: {data: [...]}}` envelope of the list endpoint.
type listResponse struct {
	Data struct {
		Data []Medicine `json:"data"`
	} `json:"data"`
}
