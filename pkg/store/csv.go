package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/autommensor/wabot/pkg/campaign"
)

// ParseContactsCSV reads a header-row CSV into contacts. Every column lands
// in the contact's field map (header names lowercased); "name" and
// "phone"/"number" columns additionally populate the lifted fields. Rows
// shorter than the header are padded with empty strings.
func ParseContactsCSV(r io.Reader) ([]campaign.Contact, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var contacts []campaign.Contact
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(contacts)+2, err)
		}

		fields := make(map[string]string, len(header))
		for i, key := range header {
			if key == "" {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			fields[key] = value
		}

		contact := campaign.Contact{
			Name:   fields["name"],
			Fields: fields,
		}
		if v := fields["phone"]; v != "" {
			contact.Phone = v
		} else if v := fields["number"]; v != "" {
			contact.Phone = v
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}
