package store

import (
	"strings"
	"testing"
)

func TestParseContactsCSV(t *testing.T) {
	in := `Name,Phone,City
Asha,98765 43210,Pune
Ravi,919876543211
,9876543212,Delhi
`
	contacts, err := ParseContactsCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 3 {
		t.Fatalf("expected 3 contacts, got %d", len(contacts))
	}

	if contacts[0].Name != "Asha" || contacts[0].Phone != "98765 43210" {
		t.Errorf("row 1 mismatch: %+v", contacts[0])
	}
	if contacts[0].Fields["city"] != "Pune" {
		t.Errorf("header should be lowercased into fields: %+v", contacts[0].Fields)
	}

	// Short row: missing columns padded with empty strings.
	if contacts[1].Fields["city"] != "" {
		t.Errorf("short row should pad missing columns: %+v", contacts[1].Fields)
	}

	// Nameless contact still keeps its number.
	if contacts[2].Name != "" || contacts[2].Phone != "9876543212" {
		t.Errorf("row 3 mismatch: %+v", contacts[2])
	}
}

func TestParseContactsCSV_NumberColumn(t *testing.T) {
	in := "name,number\nAsha,9876543210\n"
	contacts, err := ParseContactsCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if contacts[0].Phone != "9876543210" {
		t.Errorf("number column should populate Phone: %+v", contacts[0])
	}
}

func TestParseContactsCSV_Empty(t *testing.T) {
	if _, err := ParseContactsCSV(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}

	// Header only: no contacts, no error.
	contacts, err := ParseContactsCSV(strings.NewReader("name,phone\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 0 {
		t.Errorf("expected no contacts, got %d", len(contacts))
	}
}
