package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// TransactionType is the kind of VTU service being purchased.
type TransactionType string

const (
	Airtime     TransactionType = "airtime"
	Data        TransactionType = "data"
	Cable       TransactionType = "cable"
	Electricity TransactionType = "electricity"
)

// Valid reports whether t is a supported service type.
func (t TransactionType) Valid() bool {
	switch t {
	case Airtime, Data, Cable, Electricity:
		return true
	}
	return false
}

// ServiceDetails is the type specific payload of a purchase. The set of
// implementations is closed: AirtimeDetails, DataDetails, CableDetails and
// ElectricityDetails.
type ServiceDetails interface {
	ServiceType() TransactionType
	Validate() error
	sealed()
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,14}$`)

type AirtimeDetails struct {
	Phone   string `json:"phone"`
	Network string `json:"network"`
}

func (AirtimeDetails) ServiceType() TransactionType { return Airtime }
func (AirtimeDetails) sealed()                      {}

func (d AirtimeDetails) Validate() error {
	if !phonePattern.MatchString(d.Phone) {
		return fmt.Errorf("phone %q is not a valid phone number", d.Phone)
	}
	if strings.TrimSpace(d.Network) == "" {
		return fmt.Errorf("network cannot be empty")
	}
	return nil
}

type DataDetails struct {
	Phone   string `json:"phone"`
	PlanID  string `json:"planId"`
	Network string `json:"network"`
}

func (DataDetails) ServiceType() TransactionType { return Data }
func (DataDetails) sealed()                      {}

func (d DataDetails) Validate() error {
	if !phonePattern.MatchString(d.Phone) {
		return fmt.Errorf("phone %q is not a valid phone number", d.Phone)
	}
	if strings.TrimSpace(d.PlanID) == "" {
		return fmt.Errorf("planId cannot be empty")
	}
	if strings.TrimSpace(d.Network) == "" {
		return fmt.Errorf("network cannot be empty")
	}
	return nil
}

type CableDetails struct {
	SmartcardNumber string `json:"smartcardNumber"`
	Provider        string `json:"provider"`
}

func (CableDetails) ServiceType() TransactionType { return Cable }
func (CableDetails) sealed()                      {}

func (d CableDetails) Validate() error {
	if strings.TrimSpace(d.SmartcardNumber) == "" {
		return fmt.Errorf("smartcardNumber cannot be empty")
	}
	if strings.TrimSpace(d.Provider) == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	return nil
}

type ElectricityDetails struct {
	MeterNumber string `json:"meterNumber"`
	Provider    string `json:"provider"`
}

func (ElectricityDetails) ServiceType() TransactionType { return Electricity }
func (ElectricityDetails) sealed()                      {}

func (d ElectricityDetails) Validate() error {
	if strings.TrimSpace(d.MeterNumber) == "" {
		return fmt.Errorf("meterNumber cannot be empty")
	}
	if strings.TrimSpace(d.Provider) == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	return nil
}

// DecodeDetails parses raw JSON into the variant that belongs to t.
func DecodeDetails(t TransactionType, raw []byte) (ServiceDetails, error) {
	var (
		details ServiceDetails
		err     error
	)
	switch t {
	case Airtime:
		var d AirtimeDetails
		err = json.Unmarshal(raw, &d)
		details = d
	case Data:
		var d DataDetails
		err = json.Unmarshal(raw, &d)
		details = d
	case Cable:
		var d CableDetails
		err = json.Unmarshal(raw, &d)
		details = d
	case Electricity:
		var d ElectricityDetails
		err = json.Unmarshal(raw, &d)
		details = d
	default:
		return nil, fmt.Errorf("unknown transaction type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s details: %w", t, err)
	}
	return details, nil
}

// EncodeDetails is the inverse of DecodeDetails.
func EncodeDetails(d ServiceDetails) (string, error) {
	if d == nil {
		return "", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s details: %w", d.ServiceType(), err)
	}
	return string(b), nil
}

var transactionNamespace = uuid.MustParse("5b0a3f0e-8f5c-4a49-9a3e-3c1f0b6f2d11")

// TransactionIDFor derives a stable transaction id from a client request id,
// so a repeated request maps to the same row.
func TransactionIDFor(userID, requestID string) string {
	return uuid.NewSHA1(transactionNamespace, []byte(userID+"/"+requestID)).String()
}
