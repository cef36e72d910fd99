package core

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// displayText folds compatibility forms (full-width letters, ligatures) so
// names read back from the ledger compare equal to what was typed.
func displayText(value string) string {
	return norm.NFKC.String(strings.TrimSpace(value))
}

func (r DeployContractRequest) Normalize() DeployContractRequest {
	r.Name = displayText(r.Name)
	r.Description = displayText(r.Description)
	r.Image = strings.TrimSpace(r.Image)
	r.ExternalURL = strings.TrimSpace(r.ExternalURL)
	r.Chain = strings.ToUpper(strings.TrimSpace(r.Chain))
	return r
}

func (r DeployContractRequest) Validate() error {
	if r.Name == "" {
		return NewValidationError("name", "contract name is required")
	}
	if r.Chain == "" {
		return NewValidationError("chain", "chain is required")
	}
	return nil
}

func (r CreateTokenTypeRequest) Normalize() CreateTokenTypeRequest {
	r.Name = displayText(r.Name)
	r.Description = displayText(r.Description)
	r.Image = strings.TrimSpace(r.Image)
	return r
}

func (r CreateTokenTypeRequest) Validate() error {
	if r.Name == "" {
		return NewValidationError("name", "token type name is required")
	}
	return nil
}

func (r MintRequest) Normalize() MintRequest {
	destinations := make([]Destination, 0, len(r.Destinations))
	for _, destination := range r.Destinations {
		destination.Address = strings.TrimSpace(destination.Address)
		destinations = append(destinations, destination)
	}
	r.Destinations = destinations
	return r
}

func (r MintRequest) Validate() error {
	if len(r.Destinations) == 0 {
		return NewValidationError("destinations", "at least one destination is required")
	}
	for _, destination := range r.Destinations {
		if destination.Address == "" {
			return NewValidationError("address", "wallet address is required")
		}
		if destination.Amount < MinMintAmount || destination.Amount > MaxMintAmount {
			return NewValidationError("amount", "amount must be between 1 and 100")
		}
	}
	return nil
}

// DeployRequest returns the prefilled deployment form.
func (d DefaultsConfig) DeployRequest() DeployContractRequest {
	return DeployContractRequest{
		Name:        d.ContractName,
		Description: d.ContractDescription,
		Image:       d.Image,
		ExternalURL: d.ExternalURL,
		Chain:       d.Chain,
	}.Normalize()
}

func (d DefaultsConfig) TokenTypeRequest() CreateTokenTypeRequest {
	return CreateTokenTypeRequest{
		Name:        d.ContractName,
		Description: d.ContractDescription,
		Image:       d.Image,
	}.Normalize()
}

func (d DefaultsConfig) MintRequest(address string) MintRequest {
	amount := d.MintAmount
	if amount == 0 {
		amount = DefaultMintAmount
	}
	return MintRequest{Destinations: []Destination{{Address: address, Amount: amount}}}.Normalize()
}
