package domain

// FTMetadataSpec is the metadata standard version reported by the token.
const FTMetadataSpec = "ft-1.0.0"

// TokenMetadata describes the token. Set once at construction and never mutated.
// JSON field names follow the NEP-148 metadata record.
type TokenMetadata struct {
	Spec          string  `json:"spec" yaml:"spec"`
	Name          string  `json:"name" yaml:"name"`
	Symbol        string  `json:"symbol" yaml:"symbol"`
	Icon          *string `json:"icon" yaml:"icon"`                     // data URI (nullable)
	Reference     *string `json:"reference" yaml:"reference"`           // off-chain JSON URI (nullable)
	ReferenceHash *string `json:"reference_hash" yaml:"reference_hash"` // integrity hash of Reference (nullable)
	Decimals      uint8   `json:"decimals" yaml:"decimals"`
}

const (
	defaultName      = "TDJS"
	defaultSymbol    = "TTTTTTDJS"
	defaultReference = "https://rferenceexample.com"
	defaultDecimals  = 18

	defaultIcon = "data:image/svg+xml,%3Csvg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 288 288'%3E%3Cg id='l' data-name='l'%3E%3Cpath d='M187.58,79.81l-30.1,44.69a3.2,3.2,0,0,0,4.75,4.2L191.86,103a1.2,1.2,0,0,1,2,.91v80.46a1.2,1.2,0,0,1-2.12.77L102.18,77.93A15.35,15.35,0,0,0,90.47,72.5H87.34A15.34,15.34,0,0,0,72,87.84V201.16A15.34,15.34,0,0,0,87.34,216.5h0a15.35,15.35,0,0,0,13.08-7.31l30.1-44.69a3.2,3.2,0,0,0-4.75-4.2L96.14,186a1.2,1.2,0,0,1-2-.91V104.61a1.2,1.2,0,0,1,2.12-.77l89.55,107.23a15.35,15.35,0,0,0,11.71,5.43h3.13A15.34,15.34,0,0,0,216,201.16V87.84A15.34,15.34,0,0,0,200.66,72.5h0A15.35,15.35,0,0,0,187.58,79.81Z'/%3E%3C/g%3E%3C/svg%3E"
)

// DefaultMetadata returns the metadata the ledger ships with.
func DefaultMetadata() TokenMetadata {
	icon := defaultIcon
	ref := defaultReference
	refHash := defaultReference
	return TokenMetadata{
		Spec:          FTMetadataSpec,
		Name:          defaultName,
		Symbol:        defaultSymbol,
		Icon:          &icon,
		Reference:     &ref,
		ReferenceHash: &refHash,
		Decimals:      defaultDecimals,
	}
}

// Clone returns a deep copy so callers cannot mutate the original through its pointers.
func (m TokenMetadata) Clone() TokenMetadata {
	out := m
	out.Icon = cloneString(m.Icon)
	out.Reference = cloneString(m.Reference)
	out.ReferenceHash = cloneString(m.ReferenceHash)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
