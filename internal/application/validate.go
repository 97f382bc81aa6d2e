package application

import "strings"

// checkoutField describes one field the checkout form may submit.
type checkoutField struct {
	Key      string
	Label    string
	Group    string
	Required bool
}

// The storefront's checkout field set. Shipping fields are only enforced
// when shipping to a different address, account fields only when creating
// an account.
var checkoutFields = []checkoutField{
	{"billing_first_name", "Billing first name", "billing", true},
	{"billing_last_name", "Billing last name", "billing", true},
	{"billing_email", "Billing email", "billing", true},
	{"billing_phone", "Billing phone", "billing", false},
	{"billing_address_1", "Billing address", "billing", true},
	{"billing_address_2", "Billing address 2", "billing", false},
	{"billing_city", "Billing city", "billing", true},
	{"billing_state", "Billing state", "billing", false},
	{"billing_postcode", "Billing postcode", "billing", true},
	{"billing_country", "Billing country", "billing", true},
	{"shipping_first_name", "Shipping first name", "shipping", true},
	{"shipping_last_name", "Shipping last name", "shipping", true},
	{"shipping_address_1", "Shipping address", "shipping", true},
	{"shipping_address_2", "Shipping address 2", "shipping", false},
	{"shipping_city", "Shipping city", "shipping", true},
	{"shipping_state", "Shipping state", "shipping", false},
	{"shipping_postcode", "Shipping postcode", "shipping", true},
	{"shipping_country", "Shipping country", "shipping", true},
	{"account_username", "Account username", "account", true},
	{"account_password", "Account password", "account", true},
}

type ValidateFieldsRequest struct {
	ShipToDifferentAddress bool              `json:"ship_to_different_address"`
	CreateAccount          bool              `json:"createaccount"`
	Fields                 map[string]string `json:"fields"`
}

type ValidateFieldsResponse struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// ValidateCheckoutFields checks required fields group by group, skipping
// groups the submitted flags make irrelevant.
func ValidateCheckoutFields(req *ValidateFieldsRequest) *ValidateFieldsResponse {
	errs := map[string]string{}
	for _, f := range checkoutFields {
		if f.Group == "shipping" && !req.ShipToDifferentAddress {
			continue
		}
		if f.Group == "account" && !req.CreateAccount {
			continue
		}
		if !f.Required {
			continue
		}
		if strings.TrimSpace(req.Fields[f.Key]) == "" {
			errs[f.Key] = f.Label + " is a required field."
		}
	}
	if len(errs) > 0 {
		return &ValidateFieldsResponse{Valid: false, Errors: errs}
	}
	return &ValidateFieldsResponse{Valid: true}
}
