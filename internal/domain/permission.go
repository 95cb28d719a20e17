package domain

import (
	"net/http"

	"gear-market/internal/core/auth"
)

const notSellerReason = "you are not the seller of this product"

// CheckOwnership lets anyone read a product and only its seller change it.
func CheckOwnership(method string, caller auth.Caller, p *Product) error {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return nil
	}
	if caller.Authenticated() && caller.UserID == p.SellerID {
		return nil
	}
	return &PermissionError{Reason: notSellerReason}
}
