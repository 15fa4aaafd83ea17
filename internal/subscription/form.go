package subscription

import "github.com/couchcryptid/weather-alerts/internal/selection"

// FormInput holds the contact fields of the subscription form.
type FormInput struct {
	Method    string `json:"method"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	AlsoEmail bool   `json:"also_email"`
}

// FormFromSelection builds a Request from the form fields and the current
// selection. The also-email option only applies to SMS subscriptions that
// carry an email, and then the alternate address is that email.
func FormFromSelection(snap selection.Snapshot, in FormInput) Request {
	req := Request{
		Method: in.Method,
		Phone:  in.Phone,
		Email:  in.Email,
		Lat:    snap.Latitude,
		Lon:    snap.Longitude,
	}
	if snap.City != nil {
		req.City = *snap.City
	}
	if snap.Country != nil {
		req.Country = *snap.Country
	}
	if in.Method == MethodSMS && in.AlsoEmail && in.Email != "" {
		req.AlsoEmail = true
		req.AltEmail = in.Email
	}
	return req
}
