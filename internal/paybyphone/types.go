package paybyphone

import "time"

// Auth is the token response from the PayByPhone auth endpoint.
type Auth struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// Account is one entry of the parking accounts list.
type Account struct {
	ID string `json:"id"`
}

// RateOption identifies a pricing policy for a (location, plate) pair.
type RateOption struct {
	RateOptionID string `json:"rateOptionId"`
	Type         string `json:"type"`
}

// Cost is an amount with its currency.
type Cost struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Quote is a short-lived priced proposal for a parking window.
type Quote struct {
	QuoteID           string    `json:"quoteId"`
	LocationID        string    `json:"locationId"`
	Stall             *string   `json:"stall"`
	QuoteDate         time.Time `json:"quoteDate"`
	TotalCost         Cost      `json:"totalCost"`
	ParkingAccountID  string    `json:"parkingAccountId"`
	ParkingStartTime  time.Time `json:"parkingStartTime"`
	ParkingExpiryTime time.Time `json:"parkingExpiryTime"`
	LicensePlate      string    `json:"licensePlate"`
}

// Segment is one chargeable slice of a parking session.
type Segment struct {
	Cost         float64   `json:"cost"`
	Fees         float64   `json:"fees"`
	ParkingStart time.Time `json:"parkingStart"`
	ParkingEnd   time.Time `json:"parkingEnd"`
}

// ParkedVehicle is the vehicle block embedded in a parking session.
type ParkedVehicle struct {
	ID           int    `json:"id"`
	LicensePlate string `json:"licensePlate"`
	CountryCode  string `json:"countryCode"`
	Jurisdiction string `json:"jurisdiction"`
	Type         string `json:"type"`
}

// ParkingSession is the service's confirmation record, read-only once fetched.
type ParkingSession struct {
	ParkingSessionID string        `json:"parkingSessionId"`
	LocationID       string        `json:"locationId"`
	StartTime        time.Time     `json:"startTime"`
	ExpireTime       time.Time     `json:"expireTime"`
	IsExtendable     bool          `json:"isExtendable"`
	IsRenewable      bool          `json:"isRenewable"`
	IsStoppable      bool          `json:"isStoppable"`
	MaxStayState     string        `json:"maxStayState"`
	RateOption       RateOption    `json:"rateOption"`
	Stall            *string       `json:"stall"`
	Segments         []Segment     `json:"segments"`
	TotalCost        Cost          `json:"totalCost"`
	Vehicle          ParkedVehicle `json:"vehicle"`
}

// Vehicle is one entry of the profile-service vehicle list.
type Vehicle struct {
	VehicleID       string `json:"vehicleId"`
	LegacyVehicleID int64  `json:"legacyVehicleId"`
	LicensePlate    string `json:"licensePlate"`
	Country         string `json:"country"`
	Jurisdiction    string `json:"jurisdiction"`
	Type            string `json:"type"`
}

// bookingDuration is the duration block of a session-creation request.
type bookingDuration struct {
	Quantity int    `json:"quantity"`
	TimeUnit string `json:"timeUnit"`
}

// paymentPayload references a stored payment account; CVV is never sent.
type paymentPayload struct {
	PaymentAccountID string  `json:"paymentAccountId"`
	CVV              *string `json:"cvv"`
}

type paymentMethod struct {
	Type    string         `json:"type"`
	Payload paymentPayload `json:"payload"`
}

// bookingRequest is the session-creation payload posted against a quote.
type bookingRequest struct {
	LicensePlate  string          `json:"licensePlate"`
	LocationID    string          `json:"locationId"`
	Stall         *string         `json:"stall"`
	RateOptionID  string          `json:"rateOptionId"`
	StartTime     time.Time       `json:"startTime"`
	QuoteID       string          `json:"quoteId"`
	Duration      bookingDuration `json:"duration"`
	PaymentMethod paymentMethod   `json:"paymentMethod"`
}
