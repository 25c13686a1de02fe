package polar

// TokenPayload is the response of the AccessLink token endpoint.
type TokenPayload struct {
	AccessToken string
	TokenType   string
	Scope       string
	ExpiresIn   int
	XUserID     int64
}

// Registration is the response of the AccessLink user registration call.
type Registration struct {
	PolarUserID      int64
	MemberID         string
	RegistrationDate string
}
