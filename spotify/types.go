package spotify

// TokenResponse is the Spotify accounts service's token endpoint response
// (RFC 6749 §5.1). AccessToken and ExpiresIn are required; a missing
// RefreshToken on refresh means the previous one stays valid.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Profile is the subset of GET /v1/me used for the owner token's metadata.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// errorResponse is the RFC 6749 §5.2 error body.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
