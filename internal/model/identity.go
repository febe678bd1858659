package model

// Identity is the signed-in user as reported by the identity provider.
type Identity struct {
	ID          string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}
