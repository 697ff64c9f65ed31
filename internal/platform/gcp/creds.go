package gcp

import (
	"strings"

	"google.golang.org/api/option"
)

// CredentialOptions accepts either inline service-account JSON or a file path.
// Empty falls back to application default credentials.
func CredentialOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
