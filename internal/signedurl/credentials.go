package signedurl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Credential is a service account's signing identity. PrivateKey holds
// secret material and must never be logged.
type Credential struct {
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// CredentialProvider loads the current credential.
type CredentialProvider interface {
	Credential(ctx context.Context) (Credential, error)
}

// CredentialError reports a credential that could not be loaded or used.
type CredentialError struct {
	Reason string
	Path   string
	Err    error
}

func (e *CredentialError) Error() string {
	msg := "credential " + e.Reason
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// FileCredentialProvider reads a service account JSON key file on every
// call. Nothing is cached.
type FileCredentialProvider struct {
	Path string
}

// Credential implements CredentialProvider.
func (p FileCredentialProvider) Credential(ctx context.Context) (Credential, error) {
	if p.Path == "" {
		return Credential{}, &CredentialError{Reason: "file not configured"}
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return Credential{}, &CredentialError{Reason: "file unreadable", Path: p.Path, Err: err}
	}

	return ParseCredential(data, p.Path)
}

// ParseCredential decodes a service account JSON document. Literal "\n"
// sequences left in private_key are turned into newlines.
func ParseCredential(data []byte, source string) (Credential, error) {
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, &CredentialError{Reason: "JSON invalid", Path: source, Err: err}
	}

	cred.PrivateKey = strings.ReplaceAll(cred.PrivateKey, `\n`, "\n")

	switch {
	case cred.PrivateKey == "":
		return Credential{}, &CredentialError{Reason: "missing field", Path: source, Err: fmt.Errorf("private_key is empty")}
	case cred.ClientEmail == "":
		return Credential{}, &CredentialError{Reason: "missing field", Path: source, Err: fmt.Errorf("client_email is empty")}
	}

	return cred, nil
}

// StaticCredentialProvider always returns the same credential.
type StaticCredentialProvider struct {
	Cred Credential
}

// Credential implements CredentialProvider.
func (p StaticCredentialProvider) Credential(ctx context.Context) (Credential, error) {
	return p.Cred, nil
}
