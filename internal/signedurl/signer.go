// Package signedurl mints time-limited V2 signed URLs for Google Cloud
// Storage objects using a service account's RSA key.
package signedurl

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// BaseURL is the storage endpoint signed URLs point at.
const BaseURL = "https://storage.googleapis.com"

var (
	// ErrInvalidResource is returned when bucket or object is empty.
	ErrInvalidResource = errors.New("bucket and object are required")
	// ErrUnknownOperation is returned for an Operation other than Write or Read.
	ErrUnknownOperation = errors.New("unknown operation")
)

// Operation is the access a signed URL grants.
type Operation int

const (
	// Write allows a PUT of a JPEG image for 15 minutes.
	Write Operation = iota + 1
	// Read allows a GET for 10 minutes.
	Read
)

func (o Operation) String() string {
	switch o {
	case Write:
		return "write"
	case Read:
		return "read"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// Method is the HTTP verb the URL is valid for.
func (o Operation) Method() string {
	switch o {
	case Write:
		return "PUT"
	case Read:
		return "GET"
	default:
		return ""
	}
}

// ContentType must match the Content-Type header sent with the request.
// It is empty for reads.
func (o Operation) ContentType() string {
	if o == Write {
		return "image/jpeg"
	}
	return ""
}

// TTL is how long the URL stays valid.
func (o Operation) TTL() time.Duration {
	switch o {
	case Write:
		return 900 * time.Second
	case Read:
		return 600 * time.Second
	default:
		return 0
	}
}

func (o Operation) valid() bool {
	return o == Write || o == Read
}

// SigningRequest is the signed portion of a URL.
type SigningRequest struct {
	Operation Operation
	Bucket    string
	Object    string
	Expires   int64
}

// Resource is the canonical "/bucket/object" path.
func (r SigningRequest) Resource() string {
	return "/" + r.Bucket + "/" + r.Object
}

// CanonicalString is the exact byte sequence that gets signed:
// verb, an always empty Content-MD5, content type, expiry and resource,
// separated by newlines.
func (r SigningRequest) CanonicalString() string {
	return fmt.Sprintf("%s\n\n%s\n%d\n%s", r.Operation.Method(), r.Operation.ContentType(), r.Expires, r.Resource())
}

// SigningError reports a failure to produce a signature.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return "failed to sign request: " + e.Err.Error()
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Signature is a base64 encoded RSA-SHA256 signature and the identity that
// produced it.
type Signature struct {
	AccessID string
	Value    string
}

// Signer builds signed URLs. The credential is loaded afresh for every call.
type Signer struct {
	Credentials CredentialProvider
	// Now defaults to time.Now.
	Now func() time.Time
}

// New returns a Signer backed by provider.
func New(provider CredentialProvider) *Signer {
	return &Signer{Credentials: provider, Now: time.Now}
}

// UploadURL returns a URL allowing a JPEG PUT to bucket/object.
func (s *Signer) UploadURL(ctx context.Context, bucket, object string) (string, error) {
	return s.SignedURL(ctx, Write, bucket, object)
}

// DownloadURL returns a URL allowing a GET of bucket/object.
func (s *Signer) DownloadURL(ctx context.Context, bucket, object string) (string, error) {
	return s.SignedURL(ctx, Read, bucket, object)
}

// SignedURL returns a URL granting op on bucket/object until now+op.TTL().
// Invalid input is rejected by Sign before any credential is read.
func (s *Signer) SignedURL(ctx context.Context, op Operation, bucket, object string) (string, error) {
	req := SigningRequest{
		Operation: op,
		Bucket:    bucket,
		Object:    object,
		Expires:   s.now().Add(op.TTL()).Unix(),
	}

	sig, err := s.Sign(ctx, req)
	if err != nil {
		return "", err
	}

	slog.Debug("Signed URL", "operation", op, "bucket", bucket, "object", object, "expires", req.Expires)

	return fmt.Sprintf("%s/%s/%s?GoogleAccessId=%s&Expires=%d&Signature=%s",
		BaseURL, bucket, object,
		url.QueryEscape(sig.AccessID), req.Expires, url.QueryEscape(sig.Value)), nil
}

// Validate rejects unknown operations and empty resource components.
func (r SigningRequest) Validate() error {
	if !r.Operation.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownOperation, int(r.Operation))
	}
	if r.Bucket == "" || r.Object == "" {
		return ErrInvalidResource
	}
	return nil
}

// Sign loads the credential and signs the canonical string of req.
func (s *Signer) Sign(ctx context.Context, req SigningRequest) (Signature, error) {
	if err := req.Validate(); err != nil {
		return Signature{}, err
	}
	if s.Credentials == nil {
		return Signature{}, &CredentialError{Reason: "provider not configured"}
	}
	cred, err := s.Credentials.Credential(ctx)
	if err != nil {
		return Signature{}, err
	}

	key, err := parsePrivateKey(cred.PrivateKey)
	if err != nil {
		return Signature{}, err
	}

	digest := sha256.Sum256([]byte(req.CanonicalString()))
	raw, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return Signature{}, &SigningError{Err: err}
	}

	return Signature{
		AccessID: cred.ClientEmail,
		Value:    base64.StdEncoding.EncodeToString(raw),
	}, nil
}

func (s *Signer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// parsePrivateKey decodes a PEM encoded PKCS#8 RSA key.
func parsePrivateKey(pemKey string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemKey))
	if block == nil {
		return nil, &CredentialError{Reason: "key invalid", Err: errors.New("no PEM block found")}
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, &CredentialError{Reason: "key invalid", Err: err}
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, &CredentialError{Reason: "key invalid", Err: fmt.Errorf("expected RSA key, got %T", parsed)}
	}
	return key, nil
}
