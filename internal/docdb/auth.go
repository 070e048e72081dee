package docdb

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderDate          = "x-ms-date"
	HeaderVersion       = "x-ms-version"
	HeaderRequestCharge = "x-ms-request-charge"
	HeaderActivityID    = "x-ms-activity-id"
	HeaderContinuation  = "x-ms-continuation"
	HeaderMaxItemCount  = "x-ms-max-item-count"
	HeaderItemCount     = "x-ms-item-count"
	HeaderPartitionKey  = "x-ms-documentdb-partitionkey"
	HeaderIsUpsert      = "x-ms-documentdb-is-upsert"
	HeaderIsQuery       = "x-ms-documentdb-isquery"

	APIVersion = "2018-12-31"

	// maxClockSkew bounds the age of a signed request date.
	maxClockSkew = 15 * time.Minute
)

var ErrUnauthorized = errors.New("invalid authorization token")

// ResourceFromPath splits a request path into the resource type and the
// resource link that are signed. For a feed path such as dbs/a/colls the
// link is the parent resource; for an item path the link is the item itself.
func ResourceFromPath(path string) (resourceType, resourceLink string) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", ""
	}
	segs := strings.Split(path, "/")
	if len(segs)%2 == 1 {
		return segs[len(segs)-1], strings.Join(segs[:len(segs)-1], "/")
	}
	return segs[len(segs)-2], path
}

// AuthorizationToken signs a request with the account master key.
func AuthorizationToken(verb, resourceType, resourceLink, date, masterKey string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return "", fmt.Errorf("master key is not base64: %w", err)
	}
	payload := strings.ToLower(verb) + "\n" +
		strings.ToLower(resourceType) + "\n" +
		resourceLink + "\n" +
		strings.ToLower(date) + "\n" +
		"" + "\n"

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return url.QueryEscape("type=master&ver=1.0&sig=" + sig), nil
}

// SignRequest sets the date, version and authorization headers on req.
func SignRequest(req *http.Request, masterKey string, now time.Time) error {
	date := now.UTC().Format(http.TimeFormat)
	resourceType, resourceLink := ResourceFromPath(req.URL.Path)
	token, err := AuthorizationToken(req.Method, resourceType, resourceLink, date, masterKey)
	if err != nil {
		return err
	}
	req.Header.Set(HeaderDate, date)
	req.Header.Set(HeaderVersion, APIVersion)
	req.Header.Set(HeaderAuthorization, token)
	return nil
}

// VerifyRequest checks the authorization header of an incoming request.
func VerifyRequest(req *http.Request, masterKey string, now time.Time) error {
	date := req.Header.Get(HeaderDate)
	if date == "" {
		return fmt.Errorf("%w: missing %s header", ErrUnauthorized, HeaderDate)
	}
	signed, err := http.ParseTime(date)
	if err != nil {
		return fmt.Errorf("%w: bad date: %v", ErrUnauthorized, err)
	}
	if d := now.Sub(signed); d > maxClockSkew || d < -maxClockSkew {
		return fmt.Errorf("%w: request date out of range", ErrUnauthorized)
	}
	got := req.Header.Get(HeaderAuthorization)
	if got == "" {
		return fmt.Errorf("%w: missing authorization header", ErrUnauthorized)
	}
	resourceType, resourceLink := ResourceFromPath(req.URL.Path)
	want, err := AuthorizationToken(req.Method, resourceType, resourceLink, date, masterKey)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrUnauthorized
	}
	return nil
}
