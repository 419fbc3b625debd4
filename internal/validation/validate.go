// Package validation provides centralized input validation logic.
// This includes bucket name validation and object key validation.
//
// All keys are validated before they are sent to a backend, so a bad key is
// reported the same way regardless of which SDK would have rejected it.
package validation

import (
	"strings"
	"unicode"

	"github.com/qinguoyi/omnistore/objstore/errors"
)

// MaxKeyLength is the longest object key accepted by every bundled backend.
const MaxKeyLength = 1024

// BucketRules describes the naming constraints of one backend.
type BucketRules struct {
	MinLength       int
	MaxLength       int
	AllowDots       bool
	AllowUnderscore bool
}

// Bucket naming rules of the bundled backends.
var (
	// S3Rules follow the DNS-compliant Amazon S3 naming rules.
	S3Rules = BucketRules{MinLength: 3, MaxLength: 63, AllowDots: true}

	// OSSRules follow Alibaba Cloud OSS: lowercase letters, digits and hyphens only.
	OSSRules = BucketRules{MinLength: 3, MaxLength: 63}

	// GCSRules follow Google Cloud Storage. Dotted names longer than 63
	// characters are not supported.
	GCSRules = BucketRules{MinLength: 3, MaxLength: 63, AllowDots: true, AllowUnderscore: true}
)

// ValidateBucketName validates a bucket name against the given rules.
// Returns ErrInvalidBucketName if the bucket name is invalid.
func ValidateBucketName(bucket string, rules BucketRules) error {
	if bucket == "" {
		return bucketError(bucket, "bucket name cannot be empty")
	}

	if len(bucket) < rules.MinLength || len(bucket) > rules.MaxLength {
		return bucketError(bucket, "bucket name has an invalid length")
	}

	for _, char := range bucket {
		if !isValidBucketChar(char, rules) {
			return bucketError(bucket, "bucket name contains an invalid character")
		}
	}

	first, last := bucket[0], bucket[len(bucket)-1]
	if !isAlphaNum(first) || !isAlphaNum(last) {
		return bucketError(bucket, "bucket name must start and end with a letter or number")
	}

	if rules.AllowDots {
		if strings.Contains(bucket, "..") {
			return bucketError(bucket, "bucket name cannot contain two adjacent periods")
		}
		if isIPAddress(bucket) {
			return bucketError(bucket, "bucket name cannot be formatted as an IP address")
		}
	}

	return nil
}

// ValidateObjectKey validates that an object key can be stored by every bundled backend.
// This includes rejecting path traversal segments and control characters.
func ValidateObjectKey(key string) error {
	if key == "" {
		return keyError(key, "object key cannot be empty")
	}

	if len(key) > MaxKeyLength {
		return keyError(key, "object key cannot exceed 1024 bytes")
	}

	if strings.HasPrefix(key, "/") || strings.HasPrefix(key, "\\") {
		return keyError(key, "object key cannot start with a slash")
	}

	if hasPathTraversal(key) {
		return keyError(key, "object key cannot contain path traversal segments")
	}

	if hasControlCharacters(key) {
		return keyError(key, "object key cannot contain control characters")
	}

	return nil
}

// ValidatePrefix validates a listing or directory prefix. The empty prefix
// (bucket root) is valid.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	return ValidateObjectKey(prefix)
}

func bucketError(bucket, message string) error {
	return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
		WithBackend("", bucket).
		WithMessage(message)
}

func keyError(key, message string) error {
	return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
		WithKey(key).
		WithMessage(message)
}

// isValidBucketChar checks if a character is valid in a bucket name
func isValidBucketChar(char rune, rules BucketRules) bool {
	switch {
	case char >= '0' && char <= '9', char >= 'a' && char <= 'z', char == '-':
		return true
	case char == '.':
		return rules.AllowDots
	case char == '_':
		return rules.AllowUnderscore
	}
	return false
}

func isAlphaNum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')
}

// isIPAddress checks if a string is formatted as an IP address
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}

	for _, part := range parts {
		if len(part) == 0 {
			return true
		}
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}

	return true
}

// hasPathTraversal reports whether any slash-separated segment is "." or "..".
func hasPathTraversal(key string) bool {
	for _, segment := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == "." || segment == ".." {
			return true
		}
	}
	return false
}

// hasControlCharacters checks for control characters in the key
func hasControlCharacters(key string) bool {
	for _, char := range key {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}
