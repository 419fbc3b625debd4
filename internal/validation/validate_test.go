package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qinguoyi/omnistore/objstore/errors"
)

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name      string
		bucket    string
		rules     BucketRules
		wantError bool
		errMsg    string
	}{
		// Valid bucket names
		{"valid_simple", "my-bucket", S3Rules, false, ""},
		{"valid_with_numbers", "my-bucket123", OSSRules, false, ""},
		{"valid_starts_with_number", "1bucket", OSSRules, false, ""},
		{"valid_with_dots", "my.bucket", S3Rules, false, ""},
		{"valid_underscore_gcs", "my_bucket", GCSRules, false, ""},
		{"valid_min_length", "abc", OSSRules, false, ""},
		{"valid_max_length", strings.Repeat("a", 63), S3Rules, false, ""},

		// Invalid bucket names
		{"empty", "", S3Rules, true, "bucket name cannot be empty"},
		{"too_short", "ab", S3Rules, true, "bucket name has an invalid length"},
		{"too_long", strings.Repeat("a", 64), OSSRules, true, "bucket name has an invalid length"},
		{"starts_with_hyphen", "-bucket", OSSRules, true, "must start and end with a letter or number"},
		{"ends_with_hyphen", "bucket-", OSSRules, true, "must start and end with a letter or number"},
		{"ends_with_dot", "bucket.", S3Rules, true, "must start and end with a letter or number"},
		{"dots_on_oss", "my.bucket", OSSRules, true, "bucket name contains an invalid character"},
		{"underscore_on_s3", "my_bucket", S3Rules, true, "bucket name contains an invalid character"},
		{"contains_uppercase", "MyBucket", S3Rules, true, "bucket name contains an invalid character"},
		{"contains_space", "my bucket", OSSRules, true, "bucket name contains an invalid character"},
		{"ip_address", "192.168.1.1", S3Rules, true, "cannot be formatted as an IP address"},
		{"double_dots", "my..bucket", S3Rules, true, "cannot contain two adjacent periods"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket, tt.rules)
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.ErrorIs(t, err, errors.ErrInvalidBucketName)
			assert.True(t, errors.IsInvalidInput(err))
		})
	}
}

func TestValidateObjectKey(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		wantError bool
		errMsg    string
	}{
		// Valid object keys
		{"valid_simple", "my-file.txt", false, ""},
		{"valid_with_path", "folder/subfolder/file.txt", false, ""},
		{"valid_dir_marker", "folder/subfolder/", false, ""},
		{"valid_unicode", "файл.txt", false, ""},
		{"valid_double_dot_in_name", "archive..tar", false, ""},
		{"valid_spaces", "file with spaces.txt", false, ""},
		{"valid_max_length", strings.Repeat("a", 1024), false, ""},

		// Invalid object keys
		{"empty", "", true, "object key cannot be empty"},
		{"too_long", strings.Repeat("a", 1025), true, "object key cannot exceed 1024 bytes"},
		{"absolute", "/etc/passwd", true, "object key cannot start with a slash"},
		{"backslash_absolute", "\\share\\file", true, "object key cannot start with a slash"},
		{"path_traversal_dot_dot", "../secret.txt", true, "path traversal segments"},
		{"path_traversal_nested", "folder/../../secret.txt", true, "path traversal segments"},
		{"path_traversal_dot", "folder/./file.txt", true, "path traversal segments"},
		{"control_characters", "file\x00with\x01null.txt", true, "control characters"},
		{"newline", "file\nwith\nnewlines.txt", true, "control characters"},
		{"tab", "file\twith\ttabs.txt", true, "control characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateObjectKey(tt.key)
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.ErrorIs(t, err, errors.ErrInvalidObjectKey)
		})
	}
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, ValidatePrefix(""))
	assert.NoError(t, ValidatePrefix("logs/"))
	assert.Error(t, ValidatePrefix("../logs/"))
}

func TestIsIPAddress(t *testing.T) {
	assert.True(t, isIPAddress("10.0.0.1"))
	assert.False(t, isIPAddress("10.0.0"))
	assert.False(t, isIPAddress("my.bucket.name.x"))
	assert.False(t, isIPAddress("300.1.1.1"))
}
