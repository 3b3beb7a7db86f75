// validation.go - Configuration validation.
//
// Collects every problem before failing so a misconfigured deployment is
// fixed in one pass.
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validator accumulates validation errors.
type Validator struct {
	errors []ValidationError
}

// AddError records a validation error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Err folds the collected errors into one, or returns nil.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d error(s):", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, err.Error())
	}
	return fmt.Errorf("%s", sb.String())
}

// Required flags an empty value.
func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "required")
	}
}

// Enum flags a value outside allowed.
func (v *Validator) Enum(field, value string, allowed ...string) {
	for _, opt := range allowed {
		if strings.EqualFold(value, opt) {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// Port flags a value outside 1-65535.
func (v *Validator) Port(field string, port int) {
	if port < 1 || port > 65535 {
		v.AddError(field, "port must be between 1 and 65535")
	}
}

// NonNegative flags a negative number.
func (v *Validator) NonNegative(field string, n int64) {
	if n < 0 {
		v.AddError(field, "must not be negative")
	}
}

// Endpoint accepts host:port or an http(s) URL without a path.
func (v *Validator) Endpoint(field, value string) {
	if value == "" || !strings.Contains(value, "://") {
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		v.AddError(field, "URL must use http or https scheme")
	}
}

// Validate checks c for internal consistency.
func (c Config) Validate() error {
	var v Validator

	v.Port("port", c.Port)
	v.NonNegative("max_upload_bytes", c.MaxUploadBytes)
	v.NonNegative("rate_limit", int64(c.RateLimit))
	if c.ShutdownTimeout <= 0 {
		v.AddError("shutdown_timeout", "must be positive")
	}

	v.Enum("log.level", c.Log.Level, "debug", "info", "warn", "warning", "error")
	v.Enum("log.format", c.Log.Format, "console", "json")
	if c.Log.BufferSize <= 0 {
		v.AddError("log.buffer_size", "must be positive")
	}

	if c.Cleanup.Interval < 0 {
		v.AddError("cleanup.interval", "must not be negative")
	}
	if c.Cleanup.Interval > 0 && c.Cleanup.MaxAge <= 0 {
		v.AddError("cleanup.max_age", "must be positive when cleanup is enabled")
	}

	v.Enum("storage.backend", c.Storage.Backend, BackendDisk, BackendS3)
	switch strings.ToLower(c.Storage.Backend) {
	case BackendDisk:
		v.Required("upload_dir", c.UploadDir)
	case BackendS3:
		v.Required("storage.s3.endpoint", c.Storage.S3.Endpoint)
		v.Required("storage.s3.access_key", c.Storage.S3.AccessKey)
		v.Required("storage.s3.secret_key", c.Storage.S3.SecretKey)
		v.Required("storage.s3.bucket", c.Storage.S3.Bucket)
		v.Endpoint("storage.s3.endpoint", c.Storage.S3.Endpoint)
	}

	return v.Err()
}
