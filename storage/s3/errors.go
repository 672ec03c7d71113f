package s3

import (
	"errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"github.com/kbukum/mediafs/storage"
)

func apiCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func httpStatus(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

func isNotFound(err error) bool {
	switch apiCode(err) {
	case "NoSuchKey", "NotFound":
		return true
	}
	return httpStatus(err) == http.StatusNotFound
}

func isPreconditionFailed(err error) bool {
	switch apiCode(err) {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	switch httpStatus(err) {
	case http.StatusPreconditionFailed, http.StatusConflict:
		return true
	}
	return false
}

// classify tags S3 API errors with a storage reason. Transport errors are
// left to the generic classifier.
func classify(err error) error {
	reason := ""
	switch apiCode(err) {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		reason = storage.ReasonAuth
	case "NoSuchBucket", "NoSuchKey", "NotFound":
		reason = storage.ReasonNotFound
	case "SlowDown", "Throttling", "RequestLimitExceeded":
		reason = storage.ReasonRateLimit
	case "RequestTimeout":
		reason = storage.ReasonTimeout
	case "ServiceUnavailable", "InternalError":
		reason = storage.ReasonUnavailable
	case "":
		switch status := httpStatus(err); {
		case status == http.StatusForbidden || status == http.StatusUnauthorized:
			reason = storage.ReasonAuth
		case status == http.StatusNotFound:
			reason = storage.ReasonNotFound
		case status >= 500:
			reason = storage.ReasonUnavailable
		case status != 0:
			reason = storage.ReasonRemote
		}
	default:
		reason = storage.ReasonRemote
	}
	if reason == "" {
		return err
	}
	return &storage.Error{Reason: reason, Err: err}
}
