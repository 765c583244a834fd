package api

import "net/http"

// Stable machine-readable error codes. Clients match on the code, never on
// the message text.
const (
	CodeVideoNotFound        = "VIDEO_NOT_FOUND"
	CodeVideoNotValid        = "VIDEO_NOT_VALID"
	CodeProfileNotFound      = "PROFILE_NOT_FOUND"
	CodeProfileNotValid      = "PROFILE_NOT_VALID"
	CodeRenditionNotFound    = "RENDITION_NOT_FOUND"
	CodeSegmentNotFound      = "SEGMENT_NOT_FOUND"
	CodeSubtitleNotFound     = "SUBTITLE_NOT_FOUND"
	CodeSubtitleNotValid     = "SUBTITLE_NOT_VALID"
	CodeLanguageCodeNotValid = "LANGUAGE_CODE_NOT_VALID"
	CodePreviewNotFound      = "PREVIEW_NOT_FOUND"
	CodeTimelineNotFound     = "TIMELINE_NOT_FOUND"
	CodeOutputNotValid       = "OUTPUT_NOT_VALID"
	CodeInvalidRange         = "INVALID_RANGE"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeUpstreamFailed       = "UPSTREAM_FAILED"
)

var errorStatus = map[string]int{
	CodeVideoNotFound:        http.StatusNotFound,
	CodeVideoNotValid:        http.StatusBadRequest,
	CodeProfileNotFound:      http.StatusNotFound,
	CodeProfileNotValid:      http.StatusBadRequest,
	CodeRenditionNotFound:    http.StatusNotFound,
	CodeSegmentNotFound:      http.StatusNotFound,
	CodeSubtitleNotFound:     http.StatusNotFound,
	CodeSubtitleNotValid:     http.StatusBadRequest,
	CodeLanguageCodeNotValid: http.StatusBadRequest,
	CodePreviewNotFound:      http.StatusNotFound,
	CodeTimelineNotFound:     http.StatusNotFound,
	CodeOutputNotValid:       http.StatusBadRequest,
	CodeInvalidRange:         http.StatusRequestedRangeNotSatisfiable,
	CodeInternalError:        http.StatusInternalServerError,
	CodeUpstreamFailed:       http.StatusBadGateway,
}

func statusForCode(code string) int {
	if status, ok := errorStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
