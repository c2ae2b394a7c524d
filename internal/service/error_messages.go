package service

// error_messages.go maps errors to user-facing messages with support codes.
//
// Codes by category:
//
//	TOK001  registration failed validation
//	TOK002  token not found
//	TOK003  token name already registered
//	CALC001 provider or calculation could not be resolved
//	CALC002 calculation rejected its parameters
//	DB001   database unreachable
//	DB002   database connection interrupted
//	DB003   operation timed out
//	REQ001  request cancelled
//	REQ002  malformed request
//	ERR000  anything else; check the logs for the technical error
//
// Typed and sentinel errors are matched first with errors.Is/As. Remaining
// errors are matched case-insensitively by substring; the first pattern
// wins, so specific patterns come before general ones.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/calctoken/internal/calculation"
	"github.com/JonMunkholm/calctoken/internal/store"
	"github.com/JonMunkholm/calctoken/internal/token"
)

// UserMessage is an error rendered for people rather than logs.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

var (
	msgInvalid = UserMessage{
		Message: "The token registration is invalid",
		Action:  "Fix the listed problems and submit again",
		Code:    "TOK001",
	}
	msgNotFound = UserMessage{
		Message: "Token not found",
		Action:  "Check the token name or ID",
		Code:    "TOK002",
	}
	msgDuplicate = UserMessage{
		Message: "A token with this name is already registered",
		Action:  "Choose a different name or update the existing token",
		Code:    "TOK003",
	}
	msgUnresolvable = UserMessage{
		Message: "The calculation could not be resolved",
		Action:  "Check the provider class name and calculation name against the provider list",
		Code:    "CALC001",
	}
	msgEvaluation = UserMessage{
		Message: "The calculation rejected its parameters",
		Action:  "Check that every required parameter is present and valid",
		Code:    "CALC002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgTimeout = UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "DB003",
	}
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Check the request body and path parameters",
			Code:    "REQ002",
		},
	},
	{pattern: "timeout", msg: msgTimeout},
	{pattern: "database is locked", msg: msgTimeout},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a user-facing message. It returns the zero
// UserMessage for nil and the ERR000 fallback when nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var invalid *token.InvalidError
	var resolution *calculation.ResolutionError
	switch {
	case errors.As(err, &invalid):
		for _, ve := range invalid.Errors {
			if ve.Code == token.CodeDuplicate {
				return msgDuplicate
			}
		}
		return msgInvalid
	case errors.Is(err, store.ErrDuplicateName):
		return msgDuplicate
	case errors.Is(err, store.ErrNotFound):
		return msgNotFound
	case errors.As(err, &resolution):
		return msgUnresolvable
	case errors.Is(err, ErrEvaluationFailed):
		return msgEvaluation
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	case errors.Is(err, context.Canceled):
		return msgCancelled
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than
// ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
