// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretInvalidInput   Code = "secret.input.invalid_input"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretResolveFailure Code = "secret.resolve.failure"
	CodeSecretKeyringFailure Code = "secret.keyring.failure"

	CodeRegistryOperationNotFound Code = "registry.operation.not_found"
	CodeRegistryOperationConflict Code = "registry.operation.conflict"
	CodeRegistryDefinitionInvalid Code = "registry.definition.invalid"
	CodeRegistryFrozen            Code = "registry.register.frozen"
	CodeRegistryLoadFailure       Code = "registry.load.failure"

	CodeWarehouseConnectFailure  Code = "warehouse.connect.failure"
	CodeWarehouseQueryFailure    Code = "warehouse.query.failure"
	CodeWarehouseHandleClosed    Code = "warehouse.handle.closed"
	CodeWarehouseDriverNotFound  Code = "warehouse.driver.not_found"
	CodeWarehouseIdentifierInput Code = "warehouse.identifier.invalid_input"

	CodeVectorSessionExpired   Code = "vector.session.expired"
	CodeVectorStoreUnavailable Code = "vector.store.unavailable"
	CodeVectorUpstreamFailure  Code = "vector.upstream.failure"
	CodeVectorRetryFailure     Code = "vector.retry.failure"
	CodeVectorRequestInvalid   Code = "vector.request.invalid"
	CodeVectorBackendNotFound  Code = "vector.backend.not_found"

	CodeEmbeddingRequestInvalid  Code = "embedding.request.invalid"
	CodeEmbeddingUpstreamFailure Code = "embedding.upstream.failure"

	CodeDispatchHandlerFailure Code = "dispatch.handler.failure"
	CodeDispatchInvalidInput   Code = "dispatch.arguments.invalid_input"
	CodeDispatchTimeout        Code = "dispatch.handler.timeout"

	CodeLifecycleTransitionInvalid Code = "lifecycle.transition.invalid"
	CodeLifecycleMarkerFailure     Code = "lifecycle.marker.failure"

	CodePolicyPatternInvalid  Code = "policy.pattern.invalid"
	CodePolicyModeInvalid     Code = "policy.mode.invalid"
	CodePolicyOperationDenied Code = "policy.operation.denied"
	CodePolicyResultBlocked   Code = "policy.result.blocked"

	CodeRPCParseInvalidFormat Code = "rpc.parse.invalid_format"
	CodeRPCMethodNotFound     Code = "rpc.method.not_found"
	CodeRPCParamsInvalid      Code = "rpc.params.invalid_input"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"
	CodeServerRateLimited     Code = "server.request.budget_exceeded"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldOperation(value string) Attr {
	return Field("operation", value)
}

func FieldRequestID(value string) Attr {
	return Field("request_id", value)
}

func FieldDriver(value string) Attr {
	return Field("driver", value)
}

func FieldFile(value string) Attr {
	return Field("file", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsDenied(err error) bool {
	r := reason(CodeOf(err))
	return r == "denied" || r == "blocked"
}

func IsUnavailable(err error) bool {
	r := reason(CodeOf(err))
	return r == "unavailable" || r == "closed"
}

func IsBudgetExceeded(err error) bool {
	r := reason(CodeOf(err))
	return r == "exceeded" || r == "budget_exceeded"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

func HTTPStatus(err error) int {
	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsDenied(err):
		return http.StatusForbidden
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsBudgetExceeded(err):
		return http.StatusTooManyRequests
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(CodeServerInternalFailure).Wrap(joined)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
