package orgac

import (
	"errors"
	"net/http"
)

// Code identifies a single access-control failure mode. Codes are part of
// the API surface: clients match on them, and the HTTP layer maps each one
// to a fixed status.
type Code string

const (
	CodeMissingACInstance Code = "MISSING_AC_INSTANCE"

	CodeMustBeInOrganizationToCreateRole Code = "YOU_MUST_BE_IN_AN_ORGANIZATION_TO_CREATE_A_ROLE"
	CodeNotAMemberOfOrganization         Code = "YOU_ARE_NOT_A_MEMBER_OF_THIS_ORGANIZATION"
	CodeNoActiveOrganization             Code = "NO_ACTIVE_ORGANIZATION"

	CodeNotAllowedToCreateRole Code = "YOU_ARE_NOT_ALLOWED_TO_CREATE_A_ROLE"
	CodeNotAllowedToUpdateRole Code = "YOU_ARE_NOT_ALLOWED_TO_UPDATE_A_ROLE"
	CodeNotAllowedToDeleteRole Code = "YOU_ARE_NOT_ALLOWED_TO_DELETE_A_ROLE"
	CodeNotAllowedToReadRole   Code = "YOU_ARE_NOT_ALLOWED_TO_READ_A_ROLE"
	CodeNotAllowedToListRoles  Code = "YOU_ARE_NOT_ALLOWED_TO_LIST_ROLES"

	CodeTooManyRoles             Code = "TOO_MANY_ROLES"
	CodeInvalidRoleName          Code = "INVALID_ROLE_NAME"
	CodeRoleNameAlreadyTaken     Code = "ROLE_NAME_IS_ALREADY_TAKEN"
	CodeRoleNotFound             Code = "ROLE_NOT_FOUND"
	CodeCannotDeletePredefined   Code = "CANNOT_DELETE_A_PRE_DEFINED_ROLE"
	CodeInvalidResource          Code = "INVALID_RESOURCE"
	CodeInvalidPermission        Code = "INVALID_PERMISSION"

	CodeNotAllowedToCreateResource Code = "YOU_ARE_NOT_ALLOWED_TO_CREATE_A_RESOURCE"
	CodeNotAllowedToUpdateResource Code = "YOU_ARE_NOT_ALLOWED_TO_UPDATE_A_RESOURCE"
	CodeNotAllowedToDeleteResource Code = "YOU_ARE_NOT_ALLOWED_TO_DELETE_A_RESOURCE"
	CodeNotAllowedToReadResource   Code = "YOU_ARE_NOT_ALLOWED_TO_READ_A_RESOURCE"

	CodeTooManyResources         Code = "TOO_MANY_RESOURCES"
	CodeResourceNameAlreadyTaken Code = "RESOURCE_NAME_IS_ALREADY_TAKEN"
	CodeInvalidResourceName      Code = "INVALID_RESOURCE_NAME"
	CodeInvalidPermissionsArray  Code = "INVALID_PERMISSIONS_ARRAY"
	CodeResourceNameReserved     Code = "RESOURCE_NAME_IS_RESERVED"
	CodeResourceNotFound         Code = "RESOURCE_NOT_FOUND"
	CodeResourceInUse            Code = "RESOURCE_IS_IN_USE"
)

// Error is a coded access-control error with a fixed HTTP status.
type Error struct {
	Code    Code
	Status  int
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

type errorDef struct {
	status  int
	message string
}

var errorDefs = map[Code]errorDef{
	CodeMissingACInstance: {http.StatusNotImplemented,
		"dynamic access control is not configured for this instance"},

	CodeMustBeInOrganizationToCreateRole: {http.StatusForbidden,
		"you must be in an organization to create a role"},
	CodeNotAMemberOfOrganization: {http.StatusForbidden,
		"you are not a member of this organization"},
	CodeNoActiveOrganization: {http.StatusBadRequest,
		"no active organization is set on the session"},

	CodeNotAllowedToCreateRole: {http.StatusForbidden, "you are not allowed to create a role"},
	CodeNotAllowedToUpdateRole: {http.StatusForbidden, "you are not allowed to update a role"},
	CodeNotAllowedToDeleteRole: {http.StatusForbidden, "you are not allowed to delete a role"},
	CodeNotAllowedToReadRole:   {http.StatusForbidden, "you are not allowed to read a role"},
	CodeNotAllowedToListRoles:  {http.StatusForbidden, "you are not allowed to list roles"},

	CodeTooManyRoles:           {http.StatusBadRequest, "the organization has reached its role limit"},
	CodeInvalidRoleName:        {http.StatusBadRequest, "role names must be 1-50 non-blank characters"},
	CodeRoleNameAlreadyTaken:   {http.StatusBadRequest, "a role with this name already exists"},
	CodeRoleNotFound:           {http.StatusBadRequest, "role not found"},
	CodeCannotDeletePredefined: {http.StatusBadRequest, "pre-defined roles cannot be deleted"},
	CodeInvalidResource:        {http.StatusBadRequest, "the role references unknown resources"},
	CodeInvalidPermission:      {http.StatusBadRequest, "the role grants a permission you do not hold"},

	CodeNotAllowedToCreateResource: {http.StatusForbidden, "you are not allowed to create a resource"},
	CodeNotAllowedToUpdateResource: {http.StatusForbidden, "you are not allowed to update a resource"},
	CodeNotAllowedToDeleteResource: {http.StatusForbidden, "you are not allowed to delete a resource"},
	CodeNotAllowedToReadResource:   {http.StatusForbidden, "you are not allowed to read a resource"},

	CodeTooManyResources:         {http.StatusBadRequest, "the organization has reached its resource limit"},
	CodeResourceNameAlreadyTaken: {http.StatusBadRequest, "a resource with this name already exists"},
	CodeInvalidResourceName:      {http.StatusBadRequest, "resource names must be 1-50 characters of [a-zA-Z0-9_]"},
	CodeInvalidPermissionsArray:  {http.StatusBadRequest, "permissions must be a non-empty array of strings"},
	CodeResourceNameReserved:     {http.StatusBadRequest, "this resource name is reserved"},
	CodeResourceNotFound:         {http.StatusBadRequest, "resource not found"},
	CodeResourceInUse:            {http.StatusBadRequest, "the resource is referenced by one or more roles"},
}

// E builds the canonical error for a code.
func E(code Code) *Error {
	def, ok := errorDefs[code]
	if !ok {
		return &Error{Code: code, Status: http.StatusInternalServerError, Message: string(code)}
	}
	return &Error{Code: code, Status: def.status, Message: def.message}
}

// Ef builds the error for a code with a more specific message. The code and
// status are unchanged so clients can still match on them.
func Ef(code Code, message string) *Error {
	e := E(code)
	e.Message = message
	return e
}

// IsCode reports whether err is (or wraps) an access-control error with the
// given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// AsError unwraps err into an *Error if possible.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
