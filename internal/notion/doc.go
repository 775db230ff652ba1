// Package notion provides a typed client for the subset of the Notion REST
// API that postline needs: database queries, page retrieve/create/update and
// the workspace user list.
//
// Property values are modelled as a closed tagged union (PropertyValue keyed
// by PropertyType). Decoding is tolerant: an unknown type or a payload of the
// wrong shape leaves the value at its zero state instead of failing the page.
// Encoding emits exactly the payload for the value's type, including an
// explicit null where Notion uses null to clear a property.
//
// The client performs no automatic retry. Failures come back as *APIError
// (non-2xx responses) or wrapped transport errors.
package notion
