package gateway

import (
	"embed"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Body schemas, compiled once at package init.
var (
	functionCallSchema         = mustSchema("function_call.json")
	functionCallResponseSchema = mustSchema("function_call_response.json")
	humanContactSchema         = mustSchema("human_contact.json")
	humanContactResponseSchema = mustSchema("human_contact_response.json")
	escalationSchema           = mustSchema("escalation.json")
)

func mustSchema(name string) *gojsonschema.Schema {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("gateway: read schema %s: %v", name, err))
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(fmt.Sprintf("gateway: compile schema %s: %v", name, err))
	}
	return s
}

// validationError carries field-level details for a 400 response.
type validationError struct {
	msg     string
	details []FieldError
}

func (e *validationError) Error() string { return e.msg }

// readBody reads the request body and validates it against schema.
func readBody(r *http.Request, schema *gojsonschema.Schema) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &validationError{msg: "failed to read request body"}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, &validationError{msg: "request body is required"}
	}

	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, &validationError{msg: "request body is not valid JSON"}
	}
	if res.Valid() {
		return body, nil
	}

	details := make([]FieldError, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		details = append(details, FieldError{Field: fieldPath(e), Message: e.Description()})
	}
	return nil, &validationError{msg: "request body failed validation", details: details}
}

// fieldPath names the offending field. Required-property errors are
// reported on the missing property rather than on its parent.
func fieldPath(e gojsonschema.ResultError) string {
	field := e.Field()
	if e.Type() == "required" {
		if p, ok := e.Details()["property"].(string); ok {
			if field == "(root)" {
				return p
			}
			return field + "." + p
		}
	}
	return field
}
