package openapi

import "maps"

// NewComponents creates Components with the shared page request schema and
// the error responses every handler can return.
func NewComponents() *Components {
	return &Components{
		Schemas: map[string]*Schema{
			"PageRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"page":      {Type: "integer", Description: "Page number (1-indexed)", Example: 1},
					"page_size": {Type: "integer", Description: "Results per page", Example: 20},
					"search":    {Type: "string", Description: "Search query"},
					"sort":      {Type: "string", Description: "Comma-separated sort fields. Prefix with - for descending. Example: -created_at"},
				},
			},
			"Error": {
				Type:       "object",
				Properties: map[string]*Schema{"error": {Type: "string", Description: "Error message"}},
				Required:   []string{"error"},
			},
		},
		Responses: map[string]*Response{
			"BadRequest":      ResponseJSON("Invalid request", "Error"),
			"NotFound":        ResponseJSON("Resource not found", "Error"),
			"Conflict":        ResponseJSON("Resource conflict", "Error"),
			"PayloadTooLarge": ResponseJSON("Request body exceeds the configured limit", "Error"),
			"Unavailable":     ResponseJSON("Service is shutting down", "Error"),
		},
	}
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// AddResponses merges the given responses into the component responses.
func (c *Components) AddResponses(responses map[string]*Response) {
	maps.Copy(c.Responses, responses)
}
