// Package docs holds the OpenAPI document served under /swagger when the
// binary is built with -tags=swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models": {"get": {"summary": "List models", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}}},
        "/status": {"get": {"summary": "Manager status", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}}},
        "/sessions": {"post": {"summary": "Create a session", "responses": {"201": {"description": "Created"}, "404": {"description": "Model not found"}, "503": {"description": "Budget exceeded or backend unavailable"}}}},
        "/sessions/{id}": {
            "get": {"summary": "Describe a session", "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}},
            "delete": {"summary": "Close a session", "responses": {"204": {"description": "Closed"}, "404": {"description": "Not found"}}}
        },
        "/sessions/{id}/prompt": {"post": {"summary": "Run a steered prompt (NDJSON)", "produces": ["application/x-ndjson"], "responses": {"200": {"description": "Stream of prompt events"}, "429": {"description": "Session queue full"}}}},
        "/sessions/{id}/state": {"post": {"summary": "Capture prompt state", "responses": {"201": {"description": "Created"}}}},
        "/sessions/{id}/restore": {"post": {"summary": "Restore prompt state", "responses": {"204": {"description": "Restored"}}}},
        "/sessions/{id}/clear": {"post": {"summary": "Clear session context", "responses": {"204": {"description": "Cleared"}}}},
        "/states": {"get": {"summary": "List stored states", "responses": {"200": {"description": "OK"}}}},
        "/states/{id}": {"delete": {"summary": "Delete a stored state", "responses": {"204": {"description": "Deleted"}}}}
    },
    "definitions": {
        "types.ModelsResponse": {"type": "object", "properties": {"models": {"type": "array", "items": {"type": "object"}}}},
        "types.StatusResponse": {"type": "object", "properties": {"sessions": {"type": "array", "items": {"type": "object"}}, "budget_mb": {"type": "integer"}, "backend": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "steerd API",
	Description:      "HTTP API for steered token-by-token generation on local models.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
